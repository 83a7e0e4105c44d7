package domain

// Label is the payment category assigned by the classifier.
type Label string

const (
	LabelRent             Label = "rent"
	LabelUtilitiesAdvance Label = "utilities_advance"
	LabelArrearsPayment   Label = "arrears_payment"
	LabelInstallment      Label = "installment"
	LabelFee              Label = "fee"
	LabelOther            Label = "other"
)

var displayNames = map[Label]string{
	LabelRent:             "Miete",
	LabelUtilitiesAdvance: "Nebenkosten",
	LabelArrearsPayment:   "Nachzahlung",
	LabelInstallment:      "Rate",
	LabelFee:              "Honorar",
	LabelOther:            "Sonstiges",
}

// DisplayName returns the German name used in annotations and the search
// hits sheet.
func (l Label) DisplayName() string {
	if name, ok := displayNames[l]; ok {
		return name
	}
	return string(l)
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	_, ok := displayNames[l]
	return ok
}

// Relevant reports whether transactions carrying this label take part in
// reconciliation.
func (l Label) Relevant() bool {
	return l.Valid() && l != LabelOther
}
