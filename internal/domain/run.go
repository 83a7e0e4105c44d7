package domain

// RunStats counts what happened during one reconciliation run.
type RunStats struct {
	Transactions   int `json:"transactions"`    // statement rows with a parseable amount
	Dropped        int `json:"dropped"`         // rows dropped for an unparseable amount
	Relevant       int `json:"relevant"`        // transactions with a relevant label or a month override
	Tenants        int `json:"tenants"`         // roster rows considered
	Matched        int `json:"matched"`         // allocations with a resolved month
	Written        int `json:"written"`         // allocations written to the roster
	Duplicates     int `json:"duplicates"`      // allocations already recorded
	NoMonth        int `json:"no_month"`        // matched transactions without a month
	MissingHeaders int `json:"missing_headers"` // allocations whose month has no header pair
}
