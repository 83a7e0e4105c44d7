package pipeline

const (
	// DefaultFilenamePrefix names result workbooks: <prefix>_<YYYYMMDD>.xlsx.
	DefaultFilenamePrefix = "mieten_abgleich"

	// DefaultOutputDir is used when neither the request nor the options name one.
	DefaultOutputDir = "results"

	// ResultExtension is the file extension of result workbooks.
	ResultExtension = ".xlsx"
)
