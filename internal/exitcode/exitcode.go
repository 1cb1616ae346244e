package exitcode

const (
	Success     = 0
	UsageError  = 1
	DataError   = 2
	DBConnError = 3
	ExportError = 4
	ServeError  = 5
)
