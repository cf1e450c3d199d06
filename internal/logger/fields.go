package logger

// Standard field names for structured logging. Use these instead of raw
// strings so that log queries stay stable.
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldBackend   = "backend"

	FieldElementType = "element_type"
	FieldGlobalID    = "global_id"
	FieldParameter   = "parameter"
	FieldQuery       = "query"
	FieldFilter      = "filter"
	FieldTopK        = "top_k"

	FieldFile  = "file"
	FieldSheet = "sheet"
	FieldRow   = "row"

	FieldCount      = "count"
	FieldDimension  = "dimension"
	FieldDurationMS = "duration_ms"
	FieldAttempt    = "attempt"
	FieldError      = "error"
)
