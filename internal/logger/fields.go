package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the ingestion job ID
	FieldJobID = "job_id"

	// FieldContractID is the owning contract ID
	FieldContractID = "contract_id"

	// FieldStep is the current pipeline step name
	FieldStep = "step"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldDocType is the classified document type
	FieldDocType = "doc_type"
)

// Standard metric fields attached per log entry.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldCount is a generic count field
	FieldCount = "count"
)
