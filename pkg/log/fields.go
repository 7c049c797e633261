package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Service
	FieldService = "service"
	FieldLogType = "log_type"

	// Change event
	FieldEventID   = "event_id"
	FieldTopic     = "topic"
	FieldPartition = "partition"
	FieldOffset    = "offset"
	FieldOp        = "op"
	FieldKey       = "key"

	// Downstream
	FieldSink   = "sink"
	FieldAction = "action"
)

// Log types.
const (
	LogTypeAccess = "access"
	LogTypeAudit  = "audit"
)
