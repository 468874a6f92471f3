package logger

const (
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	FieldService   = "service"
	FieldViewer    = "viewer_id"
	FieldMessageID = "message_id"
	FieldTable     = "table"
)
