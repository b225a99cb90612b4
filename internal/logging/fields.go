package logging

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Search
	FieldSessionID  = "session_id"
	FieldKeyword    = "keyword"
	FieldPage       = "page"
	FieldOffset     = "offset"
	FieldGeneration = "generation"
	FieldNumFound   = "num_found"

	FieldService = "service"
)
