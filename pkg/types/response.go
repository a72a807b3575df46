package types

// ErrorResponse is the client-facing error body. Error holds the user-facing
// reason; RequestID echoes X-Request-Id so support can find the matching log line.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
