package model

// ChatReply is the body of every /api/chat response. Success replies carry
// Message and Timestamp; failures carry Error and optionally Details.
type ChatReply struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
