package model

// History entry types on the wire. Anything other than MessageTypeUser is
// treated as an assistant turn.
const (
	MessageTypeUser = "user"
	MessageTypeAI   = "ai"
)

// HistoryMessage is one prior turn as the mobile client sends it.
type HistoryMessage struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

type ChatRequest struct {
	Message             string           `json:"message"`
	ConversationHistory []HistoryMessage `json:"conversationHistory"`
}
