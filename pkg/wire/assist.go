package wire

// AI conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// roleLegacyAI is what older web clients send for assistant turns.
	roleLegacyAI = "ai"
)

// Turn is one entry of the AI assistant conversation. It never leaves the
// client except as bounded context for the assist service.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Time    string `json:"time,omitempty"`
}

// NormalizeRole folds the roles different clients send into user/assistant.
func NormalizeRole(role string) string {
	switch role {
	case RoleAssistant, roleLegacyAI:
		return RoleAssistant
	default:
		return RoleUser
	}
}

// SuggestRequest is the body of POST /api/suggest.
type SuggestRequest struct {
	Text    string    `json:"text"`
	History []Message `json:"history"`
}

// SuggestResponse is the reply of POST /api/suggest.
type SuggestResponse struct {
	Suggestion string `json:"suggestion"`
	Error      string `json:"error,omitempty"`
}

// ChatRequest is the body of POST /api/ai-chat.
type ChatRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history"`
}

// ChatResponse is the reply of POST /api/ai-chat.
type ChatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}
