package domain

import (
	"encoding/json"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

// Completion constants for the two assist endpoints.
const (
	SuggestMaxTokens   = 15
	SuggestTemperature = 0.7

	AssistMaxTokens   = 150
	AssistTemperature = 0.6

	JobSummaryLimit = 3
)

// Fixed replies and messages returned to clients.
const (
	NoJobsSummary      = "No available jobs right now."
	UnknownLocation    = "Unknown location"
	NoReply            = "No reply."
	AIRequestFailed    = "AI request failed."
	SuggestFailed      = "Failed to fetch suggestion"
	EmptyBody          = "Empty body."
	MessageRequired    = "Message is required and must be a string."
	InternalError      = "Internal error."
	InvalidRequestBody = "Invalid request body"
)

// Job is the subset of a job posting the assistant cares about.
type Job struct {
	ID       string `json:"_id,omitempty"`
	Title    string `json:"title"`
	Location string `json:"location,omitempty"`
}

// JobsResponse is the body of GET /api/jobs/available.
type JobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// ChatTurn is an assistant history entry as sent by clients. Older web
// clients put the text under "message" instead of "content".
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Message string `json:"message,omitempty"`
}

// Text returns whichever text field the client filled.
func (t ChatTurn) Text() string {
	if t.Content != "" {
		return t.Content
	}
	return t.Message
}

// ChatRequest is the decoded body of POST /api/ai-chat. Message stays raw
// so a missing or non-string value can be told apart from a decode error.
type ChatRequest struct {
	Message json.RawMessage `json:"message"`
	History []ChatTurn      `json:"history"`
}

// Question returns the message text and whether it is a non-empty string.
func (r ChatRequest) Question() (string, bool) {
	var s string
	if len(r.Message) == 0 || json.Unmarshal(r.Message, &s) != nil || s == "" {
		return "", false
	}
	return s, true
}

// SuggestRequest is the decoded body of POST /api/suggest.
type SuggestRequest = wire.SuggestRequest
