package cohere

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message     string        `json:"message"`
	Model       string        `json:"model,omitempty"`
	Preamble    string        `json:"preamble,omitempty"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatMessage is one entry of chat_history.
type ChatMessage struct {
	Role    string `json:"role"` // USER | CHATBOT | SYSTEM
	Message string `json:"message"`
}

type ChatResponse struct {
	Text         string `json:"text"`
	GenerationID string `json:"generation_id"`
	FinishReason string `json:"finish_reason"`
	Meta         *Meta  `json:"meta,omitempty"`
}

type Meta struct {
	BilledUnits struct {
		InputTokens  float64 `json:"input_tokens"`
		OutputTokens float64 `json:"output_tokens"`
	} `json:"billed_units"`
}

// StreamEvent is one line of a streamed chat response.
type StreamEvent struct {
	IsFinished   bool          `json:"is_finished"`
	EventType    string        `json:"event_type"` // stream-start | text-generation | stream-end
	Text         string        `json:"text,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Response     *ChatResponse `json:"response,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type ModelList struct {
	Models []struct {
		Name      string   `json:"name"`
		Endpoints []string `json:"endpoints"`
	} `json:"models"`
}
