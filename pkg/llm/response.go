package llm

import "time"

// ChatResponse represents a chat completion response (Ollama-compatible).
// Message is a pointer so a response without one can be told apart from an
// empty reply.
type ChatResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   *Message  `json:"message"`
	Done      bool      `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"` // Tokens in prompt
	EvalCount       int `json:"eval_count,omitempty"`        // Generated tokens
}
