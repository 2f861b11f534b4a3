package llm

// ChatRequest represents a chat completion request (Ollama-compatible).
type ChatRequest struct {
	Model    string    `json:"model"`    // Model name (e.g., "llama3", "mistral")
	Messages []Message `json:"messages"` // Conversation history
	Stream   bool      `json:"stream"`   // Always false: webhook replies need the whole text

	// Generation options
	Options *Options `json:"options,omitempty"`
}
