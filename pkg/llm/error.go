// Package llm holds the conversation types shared by the relay: turns, and
// the Ollama-compatible chat wire format used by the Ollama gateway.
package llm

// ErrorResponse is the JSON body of non-webhook error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
