package llm

// Message represents a single message in an Ollama-compatible chat request.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}

// MessagesFromTurns converts a turn sequence into chat messages, prefixed by
// a system message when system is non-empty.
func MessagesFromTurns(turns []Turn, system string) []Message {
	msgs := make([]Message, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, Message{Role: string(RoleSystem), Content: system})
	}
	for _, t := range turns {
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}
