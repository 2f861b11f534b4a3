package llm

// Options contains model inference parameters.
type Options struct {
	// Max tokens to generate
	NumPredict *int `json:"num_predict,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
}
