package embeddings

// Wire types for Ollama's HTTP API.

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	// Truncate lets the server clip input that exceeds the model context
	// instead of failing the call.
	Truncate  bool   `json:"truncate"`
	KeepAlive string `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// errorResponse is the body Ollama sends with non-2xx statuses.
type errorResponse struct {
	Error string `json:"error"`
}
