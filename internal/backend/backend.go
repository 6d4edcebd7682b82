package backend

import (
	"context"
	"io"
	"time"
)

// BackendProvider names the native runtime a model runs on. It matches the
// backend field of a model entry in the config.
type BackendProvider string

// Providers known to the registry.
const (
	BackendProviderLlamaCPP   BackendProvider = "llama.cpp"
	BackendProviderWhisperCPP BackendProvider = "whisper.cpp"
)

// Backend runs a model on a native runtime. llama.cpp generates text by
// executing llama-cli once per request; whisper.cpp transcribes audio through
// a long running whisper-server.
type Backend interface {
	Provider() BackendProvider

	// Infer runs a single request to completion.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close stops any process the backend manages.
	Close() error
}

// StreamingBackend is implemented by backends that can emit output while the
// runtime is still producing it, such as llama-cli token output for the SSE
// endpoint. The channel is closed after the chunk with Done or Error set.
type StreamingBackend interface {
	Backend

	InferStream(ctx context.Context, req *Request) (<-chan StreamChunk, error)
}

// Request is one inference call against a resolved model file.
type Request struct {
	// ModelPath is the weights file, already resolved by a ModelLocator.
	ModelPath string

	// Input is the prompt text for llama.cpp or WAV audio for whisper.cpp.
	Input io.Reader

	// Parameters are runtime flags such as n_predict, temperature or language.
	// Unknown keys are ignored.
	Parameters map[string]any
}

// Response holds the generated text or transcript of a request.
type Response struct {
	Output   io.Reader
	Metadata *ResponseMetadata
}

// ResponseMetadata is reported alongside the output in API responses.
type ResponseMetadata struct {
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"` // resolved weights file
	Timestamp       time.Time       `json:"timestamp"`
	DurationSeconds float64         `json:"inference_time_seconds"`
	OutputSizeBytes int64           `json:"output_size_bytes"`
	BackendSpecific map[string]any  `json:"backend_specific,omitempty"` // e.g. detected language, segment count
}

// StreamChunk is a piece of streamed runtime output.
type StreamChunk struct {
	Data  []byte
	Done  bool
	Error error
}
