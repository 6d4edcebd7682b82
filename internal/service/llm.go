package service

import (
	"context"
	"log/slog"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/config"
)

// LLM is a service abstraction for text generation models.
type LLM struct {
	backends *backend.Registry
	models   ModelResolver
}

// NewLLM creates a new LLM service.
func NewLLM(backends *backend.Registry, models ModelResolver) *LLM {
	return &LLM{
		backends: backends,
		models:   models,
	}
}

// Generate generates text using a text generation model.
func (s *LLM) Generate(ctx context.Context, modelID string, req *backend.Request) (*backend.Response, error) {
	b, path, err := resolve(s.backends, s.models, modelID, config.ModelTypeLLM)
	if err != nil {
		return nil, err
	}

	resp, err := b.Infer(ctx, &backend.Request{
		ModelPath:  path,
		Input:      req.Input,
		Parameters: req.Parameters,
	})
	if err != nil {
		slog.Error("Failed to generate text", "model_id", modelID, "error", err)
		return nil, err
	}

	return resp, nil
}

// GenerateStream generates streamed text using a text generation model.
func (s *LLM) GenerateStream(ctx context.Context, modelID string, req *backend.Request) (<-chan backend.StreamChunk, error) {
	b, path, err := resolve(s.backends, s.models, modelID, config.ModelTypeLLM)
	if err != nil {
		return nil, err
	}

	bs, ok := b.(backend.StreamingBackend)
	if !ok {
		return nil, backend.ErrBackendNotStreamable
	}

	stream, err := bs.InferStream(ctx, &backend.Request{
		ModelPath:  path,
		Input:      req.Input,
		Parameters: req.Parameters,
	})
	if err != nil {
		slog.Error("Failed to generate streamed text", "model_id", modelID, "error", err)
		return nil, err
	}

	return stream, nil
}
