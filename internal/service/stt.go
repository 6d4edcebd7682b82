package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/config"
)

// STT is a service abstraction for speech-to-text.
type STT struct {
	backends *backend.Registry
	models   ModelResolver
}

// NewSTT creates a new STT service.
func NewSTT(backends *backend.Registry, models ModelResolver) *STT {
	return &STT{
		backends: backends,
		models:   models,
	}
}

// Transcribe transcribes audio using a speech-to-text model.
func (s *STT) Transcribe(ctx context.Context, modelID string, req *backend.Request) (*backend.Response, error) {
	b, path, err := resolve(s.backends, s.models, modelID, config.ModelTypeSTT)
	if err != nil {
		return nil, err
	}

	resp, err := b.Infer(ctx, &backend.Request{
		ModelPath:  path,
		Input:      req.Input,
		Parameters: req.Parameters,
	})
	if err != nil {
		slog.Error("Failed to transcribe audio", "model_id", modelID, "error", err)
		return nil, err
	}

	return resp, nil
}

// TranscribeText transcribes audio in the given language and returns the plain text.
func (s *STT) TranscribeText(ctx context.Context, modelID, language string, audio io.Reader) (string, error) {
	params := map[string]any{}
	if language != "" {
		params["language"] = language
	}

	resp, err := s.Transcribe(ctx, modelID, &backend.Request{Input: audio, Parameters: params})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Output); err != nil {
		return "", fmt.Errorf("failed to read transcription: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}
