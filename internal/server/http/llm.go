package http

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/ekisa-team/scribepod/internal/backend"
)

// TextService generates raw text from a prompt.
type TextService interface {
	Generate(ctx context.Context, modelID string, req *backend.Request) (*backend.Response, error)
	GenerateStream(ctx context.Context, modelID string, req *backend.Request) (<-chan backend.StreamChunk, error)
}

type (
	GenerateRequestDTO struct {
		ModelID    string         `json:"model_id" minLength:"1"`
		Prompt     string         `json:"prompt" minLength:"1" maxLength:"16384"`
		Parameters map[string]any `json:"parameters,omitempty"`
	}

	GenerateResponseDTO struct {
		Text     string                    `json:"text"`
		Metadata *backend.ResponseMetadata `json:"metadata,omitempty"`
	}
)

type (
	GenerateInput struct {
		Body GenerateRequestDTO
	}

	GenerateOutput struct {
		Body GenerateResponseDTO
	}

	StreamEvent struct {
		Text string `json:"text"`
	}

	StreamError struct {
		Error string `json:"error"`
	}

	StreamDone struct {
		Done string `json:"done"`
	}
)

// LLMHandler handles HTTP requests for LLM.
type LLMHandler struct {
	service TextService
}

// NewLLMHandler creates a new LLMHandler instance.
func NewLLMHandler(api huma.API, service TextService) *LLMHandler {
	h := &LLMHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "generate",
		Method:        http.MethodPost,
		Path:          "/llm",
		Summary:       "Generate text from a prompt",
		Tags:          []string{"llm"},
		DefaultStatus: http.StatusOK,
	}, h.handleGenerate)

	sse.Register(api, huma.Operation{
		OperationID: "generate-stream",
		Method:      http.MethodPost,
		Path:        "/llm/stream",
		Summary:     "Generate stream of text from a prompt (SSE)",
		Tags:        []string{"llm"},
	}, map[string]any{
		"message": StreamEvent{},
		"error":   StreamError{},
		"end":     StreamDone{},
	}, h.handleGenerateStream)

	return h
}

// handleGenerate handles the generate operation.
func (h *LLMHandler) handleGenerate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	resp, err := h.service.Generate(ctx, input.Body.ModelID, &backend.Request{
		Input:      strings.NewReader(input.Body.Prompt),
		Parameters: input.Body.Parameters,
	})
	if err != nil {
		return nil, toHTTPError("failed to generate", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Output); err != nil {
		return nil, huma.Error500InternalServerError("failed to read model output", err)
	}

	return &GenerateOutput{
		Body: GenerateResponseDTO{
			Text:     sb.String(),
			Metadata: resp.Metadata,
		},
	}, nil
}

// handleGenerateStream handles the generate-stream operation.
func (h *LLMHandler) handleGenerateStream(ctx context.Context, input *GenerateInput, send sse.Sender) {
	stream, err := h.service.GenerateStream(ctx, input.Body.ModelID, &backend.Request{
		Input:      strings.NewReader(input.Body.Prompt),
		Parameters: input.Body.Parameters,
	})
	if err != nil {
		_ = send.Data(StreamError{Error: err.Error()})
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				_ = send.Data(StreamDone{Done: "[DONE]"})
				return
			}

			if chunk.Error != nil {
				_ = send.Data(StreamError{Error: chunk.Error.Error()})
				return
			}

			if chunk.Done {
				continue
			}

			if err := send.Data(StreamEvent{Text: string(chunk.Data)}); err != nil {
				return
			}
		}
	}
}
