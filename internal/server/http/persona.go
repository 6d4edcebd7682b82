package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/scribepod/internal/persona"
)

// PersonaRunner runs the persona pipeline.
type PersonaRunner interface {
	Run(ctx context.Context, conversation []string) (*persona.Result, error)
}

type (
	GenerateThotsRequestDTO struct {
		ConversationSpeech []string `json:"conversation_speech" minItems:"1" maxItems:"500" doc:"Utterances, each prefixed with a speaker label such as \"person: \""`
	}

	GenerateThotsInput struct {
		Body GenerateThotsRequestDTO
	}

	GenerateThotsOutput struct {
		Body *persona.Result
	}
)

// PersonaHandler handles HTTP requests for the persona pipeline.
type PersonaHandler struct {
	runner PersonaRunner
}

// NewPersonaHandler creates a new PersonaHandler instance.
func NewPersonaHandler(api huma.API, runner PersonaRunner) *PersonaHandler {
	h := &PersonaHandler{runner: runner}

	huma.Register(api, huma.Operation{
		OperationID:   "generate-thots",
		Method:        http.MethodPost,
		Path:          "/generate_thots",
		Summary:       "Infer intent, persona, state and thoughts, then draft a response",
		Tags:          []string{"persona"},
		DefaultStatus: http.StatusOK,
	}, h.handleGenerateThots)

	return h
}

func (h *PersonaHandler) handleGenerateThots(ctx context.Context, input *GenerateThotsInput) (*GenerateThotsOutput, error) {
	result, err := h.runner.Run(ctx, input.Body.ConversationSpeech)
	if err != nil {
		slog.Error("Failed to run persona pipeline", "utterances", len(input.Body.ConversationSpeech), "error", err)
		return nil, toHTTPError("failed to generate thoughts", err)
	}

	return &GenerateThotsOutput{Body: result}, nil
}
