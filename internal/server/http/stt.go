package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/config"
)

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, modelID string, req *backend.Request) (*backend.Response, error)
	TranscribeText(ctx context.Context, modelID, language string, audio io.Reader) (string, error)
}

// ConfigSource returns the current configuration.
type ConfigSource interface {
	Snapshot() *config.Config
}

type (
	TranscribeResponseDTO struct {
		Text     string                    `json:"text"`
		Metadata *backend.ResponseMetadata `json:"metadata,omitempty"`
	}

	TranscribeInput struct {
		RawBody huma.MultipartFormFiles[struct {
			AudioFile  huma.FormFile `form:"file" contentType:"audio/*,application/octet-stream" required:"true"`
			ModelID    string        `form:"model_id"`
			Parameters string        `form:"parameters"` // JSON-encoded optional parameters
		}]
	}

	TranscribeOutput struct {
		Body TranscribeResponseDTO
	}

	TranscribeTextInput struct {
		RawBody huma.MultipartFormFiles[struct {
			AudioData huma.FormFile `form:"audio_data" required:"true"`
			ModelID   string        `form:"model_id"`
			Language  string        `form:"language"`
		}]
	}

	TranscribeTextOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
)

// STTHandler handles HTTP requests for STT.
type STTHandler struct {
	service Transcriber
	config  ConfigSource
}

// NewSTTHandler creates a new STTHandler instance.
func NewSTTHandler(api huma.API, service Transcriber, cfg ConfigSource) *STTHandler {
	h := &STTHandler{service: service, config: cfg}

	huma.Register(api, huma.Operation{
		OperationID:   "transcribe",
		Method:        http.MethodPost,
		Path:          "/transcribe",
		Summary:       "Transcribe an uploaded recording to plain text",
		Tags:          []string{"stt"},
		DefaultStatus: http.StatusOK,
	}, h.handleTranscribeText)

	huma.Register(api, huma.Operation{
		OperationID:   "stt",
		Method:        http.MethodPost,
		Path:          "/stt",
		Summary:       "Transcribe speech from an audio file with metadata",
		Tags:          []string{"stt"},
		DefaultStatus: http.StatusOK,
	}, h.handleTranscribe)

	return h
}

// defaults returns the first configured STT model and the configured language.
func (h *STTHandler) defaults() (string, string) {
	cfg := h.config.Snapshot()
	if cfg == nil {
		return "", config.DefaultLanguage
	}

	var modelID string
	if len(cfg.Services.STT.Models) > 0 {
		modelID = cfg.Services.STT.Models[0]
	}

	language := cfg.Services.STT.Language
	if language == "" {
		language = config.DefaultLanguage
	}

	return modelID, language
}

func (h *STTHandler) handleTranscribeText(ctx context.Context, input *TranscribeTextInput) (*TranscribeTextOutput, error) {
	form := input.RawBody.Data()
	if !form.AudioData.IsSet {
		return nil, huma.Error400BadRequest("audio_data file is required", nil)
	}

	modelID, language := h.defaults()
	if form.ModelID != "" {
		modelID = form.ModelID
	}
	if form.Language != "" {
		language = form.Language
	}

	text, err := h.service.TranscribeText(ctx, modelID, language, form.AudioData)
	if err != nil {
		slog.Error("Failed to transcribe audio", "model_id", modelID, "error", err)
		return nil, toHTTPError("failed to transcribe audio", err)
	}

	return &TranscribeTextOutput{
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(text),
	}, nil
}

func (h *STTHandler) handleTranscribe(ctx context.Context, input *TranscribeInput) (*TranscribeOutput, error) {
	form := input.RawBody.Data()
	if !form.AudioFile.IsSet {
		return nil, huma.Error400BadRequest("audio file is required", nil)
	}

	audioBytes, err := io.ReadAll(form.AudioFile)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read audio file", err)
	}

	var parameters map[string]any
	if form.Parameters != "" {
		if err := json.Unmarshal([]byte(form.Parameters), &parameters); err != nil {
			return nil, huma.Error400BadRequest("invalid parameters JSON", err)
		}
	}

	modelID, language := h.defaults()
	if form.ModelID != "" {
		modelID = form.ModelID
	}
	if parameters == nil {
		parameters = map[string]any{}
	}
	if _, ok := parameters["language"]; !ok {
		parameters["language"] = language
	}

	resp, err := h.service.Transcribe(ctx, modelID, &backend.Request{
		Input:      bytes.NewReader(audioBytes),
		Parameters: parameters,
	})
	if err != nil {
		slog.Error("Failed to transcribe audio", "model_id", modelID, "error", err)
		return nil, toHTTPError("failed to transcribe audio", err)
	}

	text, err := io.ReadAll(resp.Output)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read transcription", err)
	}

	return &TranscribeOutput{
		Body: TranscribeResponseDTO{
			Text:     string(text),
			Metadata: resp.Metadata,
		},
	}, nil
}
