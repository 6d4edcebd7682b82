package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/persona"
)

// TextGenerator adapts the LLM service to the persona pipeline.
type TextGenerator struct {
	llm         *LLM
	modelID     string
	startMarker string
}

// NewTextGenerator creates a TextGenerator bound to a single model.
//
// Encoder-decoder models start decoding from the pad token and llama-cli does
// not print it, so a non-empty startMarker is put back in front of any output
// that lacks it.
func NewTextGenerator(llm *LLM, modelID, startMarker string) *TextGenerator {
	return &TextGenerator{llm: llm, modelID: modelID, startMarker: startMarker}
}

// Generate implements persona.Generator. Special tokens are kept in the output
// so the pipeline can find the answer markers.
func (g *TextGenerator) Generate(ctx context.Context, prompt string, opts persona.GenerateOptions) (string, error) {
	resp, err := g.llm.Generate(ctx, g.modelID, &backend.Request{
		Input: strings.NewReader(prompt),
		Parameters: map[string]any{
			"n_predict":   opts.MaxLength,
			"temperature": opts.Temperature,
			"special":     true,
		},
	})
	if err != nil {
		return "", err
	}

	out, err := io.ReadAll(resp.Output)
	if err != nil {
		return "", fmt.Errorf("failed to read generated text: %w", err)
	}

	text := string(out)
	if g.startMarker != "" && !strings.Contains(text, g.startMarker) {
		text = g.startMarker + " " + text
	}

	return text, nil
}
