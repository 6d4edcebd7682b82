package service

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/persona"
)

// ErrPersonaNotConfigured is returned when no LLM model is available for the pipeline.
var ErrPersonaNotConfigured = errors.New("persona pipeline has no model configured")

// Persona serves the persona pipeline and rebuilds it on config reload.
type Persona struct {
	llm      *LLM
	pipeline atomic.Pointer[persona.Pipeline]
}

// NewPersona creates a Persona service from the persona config.
func NewPersona(llm *LLM, cfg config.PersonaConfig) *Persona {
	p := &Persona{llm: llm}
	p.Configure(cfg)
	return p
}

// Configure swaps in a pipeline built from cfg. Runs already in flight keep the previous one.
func (p *Persona) Configure(cfg config.PersonaConfig) {
	if cfg.Model == "" {
		p.pipeline.Store(nil)
		return
	}

	var implicitStart string
	if cfg.Markers.ImplicitStart == nil || *cfg.Markers.ImplicitStart {
		implicitStart = cfg.Markers.Start
		if implicitStart == "" {
			implicitStart = persona.DefaultMarkers.Start
		}
	}

	p.pipeline.Store(persona.New(NewTextGenerator(p.llm, cfg.Model, implicitStart), persona.Options{
		Markers:           persona.Markers{Start: cfg.Markers.Start, End: cfg.Markers.End},
		Timeout:           cfg.Timeout,
		Parallel:          cfg.Parallel,
		MaxLength:         cfg.MaxLength,
		ThoughtsMaxLength: cfg.ThoughtsMaxLength,
		Temperature:       cfg.Temperature,
	}))
}

// Run runs the current pipeline over the conversation.
func (p *Persona) Run(ctx context.Context, conversation []string) (*persona.Result, error) {
	pipeline := p.pipeline.Load()
	if pipeline == nil {
		return nil, ErrPersonaNotConfigured
	}

	return pipeline.Run(ctx, conversation)
}
