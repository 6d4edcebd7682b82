// Package persona infers who a speaker is, what they want and how to answer
// them, by chaining prompt-engineered generations over a conversation.
package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// GenerateOptions are the per-call generation settings.
type GenerateOptions struct {
	MaxLength   int
	Temperature float64
}

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Intent     string `json:"intent"`
	PersonIs   string `json:"person_is"`
	ExtraState string `json:"extra_state"`
	Thoughts   string `json:"thoughts"`
	Response   string `json:"response"`
}

// Options configures a Pipeline.
type Options struct {
	// Markers delimit the answer in generated text.
	Markers Markers

	// Timeout bounds a whole run. Zero means no limit beyond the caller's context.
	Timeout time.Duration

	// Parallel runs independent stages concurrently instead of in table order.
	Parallel bool

	MaxLength         int
	ThoughtsMaxLength int

	// Temperature is the sampling temperature for every stage. Nil means 1.0;
	// an explicit zero selects greedy decoding.
	Temperature *float64
}

// Pipeline runs the persona stages against a Generator.
type Pipeline struct {
	generator Generator
	stages    []Stage
	opts      Options
}

// New creates a Pipeline with the default stages.
func New(generator Generator, opts Options) *Pipeline {
	if opts.Markers.Start == "" {
		opts.Markers = DefaultMarkers
	}
	if opts.MaxLength == 0 {
		opts.MaxLength = 2000
	}
	if opts.ThoughtsMaxLength == 0 {
		opts.ThoughtsMaxLength = 50
	}
	temperature := 1.0
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	return &Pipeline{
		generator: generator,
		stages:    DefaultStages(opts.MaxLength, opts.ThoughtsMaxLength, temperature),
		opts:      opts,
	}
}

// Stages returns the stages in sequential execution order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Run executes every stage over the conversation. The first failing stage
// aborts the run and no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, conversation []string) (*Result, error) {
	if len(conversation) == 0 {
		return nil, ErrEmptyConversation
	}

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	outputs := newOutputs()

	var err error
	if p.opts.Parallel {
		err = p.runWaves(ctx, conversation, outputs)
	} else {
		err = p.runSequential(ctx, conversation, outputs)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("Persona pipeline completed", "duration", time.Since(start), "parallel", p.opts.Parallel)

	return outputs.result(), nil
}

func (p *Pipeline) runSequential(ctx context.Context, conversation []string, outputs *stageOutputs) error {
	for _, stage := range p.stages {
		if err := p.runStage(ctx, stage, conversation, outputs); err != nil {
			return err
		}
	}
	return nil
}

// runWaves runs each wave of ready stages concurrently; a wave starts once
// every stage it depends on has finished.
func (p *Pipeline) runWaves(ctx context.Context, conversation []string, outputs *stageOutputs) error {
	waves, err := Waves(p.stages)
	if err != nil {
		return err
	}

	for _, wave := range waves {
		g, waveCtx := errgroup.WithContext(ctx)
		for _, stage := range wave {
			g.Go(func() error {
				return p.runStage(waveCtx, stage, conversation, outputs)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, conversation []string, outputs *stageOutputs) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage.Name, Err: err}
	}

	prompt := BuildPrompt(stage.Prompt(conversation, outputs.snapshot(stage.Inputs))...)

	start := time.Now()
	raw, err := p.generator.Generate(ctx, prompt, stage.Options)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &StageError{Stage: stage.Name, Err: fmt.Errorf("%w: %w", ErrGeneration, ctxErr)}
		}
		return &StageError{Stage: stage.Name, Err: fmt.Errorf("%w: %w", ErrGeneration, err)}
	}

	answer, err := p.opts.Markers.Parse(raw)
	if err != nil {
		return &StageError{Stage: stage.Name, Err: err}
	}

	outputs.set(stage.Name, normalize(answer))

	slog.Debug("Persona stage completed", "stage", stage.Name, "duration", time.Since(start), "prompt_bytes", len(prompt))
	return nil
}

// Waves groups stages into dependency layers, keeping table order within a layer.
func Waves(stages []Stage) ([][]Stage, error) {
	done := make(map[StageName]bool, len(stages))
	remaining := append([]Stage{}, stages...)

	var waves [][]Stage
	for len(remaining) > 0 {
		var wave, blocked []Stage
		for _, stage := range remaining {
			if inputsDone(stage, done) {
				wave = append(wave, stage)
			} else {
				blocked = append(blocked, stage)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("stages have unsatisfiable inputs: %s", stageNames(blocked))
		}
		for _, stage := range wave {
			done[stage.Name] = true
		}
		waves = append(waves, wave)
		remaining = blocked
	}

	return waves, nil
}

func inputsDone(stage Stage, done map[StageName]bool) bool {
	for _, in := range stage.Inputs {
		if !done[in] {
			return false
		}
	}
	return true
}

func stageNames(stages []Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s.Name)
	}
	return strings.Join(names, ", ")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// stageOutputs holds the normalised answer of each finished stage.
type stageOutputs struct {
	mu     sync.Mutex
	values map[StageName]string
}

func newOutputs() *stageOutputs {
	return &stageOutputs{values: make(map[StageName]string, 5)}
}

func (o *stageOutputs) set(name StageName, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.values[name] = value
}

// snapshot copies the outputs a stage declared as inputs.
func (o *stageOutputs) snapshot(names []StageName) map[StageName]string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[StageName]string, len(names))
	for _, name := range names {
		out[name] = o.values[name]
	}
	return out
}

func (o *stageOutputs) result() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	return &Result{
		Intent:     o.values[StageIntent],
		PersonIs:   o.values[StagePersonIs],
		ExtraState: o.values[StageExtraState],
		Thoughts:   o.values[StageThoughts],
		Response:   o.values[StageResponse],
	}
}
