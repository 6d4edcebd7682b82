package llama

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/mapsafe"
)

const (
	defaultMaxTokens     = 512
	defaultRepeatPenalty = 1.1
)

// Options holds process-wide llama.cpp settings.
type Options struct {
	Timeout   time.Duration
	Threads   int
	GPULayers int
}

// Backend implements both backend.Backend and backend.StreamingBackend for llama.cpp.
type Backend struct {
	executor *backend.Executor
	opts     Options
}

// NewBackend creates a new Llama backend for the llama-cli binary at binPath.
func NewBackend(binPath string, opts Options) (*Backend, error) {
	if opts.Timeout == 0 {
		opts.Timeout = time.Minute
	}

	executor, err := backend.NewExecutor(binPath, opts.Timeout)
	if err != nil {
		return nil, err
	}

	return NewBackendWithExecutor(executor, opts), nil
}

// NewBackendWithExecutor creates a Llama backend around an existing executor.
func NewBackendWithExecutor(executor *backend.Executor, opts Options) *Backend {
	return &Backend{
		executor: executor,
		opts:     opts,
	}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderLlamaCPP
}

// Infer executes synchronous inference.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	args, err := b.buildPromptArgs(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	stdout, stderr, err := b.executor.Execute(ctx, args, nil)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	text := b.parseOutput(string(stdout))

	return &backend.Response{
		Output: bytes.NewReader([]byte(text)),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           req.ModelPath,
			Timestamp:       time.Now(),
			DurationSeconds: time.Since(start).Seconds(),
			OutputSizeBytes: int64(len(text)),
			BackendSpecific: map[string]any{
				"args": strings.Join(args[:len(args)-2], " "),
			},
		},
	}, nil
}

// InferStream executes streaming inference.
func (b *Backend) InferStream(ctx context.Context, req *backend.Request) (<-chan backend.StreamChunk, error) {
	args, err := b.buildPromptArgs(req)
	if err != nil {
		return nil, err
	}

	return b.executor.Stream(ctx, args, nil)
}

// ResolveModelPath picks the GGUF file inside a downloaded model directory.
// When several files exist the lexically first one wins.
func (b *Backend) ResolveModelPath(basePath string) (string, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return basePath, nil
	}

	matches, err := filepath.Glob(filepath.Join(basePath, "*.gguf"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no .gguf file in %s", backend.ErrModelFileNotFound, basePath)
	}

	sort.Strings(matches)
	return matches[0], nil
}

// buildPromptArgs builds the full argument list, prompt last.
func (b *Backend) buildPromptArgs(req *backend.Request) ([]string, error) {
	if req.Input == nil {
		return nil, fmt.Errorf("read input: no prompt")
	}

	prompt, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return append(b.buildArgs(req), "--prompt", string(prompt)), nil
}

// buildArgs builds Llama command-line arguments.
func (b *Backend) buildArgs(req *backend.Request) []string {
	args := []string{"--model", req.ModelPath}

	p := req.Parameters

	if v := mapsafe.Get(p, "system_prompt", ""); v != "" {
		args = append(args, "--system-prompt", v)
	}

	if v := mapsafe.Get(p, "n_ctx", 0); v > 0 {
		args = append(args, "--ctx-size", strconv.Itoa(v))
	}

	args = append(args, "-n", strconv.Itoa(mapsafe.Get(p, "n_predict", defaultMaxTokens)))

	if v := mapsafe.Get(p, "n_gpu_layers", b.opts.GPULayers); v > 0 {
		args = append(args, "-ngl", strconv.Itoa(v))
	}

	if v := mapsafe.Get(p, "threads", b.opts.Threads); v > 0 {
		args = append(args, "-t", strconv.Itoa(v))
	}

	if mapsafe.Has(p, "temperature") {
		args = append(args, "--temp", fmt.Sprintf("%.2f", mapsafe.Get(p, "temperature", 0.8)))
	}

	args = append(args, "--repeat-penalty", fmt.Sprintf("%.2f", mapsafe.Get(p, "repeat_penalty", defaultRepeatPenalty)))

	if mapsafe.Has(p, "top_p") {
		args = append(args, "--top-p", fmt.Sprintf("%.2f", mapsafe.Get(p, "top_p", 0.9)))
	}

	if v := mapsafe.Get(p, "top_k", 0); v > 0 {
		args = append(args, "--top-k", strconv.Itoa(v))
	}

	if mapsafe.Has(p, "seed") {
		args = append(args, "--seed", strconv.Itoa(mapsafe.Get(p, "seed", -1)))
	}

	// Special tokens such as <pad> and </s> delimit seq2seq answers.
	if mapsafe.Get(p, "special", false) {
		args = append(args, "--special")
	}

	args = append(args,
		"--no-warmup",
		"--no-display-prompt",
		"--simple-io",
		"--no-conversation",
	)

	return args
}

// parseOutput strips llama.cpp diagnostics and keeps the generated text.
func (b *Backend) parseOutput(output string) string {
	lines := strings.Split(output, "\n")
	var result strings.Builder
	inGeneration := false

	for _, line := range lines {
		if isDiagnostic(line) {
			continue
		}

		if strings.TrimSpace(line) != "" {
			inGeneration = true
		}

		if inGeneration {
			result.WriteString(line)
			result.WriteString("\n")
		}
	}

	return strings.TrimSpace(result.String())
}

var diagnosticPrefixes = []string{
	"system_info:",
	"llama_",
	"ggml_",
	"print_info:",
	"load:",
	"main:",
	"sampler",
	"generate:",
	"common_",
}

func isDiagnostic(line string) bool {
	for _, prefix := range diagnosticPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Close cleans up resources. Llama does not have any resources to clean up.
func (b *Backend) Close() error {
	return nil
}
