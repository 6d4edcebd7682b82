package llama

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scribepod/internal/backend"
)

type fakeRunner struct {
	args   []string
	stdout string
	stderr string
	err    error
}

var (
	_ backend.StreamingBackend = (*Backend)(nil)
	_ backend.ModelLocator     = (*Backend)(nil)
)

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, _ io.Reader) ([]byte, []byte, error) {
	f.args = args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func (f *fakeRunner) Start(_ context.Context, _ string, args []string, _ io.Reader) (io.ReadCloser, io.ReadCloser, func() error, error) {
	f.args = args
	return io.NopCloser(strings.NewReader(f.stdout)), io.NopCloser(strings.NewReader(f.stderr)), func() error { return f.err }, nil
}

func newTestBackend(r *fakeRunner, opts Options) *Backend {
	return NewBackendWithExecutor(backend.NewExecutorWithRunner("llama-cli", time.Second, r), opts)
}

func argValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func TestBackend_Infer(t *testing.T) {
	r := &fakeRunner{stdout: "llama_model_loader: loaded\nmain: prompt done\n<pad> a scientist </s>\n"}
	b := newTestBackend(r, Options{})

	resp, err := b.Infer(context.Background(), &backend.Request{
		ModelPath: "/models/flan.gguf",
		Input:     strings.NewReader("Q: what kind of person?"),
		Parameters: map[string]any{
			"n_predict":   float64(2000),
			"temperature": 1.0,
			"special":     true,
		},
	})
	require.NoError(t, err)

	out, err := io.ReadAll(resp.Output)
	require.NoError(t, err)
	assert.Equal(t, "<pad> a scientist </s>", string(out))
	assert.Equal(t, backend.BackendProviderLlamaCPP, resp.Metadata.Provider)
	assert.Equal(t, "/models/flan.gguf", resp.Metadata.Model)

	v, _ := argValue(r.args, "-n")
	assert.Equal(t, "2000", v)
	v, _ = argValue(r.args, "--temp")
	assert.Equal(t, "1.00", v)
	v, _ = argValue(r.args, "--prompt")
	assert.Equal(t, "Q: what kind of person?", v)
	assert.Contains(t, r.args, "--special")
	assert.Equal(t, "--prompt", r.args[len(r.args)-2], "prompt is passed last")
}

func TestBackend_InferFailure(t *testing.T) {
	r := &fakeRunner{stderr: "out of memory", err: errors.New("exit status 1")}
	b := newTestBackend(r, Options{})

	_, err := b.Infer(context.Background(), &backend.Request{Input: strings.NewReader("p")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestBackend_InferRequiresInput(t *testing.T) {
	b := newTestBackend(&fakeRunner{}, Options{})

	_, err := b.Infer(context.Background(), &backend.Request{})
	assert.ErrorContains(t, err, "no prompt")
}

func TestBackend_BuildArgsDefaults(t *testing.T) {
	b := newTestBackend(&fakeRunner{}, Options{Threads: 4, GPULayers: 99})

	args := b.buildArgs(&backend.Request{ModelPath: "m.gguf"})

	v, _ := argValue(args, "-n")
	assert.Equal(t, "512", v)
	v, _ = argValue(args, "-t")
	assert.Equal(t, "4", v)
	v, _ = argValue(args, "-ngl")
	assert.Equal(t, "99", v)
	v, _ = argValue(args, "--repeat-penalty")
	assert.Equal(t, "1.10", v)

	_, ok := argValue(args, "--temp")
	assert.False(t, ok)
	assert.NotContains(t, args, "--special")
	assert.Contains(t, args, "--no-conversation")
}

func TestBackend_InferStream(t *testing.T) {
	r := &fakeRunner{stdout: "<pad> hello\nworld </s>\n"}
	b := newTestBackend(r, Options{})

	ch, err := b.InferStream(context.Background(), &backend.Request{Input: strings.NewReader("p")})
	require.NoError(t, err)

	var sb strings.Builder
	for chunk := range ch {
		require.NoError(t, chunk.Error)
		sb.Write(chunk.Data)
	}

	assert.Equal(t, "<pad> hello\nworld </s>\n", sb.String())
}

func TestBackend_ParseOutput(t *testing.T) {
	b := &Backend{}

	out := b.parseOutput("system_info: n_threads = 8\n\nggml_init\n  answer line one\nanswer two\n\nllama_perf: done\n")

	assert.Equal(t, "answer line one\nanswer two", out)
}

func TestBackend_ResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-q8_0.gguf"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-q4_0.gguf"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), nil, 0o644))

	b := &Backend{}

	path, err := b.ResolveModelPath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a-q4_0.gguf"), path)

	path, err = b.ResolveModelPath(filepath.Join(dir, "b-q8_0.gguf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b-q8_0.gguf"), path)

	_, err = b.ResolveModelPath(t.TempDir())
	assert.ErrorIs(t, err, backend.ErrModelFileNotFound)
}
