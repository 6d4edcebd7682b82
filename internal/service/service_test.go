package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/model"
	"github.com/ekisa-team/scribepod/internal/persona"
)

type MockBackend struct {
	mock.Mock
	provider backend.BackendProvider
}

func (m *MockBackend) Provider() backend.BackendProvider { return m.provider }

func (m *MockBackend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	args := m.Called(ctx, req)
	switch v := args.Get(0).(type) {
	case func(context.Context, *backend.Request) *backend.Response:
		return v(ctx, req), args.Error(1)
	case *backend.Response:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) Close() error { return nil }

func (m *MockBackend) ResolveModelPath(basePath string) (string, error) {
	return basePath + "/model.bin", nil
}

type fakeModels map[string]*model.Instance

func (f fakeModels) GetTyped(id, modelType string) (*model.Instance, error) {
	m, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrModelNotFound, id)
	}
	if m.Type() != modelType {
		return nil, model.ErrModelTypeWrong
	}
	return m, nil
}

func testModels() fakeModels {
	return fakeModels{
		"flan":    model.NewInstance(&config.ModelConfig{Type: config.ModelTypeLLM, Backend: "llama.cpp"}, "flan", "/models/flan"),
		"whisper": model.NewInstance(&config.ModelConfig{Type: config.ModelTypeSTT, Backend: "whisper.cpp"}, "whisper", "/models/whisper"),
		"orphan":  model.NewInstance(&config.ModelConfig{Type: config.ModelTypeLLM, Backend: "none"}, "orphan", "/models/orphan"),
	}
}

func newRegistry(t *testing.T, backends ...backend.Backend) *backend.Registry {
	r := backend.NewRegistry()
	for _, b := range backends {
		require.NoError(t, r.Register(b))
	}
	return r
}

func textResponse(s string) *backend.Response {
	return &backend.Response{Output: strings.NewReader(s), Metadata: &backend.ResponseMetadata{}}
}

func TestLLM_Generate(t *testing.T) {
	llama := &MockBackend{provider: backend.BackendProviderLlamaCPP}
	llama.On("Infer", mock.Anything, mock.MatchedBy(func(req *backend.Request) bool {
		return req.ModelPath == "/models/flan/model.bin"
	})).Return(textResponse("hello"), nil)

	s := NewLLM(newRegistry(t, llama), testModels())

	resp, err := s.Generate(context.Background(), "flan", &backend.Request{Input: strings.NewReader("hi")})
	require.NoError(t, err)

	out, _ := io.ReadAll(resp.Output)
	assert.Equal(t, "hello", string(out))
	llama.AssertExpectations(t)
}

func TestLLM_GenerateErrors(t *testing.T) {
	s := NewLLM(newRegistry(t), testModels())

	_, err := s.Generate(context.Background(), "missing", &backend.Request{})
	assert.ErrorIs(t, err, model.ErrModelNotFound)

	_, err = s.Generate(context.Background(), "whisper", &backend.Request{})
	assert.ErrorIs(t, err, model.ErrModelTypeWrong)

	_, err = s.Generate(context.Background(), "orphan", &backend.Request{})
	assert.ErrorIs(t, err, backend.ErrBackendNotFound)
}

func TestLLM_GenerateStreamRequiresStreamingBackend(t *testing.T) {
	llama := &MockBackend{provider: backend.BackendProviderLlamaCPP}
	s := NewLLM(newRegistry(t, llama), testModels())

	_, err := s.GenerateStream(context.Background(), "flan", &backend.Request{})
	assert.ErrorIs(t, err, backend.ErrBackendNotStreamable)
}

func TestSTT_TranscribeText(t *testing.T) {
	whisper := &MockBackend{provider: backend.BackendProviderWhisperCPP}
	whisper.On("Infer", mock.Anything, mock.MatchedBy(func(req *backend.Request) bool {
		return req.Parameters["language"] == "en" && req.ModelPath == "/models/whisper/model.bin"
	})).Return(textResponse("  I love space travel.\n"), nil)

	s := NewSTT(newRegistry(t, whisper), testModels())

	text, err := s.TranscribeText(context.Background(), "whisper", "en", strings.NewReader("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "I love space travel.", text)
}

func TestSTT_TranscribeFailure(t *testing.T) {
	whisper := &MockBackend{provider: backend.BackendProviderWhisperCPP}
	whisper.On("Infer", mock.Anything, mock.Anything).Return(nil, errors.New("server down"))

	s := NewSTT(newRegistry(t, whisper), testModels())

	_, err := s.TranscribeText(context.Background(), "whisper", "", strings.NewReader("RIFF"))
	assert.ErrorContains(t, err, "server down")
}

func TestTextGenerator_Generate(t *testing.T) {
	llama := &MockBackend{provider: backend.BackendProviderLlamaCPP}
	llama.On("Infer", mock.Anything, mock.MatchedBy(func(req *backend.Request) bool {
		prompt, _ := io.ReadAll(req.Input)
		return string(prompt) == "A\nB" &&
			req.Parameters["n_predict"] == 50 &&
			req.Parameters["temperature"] == 1.0 &&
			req.Parameters["special"] == true
	})).Return(textResponse("<pad> a scientist </s>"), nil)

	g := NewTextGenerator(NewLLM(newRegistry(t, llama), testModels()), "flan", "<pad>")

	out, err := g.Generate(context.Background(), "A\nB", persona.GenerateOptions{MaxLength: 50, Temperature: 1.0})
	require.NoError(t, err)
	assert.Equal(t, "<pad> a scientist </s>", out)
	llama.AssertExpectations(t)
}

func TestTextGenerator_DrivesPipeline(t *testing.T) {
	llama := &MockBackend{provider: backend.BackendProviderLlamaCPP}
	llama.On("Infer", mock.Anything, mock.Anything).Return(func(context.Context, *backend.Request) *backend.Response {
		return textResponse("<pad> TEST </s>")
	}, nil)

	g := NewTextGenerator(NewLLM(newRegistry(t, llama), testModels()), "flan", "<pad>")

	result, err := persona.New(g, persona.Options{}).Run(context.Background(), []string{"person: I love space travel."})
	require.NoError(t, err)
	assert.Equal(t, "test", result.Thoughts)
	llama.AssertNumberOfCalls(t, "Infer", 5)
}

func TestPersona_ConfigureAndRun(t *testing.T) {
	llama := &MockBackend{provider: backend.BackendProviderLlamaCPP}
	llama.On("Infer", mock.Anything, mock.Anything).Return(func(context.Context, *backend.Request) *backend.Response {
		return textResponse("[[ Yes ]]")
	}, nil)

	p := NewPersona(NewLLM(newRegistry(t, llama), testModels()), config.PersonaConfig{})

	_, err := p.Run(context.Background(), []string{"person: hi"})
	assert.ErrorIs(t, err, ErrPersonaNotConfigured)

	p.Configure(config.PersonaConfig{
		Model:   "flan",
		Markers: config.MarkersConfig{Start: "[[", End: "]]"},
	})

	result, err := p.Run(context.Background(), []string{"person: hi"})
	require.NoError(t, err)
	assert.Equal(t, "yes", result.Intent)
}

func TestTextGenerator_RestoresImplicitStartMarker(t *testing.T) {
	llama := &MockBackend{provider: backend.BackendProviderLlamaCPP}
	llama.On("Infer", mock.Anything, mock.Anything).Return(func(context.Context, *backend.Request) *backend.Response {
		return textResponse(" a scientist </s>")
	}, nil)
	llm := NewLLM(newRegistry(t, llama), testModels())

	out, err := NewTextGenerator(llm, "flan", "<pad>").Generate(context.Background(), "A", persona.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "<pad>  a scientist </s>", out)

	out, err = NewTextGenerator(llm, "flan", "").Generate(context.Background(), "A", persona.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, " a scientist </s>", out)
}

func TestPersona_ImplicitStartMarker(t *testing.T) {
	llama := &MockBackend{provider: backend.BackendProviderLlamaCPP}
	llama.On("Infer", mock.Anything, mock.Anything).Return(func(context.Context, *backend.Request) *backend.Response {
		return textResponse(" A Scientist </s>")
	}, nil)
	llm := NewLLM(newRegistry(t, llama), testModels())

	result, err := NewPersona(llm, config.PersonaConfig{Model: "flan"}).Run(context.Background(), []string{"person: hi"})
	require.NoError(t, err)
	assert.Equal(t, "a scientist", result.PersonIs)

	disabled := false
	_, err = NewPersona(llm, config.PersonaConfig{
		Model:   "flan",
		Markers: config.MarkersConfig{ImplicitStart: &disabled},
	}).Run(context.Background(), []string{"person: hi"})
	assert.ErrorIs(t, err, persona.ErrMalformedOutput)
}
