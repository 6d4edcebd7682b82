package model

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/envvar"
	"github.com/ekisa-team/scribepod/internal/model/source"
)

type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	args := m.Called(ctx, modelConfig, targetDir)
	return args.String(0), args.Bool(1), args.Error(2)
}

func testConfig(dir string) *config.Config {
	llm := config.ModelConfig{Type: config.ModelTypeLLM, Backend: "llama.cpp"}
	llm.SetHuggingFaceSource(config.HuggingFaceSource{Repo: "google/flan-t5-xl"})
	stt := config.ModelConfig{Type: config.ModelTypeSTT, Backend: "whisper.cpp"}
	stt.SetHuggingFaceSource(config.HuggingFaceSource{Repo: "ggerganov/whisper.cpp"})

	return &config.Config{
		Storage: config.StorageConfig{ModelsDir: dir},
		Models: map[string]config.ModelConfig{
			"flan-t5-xl":    llm,
			"whisper-large": stt,
		},
		Services: config.ServicesConfig{
			LLM: config.ServicesConfigAssignment{Models: []string{"flan-t5-xl"}},
			STT: config.STTServiceConfig{Models: []string{"whisper-large", "missing"}},
		},
	}
}

func newTestManager(d source.Downloader) *Manager {
	return NewManager(WithDownloaderFunc(func(context.Context, config.SourceType) (source.Downloader, error) {
		return d, nil
	}))
}

func TestManager_LoadModelsFromConfig(t *testing.T) {
	t.Setenv(envvar.ScribepodModelsPath, "")
	dir := t.TempDir()

	d := new(MockDownloader)
	d.On("Download", mock.Anything, mock.Anything, dir).Return(filepath.Join(dir, "x"), false, nil).Twice()

	m := newTestManager(d)

	_, err := m.Get("flan-t5-xl")
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	require.NoError(t, m.LoadModelsFromConfig(context.Background(), testConfig(dir)))
	d.AssertExpectations(t)

	assert.Equal(t, 2, m.Registry().Len())

	instance, err := m.GetTyped("flan-t5-xl", config.ModelTypeLLM)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, instance.CurrentStatus())
	assert.NotNil(t, instance.ReadyAt)

	_, err = m.GetTyped("whisper-large", config.ModelTypeLLM)
	assert.ErrorIs(t, err, ErrModelTypeWrong)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestManager_ReloadDropsUnassignedModels(t *testing.T) {
	t.Setenv(envvar.ScribepodModelsPath, "")
	dir := t.TempDir()

	d := new(MockDownloader)
	d.On("Download", mock.Anything, mock.Anything, dir).Return(dir, true, nil)

	m := newTestManager(d)
	cfg := testConfig(dir)
	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg))

	cfg.Services.STT.Models = nil
	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg))

	_, err := m.Get("whisper-large")
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Equal(t, 1, m.Registry().Len())
}

func TestManager_DownloadFailureKeepsPreviousRegistry(t *testing.T) {
	t.Setenv(envvar.ScribepodModelsPath, "")
	dir := t.TempDir()

	ok := new(MockDownloader)
	ok.On("Download", mock.Anything, mock.Anything, dir).Return(dir, true, nil)
	m := newTestManager(ok)
	require.NoError(t, m.LoadModelsFromConfig(context.Background(), testConfig(dir)))
	before := m.Registry()

	failing := new(MockDownloader)
	failing.On("Download", mock.Anything, mock.Anything, dir).Return("", false, errors.New("network down"))
	m.getDownloader = func(context.Context, config.SourceType) (source.Downloader, error) { return failing, nil }

	err := m.LoadModelsFromConfig(context.Background(), testConfig(dir))
	assert.ErrorContains(t, err, "network down")
	assert.Same(t, before, m.Registry())
}

func TestResolveModelsPath(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{ModelsDir: "/data/models"}}

	t.Setenv(envvar.ScribepodModelsPath, "/env/models")
	assert.Equal(t, "/env/models", ResolveModelsPath(cfg))

	t.Setenv(envvar.ScribepodModelsPath, "")
	assert.Equal(t, "/data/models", ResolveModelsPath(cfg))

	assert.Equal(t, config.DefaultModelsPath(), ResolveModelsPath(&config.Config{}))
}
