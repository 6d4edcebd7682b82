package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/envvar"
	"github.com/ekisa-team/scribepod/internal/model/source"
	"github.com/ekisa-team/scribepod/internal/xfs"
)

// DownloaderFunc resolves the downloader for a model source type.
type DownloaderFunc func(ctx context.Context, sourceType config.SourceType) (source.Downloader, error)

// Manager orchestrates the model lifecycle for every assigned model.
type Manager struct {
	registry      *Registry
	getDownloader DownloaderFunc
	mu            sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDownloaderFunc overrides how downloaders are resolved.
func WithDownloaderFunc(fn DownloaderFunc) ManagerOption {
	return func(m *Manager) {
		m.getDownloader = fn
	}
}

// NewManager creates a new Manager instance.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{getDownloader: source.GetDownloader}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the current model registry. It is nil until models are loaded.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// Get returns a ready model instance by ID from the current registry.
func (m *Manager) Get(id string) (*Instance, error) {
	registry := m.Registry()
	if registry == nil {
		return nil, ErrModelNotLoaded
	}

	instance, ok := registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}

	return instance, nil
}

// GetTyped returns a model by ID, checking that it has the expected type.
func (m *Manager) GetTyped(id, modelType string) (*Instance, error) {
	instance, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if instance.Type() != modelType {
		return nil, fmt.Errorf("%w: %s is %q, want %q", ErrModelTypeWrong, id, instance.Type(), modelType)
	}
	return instance, nil
}

// LoadModelsFromConfig downloads every assigned model and swaps in a fresh registry.
// Models that are no longer assigned are dropped.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, cfg *config.Config) error {
	modelsPath := ResolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	registry := NewRegistry()

	for _, modelID := range cfg.Services.AssignedModels() {
		modelConfig, ok := cfg.Models[modelID]
		if !ok {
			slog.Warn("Model not found in config", "model_id", modelID)
			continue
		}

		modelSource, err := modelConfig.GetSource()
		if err != nil {
			return fmt.Errorf("failed to get model source for %s: %w", modelID, err)
		}

		downloader, err := m.getDownloader(ctx, modelSource.Type())
		if err != nil {
			return fmt.Errorf("failed to get downloader for %s: %w", modelID, err)
		}

		downloadPath, cached, err := downloader.Download(ctx, &modelConfig, modelsPath)
		if err != nil {
			return fmt.Errorf("failed to download model %s into %s: %w", modelID, modelsPath, err)
		}

		instance := NewInstance(&modelConfig, modelID, downloadPath)
		instance.SetStatus(StatusReady)
		registry.Set(instance)

		slog.Info("Model registered", "model_id", modelID, "path", downloadPath, "cached", cached)
	}

	m.mu.Lock()
	previous := m.registry
	m.registry = registry
	m.mu.Unlock()

	if previous != nil {
		for _, instance := range previous.List() {
			if _, ok := registry.Get(instance.ID); !ok {
				slog.Info("Model removed from registry", "model_id", instance.ID)
			}
		}
	}

	return nil
}

// ResolveModelsPath returns the path to the models directory.
// Precedence:
// 1. SCRIBEPOD_MODELS_PATH environment variable.
// 2. storage.models_dir in the config.
// 3. Default models path.
func ResolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.ScribepodModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
