package service

import (
	"fmt"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/model"
)

// ModelResolver looks up a prepared model by ID and type.
type ModelResolver interface {
	GetTyped(id, modelType string) (*model.Instance, error)
}

// resolve finds the model, the backend it is configured for, and the file the backend should load.
func resolve(backends *backend.Registry, models ModelResolver, modelID, modelType string) (backend.Backend, string, error) {
	m, err := models.GetTyped(modelID, modelType)
	if err != nil {
		return nil, "", err
	}

	provider := backend.BackendProvider(m.Config.Backend)
	b, ok := backends.Get(provider)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", backend.ErrBackendNotFound, provider)
	}

	path := m.Path
	if locator, ok := b.(backend.ModelLocator); ok {
		resolved, err := locator.ResolveModelPath(m.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve model path for %s: %w", modelID, err)
		}
		path = resolved
	}

	return b, path, nil
}
