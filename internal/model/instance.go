package model

import (
	"sync"
	"time"

	"github.com/ekisa-team/scribepod/internal/config"
)

// Status is the current availability of a model on disk.
type Status string

const (
	// StatusPending indicates that the model has been configured but not downloaded yet.
	StatusPending Status = "pending"

	// StatusReady indicates that the model files are on disk.
	StatusReady Status = "ready"

	// StatusFailed indicates that the model could not be prepared.
	StatusFailed Status = "failed"
)

// Instance represents a configured model and where its files live.
type Instance struct {
	Config  *config.ModelConfig `json:"config"`
	ReadyAt *time.Time          `json:"ready_at,omitempty"`
	ID      string              `json:"id"`
	Path    string              `json:"-"`
	Status  Status              `json:"status"`
	Error   string              `json:"error,omitempty"`
	mu      sync.RWMutex
}

// NewInstance creates a new model instance.
func NewInstance(cfg *config.ModelConfig, id, path string) *Instance {
	return &Instance{
		ID:     id,
		Path:   path,
		Config: cfg,
		Status: StatusPending,
	}
}

// Type returns the configured model type (llm, stt).
func (i *Instance) Type() string {
	if i.Config == nil {
		return ""
	}
	return i.Config.Type
}

// SetStatus sets the status of the model instance.
func (i *Instance) SetStatus(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.Status = status
	if status == StatusReady {
		now := time.Now()
		i.ReadyAt = &now
	}
}

// CurrentStatus returns the status under the instance lock.
func (i *Instance) CurrentStatus() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.Status
}

// SetError marks the instance as failed with the given error.
func (i *Instance) SetError(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.Status = StatusFailed
	i.Error = err.Error()
}
