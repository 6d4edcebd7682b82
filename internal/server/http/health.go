package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/env"
	"github.com/ekisa-team/scribepod/internal/model"
)

// Memory thresholds, in percent of physical memory used.
const (
	memoryWarningPercent  = 80.0
	memoryDegradedPercent = 90.0
)

// Readiness states.
const (
	StatusHealthy  = "healthy"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusDegraded = "degraded"
)

// ModelCatalog exposes the current model registry.
type ModelCatalog interface {
	Registry() *model.Registry
}

// MemoryProbe returns the percentage of physical memory in use.
type MemoryProbe func(ctx context.Context) (float64, error)

// SystemMemory reads memory usage from the host.
func SystemMemory(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

type (
	HealthResponseDTO struct {
		Status        string    `json:"status"`
		Service       string    `json:"service"`
		Timestamp     time.Time `json:"timestamp"`
		UptimeSeconds float64   `json:"uptime_seconds"`
		Environment   string    `json:"environment"`
		Version       string    `json:"version"`
		GoVersion     string    `json:"go_version"`
	}

	HealthOutput struct {
		Body HealthResponseDTO
	}

	ReadyResponseDTO struct {
		Status        string            `json:"status"`
		Timestamp     time.Time         `json:"timestamp"`
		Checks        map[string]string `json:"checks"`
		Backends      []string          `json:"backends"`
		MemoryPercent float64           `json:"memory_percent,omitempty"`
		MemoryStatus  string            `json:"memory_status,omitempty"`
	}

	ReadyOutput struct {
		Status int
		Body   ReadyResponseDTO
	}
)

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	started     time.Time
	version     string
	environment env.Environment
	models      ModelCatalog
	backends    *backend.Registry
	memory      MemoryProbe
	onReady     func(ready bool)
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithMemoryProbe replaces the host memory probe.
func WithMemoryProbe(probe MemoryProbe) HealthOption {
	return func(h *HealthHandler) {
		h.memory = probe
	}
}

// WithReadinessHook is called with the outcome of every readiness check.
func WithReadinessHook(fn func(ready bool)) HealthOption {
	return func(h *HealthHandler) {
		h.onReady = fn
	}
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(api huma.API, version string, environment env.Environment, models ModelCatalog, backends *backend.Registry, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		started:     time.Now(),
		version:     version,
		environment: environment,
		models:      models,
		backends:    backends,
		memory:      SystemMemory,
	}
	for _, opt := range opts {
		opt(h)
	}

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness check",
		Tags:        []string{"health"},
	}, h.handleHealth)

	huma.Register(api, huma.Operation{
		OperationID: "health-ready",
		Method:      http.MethodGet,
		Path:        "/health/ready",
		Summary:     "Readiness check for models, backends and memory",
		Tags:        []string{"health"},
		Responses: map[string]*huma.Response{
			"503": {Description: "Service not ready or degraded"},
		},
	}, h.handleReady)

	return h
}

func (h *HealthHandler) handleHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	return &HealthOutput{
		Body: HealthResponseDTO{
			Status:        StatusHealthy,
			Service:       "scribepod",
			Timestamp:     time.Now().UTC(),
			UptimeSeconds: time.Since(h.started).Seconds(),
			Environment:   string(h.environment),
			Version:       h.version,
			GoVersion:     runtime.Version(),
		},
	}, nil
}

func (h *HealthHandler) handleReady(ctx context.Context, _ *struct{}) (*ReadyOutput, error) {
	body := h.Check(ctx)

	status := http.StatusOK
	if body.Status != StatusReady {
		status = http.StatusServiceUnavailable
	}

	return &ReadyOutput{Status: status, Body: body}, nil
}

// Check runs every readiness check. The result status is ready, not_ready or degraded.
func (h *HealthHandler) Check(ctx context.Context) ReadyResponseDTO {
	body := ReadyResponseDTO{
		Status:    StatusReady,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
		Backends:  []string{},
	}

	var hasSTT, hasLLM bool
	if registry := h.models.Registry(); registry != nil {
		for _, instance := range registry.List() {
			if instance.CurrentStatus() != model.StatusReady {
				continue
			}
			switch instance.Type() {
			case config.ModelTypeSTT:
				hasSTT = true
			case config.ModelTypeLLM:
				hasLLM = true
			}
		}
	}

	body.Checks["whisper_model"] = loadedState(hasSTT)
	body.Checks["text_model"] = loadedState(hasLLM)
	if !hasSTT || !hasLLM {
		body.Status = StatusNotReady
	}

	if h.backends != nil {
		for _, p := range h.backends.Providers() {
			body.Backends = append(body.Backends, string(p))
		}
	}
	if len(body.Backends) == 0 {
		body.Checks["backends"] = "none"
		body.Status = StatusNotReady
	} else {
		body.Checks["backends"] = "ok"
	}

	used, err := h.memory(ctx)
	switch {
	case err != nil:
		body.Checks["memory"] = fmt.Sprintf("unknown: %v", err)
	case used > memoryDegradedPercent:
		body.Checks["memory"] = "critical"
		body.MemoryPercent = used
		body.MemoryStatus = "critical"
		if body.Status == StatusReady {
			body.Status = StatusDegraded
		}
	case used > memoryWarningPercent:
		body.Checks["memory"] = "warning"
		body.MemoryPercent = used
		body.MemoryStatus = "warning"
	default:
		body.Checks["memory"] = "ok"
		body.MemoryPercent = used
	}

	if h.onReady != nil {
		h.onReady(body.Status == StatusReady)
	}

	return body
}

func loadedState(ok bool) string {
	if ok {
		return "loaded"
	}
	return "not_loaded"
}
