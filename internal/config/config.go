package config

import (
	"errors"
	"time"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// Model types understood by the manager.
const (
	ModelTypeLLM = "llm"
	ModelTypeSTT = "stt"
)

// Config holds the main configuration for the application.
type Config struct {
	Version  string                 `json:"version"            yaml:"version"`
	Server   ServerConfig           `json:"server,omitempty"   yaml:"server,omitempty"`
	Storage  StorageConfig          `json:"storage,omitempty"  yaml:"storage,omitempty"`
	Backends BackendsConfig         `json:"backends,omitempty" yaml:"backends,omitempty"`
	Models   map[string]ModelConfig `json:"models"             yaml:"models"`
	Services ServicesConfig         `json:"services"           yaml:"services"`
	Persona  PersonaConfig          `json:"persona,omitempty"  yaml:"persona,omitempty"`
}

// ServerConfig holds the inbound HTTP/gRPC settings.
type ServerConfig struct {
	Host      string          `json:"host,omitempty"       yaml:"host,omitempty"`
	HTTPPort  int             `json:"http_port,omitempty"  yaml:"http_port,omitempty"`
	GRPCPort  int             `json:"grpc_port,omitempty"  yaml:"grpc_port,omitempty"`
	CORS      CORSConfig      `json:"cors,omitempty"       yaml:"cors,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// CORSConfig lists the origins browsers may call the API from.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// RateLimitConfig bounds requests per client address.
type RateLimitConfig struct {
	MaxRequests         int           `json:"max_requests,omitempty"          yaml:"max_requests,omitempty"`
	Window              time.Duration `json:"window,omitempty"                yaml:"window,omitempty"`
	TranscribePerMinute int           `json:"transcribe_per_minute,omitempty" yaml:"transcribe_per_minute,omitempty"`
}

// StorageConfig holds configuration for caching and auto-download.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// BackendsConfig holds the locations of the inference binaries.
type BackendsConfig struct {
	LlamaCPP   BackendConfig `json:"llama_cpp,omitempty"   yaml:"llama_cpp,omitempty"`
	WhisperCPP BackendConfig `json:"whisper_cpp,omitempty" yaml:"whisper_cpp,omitempty"`
}

// BackendConfig configures a single inference binary.
type BackendConfig struct {
	BinPath string        `json:"bin_path,omitempty" yaml:"bin_path,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"  yaml:"timeout,omitempty"`
	Port    int           `json:"port,omitempty"     yaml:"port,omitempty"`
	Threads int           `json:"threads,omitempty"  yaml:"threads,omitempty"`
	UseGPU  bool          `json:"use_gpu,omitempty"  yaml:"use_gpu,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source  SourceConfig `json:"source"  yaml:"source"`
	Type    string       `json:"type"    yaml:"type"`
	Backend string       `json:"backend" yaml:"backend"`
	Tags    []string     `json:"tags"    yaml:"tags"`
	Order   int          `json:"order"   yaml:"order"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// ServicesConfig holds configuration for all services.
type ServicesConfig struct {
	LLM ServicesConfigAssignment `json:"llm" yaml:"llm"`
	STT STTServiceConfig         `json:"stt" yaml:"stt"`
}

// ServicesConfigAssignment holds model assignments for a service.
type ServicesConfigAssignment struct {
	Models []string `json:"models" yaml:"models"` // List of model IDs
}

// STTServiceConfig assigns speech models and the default transcription language.
type STTServiceConfig struct {
	Models   []string `json:"models"             yaml:"models"`
	Language string   `json:"language,omitempty" yaml:"language,omitempty"`
}

// PersonaConfig tunes the persona inference pipeline.
type PersonaConfig struct {
	// Model is the LLM model ID used for every stage. Defaults to the first LLM model.
	Model             string        `json:"model,omitempty"               yaml:"model,omitempty"`
	Timeout           time.Duration `json:"timeout,omitempty"             yaml:"timeout,omitempty"`
	Parallel          bool          `json:"parallel,omitempty"            yaml:"parallel,omitempty"`
	MaxLength         int           `json:"max_length,omitempty"          yaml:"max_length,omitempty"`
	ThoughtsMaxLength int           `json:"thoughts_max_length,omitempty" yaml:"thoughts_max_length,omitempty"`
	Temperature       *float64      `json:"temperature,omitempty"         yaml:"temperature,omitempty"`
	Markers           MarkersConfig `json:"markers,omitempty"             yaml:"markers,omitempty"`
}

// MarkersConfig holds the sentinel tokens around a generated answer.
type MarkersConfig struct {
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	End   string `json:"end,omitempty"   yaml:"end,omitempty"`

	// ImplicitStart restores a start marker the runtime consumed as the
	// decoder start token instead of printing it. Defaults to true.
	ImplicitStart *bool `json:"implicit_start,omitempty" yaml:"implicit_start,omitempty"`
}

// AssignedModels returns the IDs of every model assigned to a service, without duplicates.
func (s ServicesConfig) AssignedModels() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(s.LLM.Models)+len(s.STT.Models))

	for _, list := range [][]string{s.LLM.Models, s.STT.Models} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	return ids
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	if m.Source.HuggingFace != nil {
		return *m.Source.HuggingFace, nil
	}

	return nil, errors.New("no source configured for model")
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source.HuggingFace = &source
}
