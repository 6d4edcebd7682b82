package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Defaults applied to any field left empty by the config file.
const (
	DefaultHost                = "localhost"
	DefaultLanguage            = "en"
	DefaultMaxRequests         = 60
	DefaultRateWindow          = time.Minute
	DefaultTranscribePerMinute = 30
	DefaultPersonaTimeout      = 2 * time.Minute
	DefaultMaxLength           = 2000
	DefaultThoughtsMaxLength   = 50
	DefaultTemperature         = 1.0
	DefaultStartMarker         = "<pad>"
	DefaultEndMarker           = "</s"
	DefaultLlamaBin            = "llama-cli"
	DefaultLlamaTimeout        = 2 * time.Minute
	DefaultWhisperBin          = "whisper-server"
	DefaultWhisperPort         = 8082
	DefaultWhisperTimeout      = 5 * time.Minute
)

// DefaultAllowedOrigins are the browser origins allowed when none are configured.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:4200"}

// DefaultHTTPPort returns the default HTTP port.
func DefaultHTTPPort() int {
	return 5000
}

// DefaultGRPCPort returns the default gRPC port.
func DefaultGRPCPort() int {
	return 5001
}

// DefaultConfigPath returns the default path for the scribepod config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scribepod", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "scribepod")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "scribepod")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "scribepod")
		}
		return filepath.Join(home, ".config", "scribepod")
	}
}

// DefaultModelsPath returns the default path for the scribepod models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scribepod", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "scribepod", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "scribepod", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "scribepod", "models")
		}
		return filepath.Join(home, ".cache", "scribepod", "models")
	}
}

// ApplyDefaults fills empty fields with their defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.HTTPPort == 0 {
		s.HTTPPort = DefaultHTTPPort()
	}
	if s.GRPCPort == 0 {
		s.GRPCPort = DefaultGRPCPort()
	}
	if len(s.CORS.AllowedOrigins) == 0 {
		s.CORS.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if s.RateLimit.MaxRequests == 0 {
		s.RateLimit.MaxRequests = DefaultMaxRequests
	}
	if s.RateLimit.Window == 0 {
		s.RateLimit.Window = DefaultRateWindow
	}
	if s.RateLimit.TranscribePerMinute == 0 {
		s.RateLimit.TranscribePerMinute = DefaultTranscribePerMinute
	}

	b := &cfg.Backends
	if b.LlamaCPP.BinPath == "" {
		b.LlamaCPP.BinPath = DefaultLlamaBin
	}
	if b.LlamaCPP.Timeout == 0 {
		b.LlamaCPP.Timeout = DefaultLlamaTimeout
	}
	if b.WhisperCPP.BinPath == "" {
		b.WhisperCPP.BinPath = DefaultWhisperBin
	}
	if b.WhisperCPP.Port == 0 {
		b.WhisperCPP.Port = DefaultWhisperPort
	}
	if b.WhisperCPP.Timeout == 0 {
		b.WhisperCPP.Timeout = DefaultWhisperTimeout
	}

	if cfg.Services.STT.Language == "" {
		cfg.Services.STT.Language = DefaultLanguage
	}

	p := &cfg.Persona
	if p.Model == "" && len(cfg.Services.LLM.Models) > 0 {
		p.Model = cfg.Services.LLM.Models[0]
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultPersonaTimeout
	}
	if p.MaxLength == 0 {
		p.MaxLength = DefaultMaxLength
	}
	if p.ThoughtsMaxLength == 0 {
		p.ThoughtsMaxLength = DefaultThoughtsMaxLength
	}
	if p.Temperature == nil {
		temperature := DefaultTemperature
		p.Temperature = &temperature
	}
	if p.Markers.Start == "" {
		p.Markers.Start = DefaultStartMarker
	}
	if p.Markers.End == "" {
		p.Markers.End = DefaultEndMarker
	}
	if p.Markers.ImplicitStart == nil {
		implicit := true
		p.Markers.ImplicitStart = &implicit
	}
}
