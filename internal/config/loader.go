package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/scribepod/internal/envvar"
)

//go:embed scribepod.v1.schema.json
var embeddedSchema string

const embeddedSchemaURL = "scribepod.v1.schema.json"

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadAndValidate loads and validates the configuration.
// An empty schemaPath validates against the embedded schema.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	return Parse(data, schemaPath)
}

// Parse validates raw YAML against the schema and decodes it with defaults applied.
func Parse(data []byte, schemaPath string) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	if err := checkReferences(&config); err != nil {
		return nil, err
	}

	ApplyDefaults(&config)

	return &config, nil
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath == "" {
		return jsonschema.CompileString(embeddedSchemaURL, embeddedSchema)
	}

	if _, err := os.Stat(schemaPath); err != nil {
		return nil, err
	}

	return jsonschema.Compile(schemaPath)
}

// checkReferences verifies that every model referenced by a service exists with the right type.
func checkReferences(cfg *Config) error {
	check := func(service, wantType string, ids []string) error {
		for _, id := range ids {
			m, ok := cfg.Models[id]
			if !ok {
				return fmt.Errorf("config: services.%s references unknown model %q", service, id)
			}
			if m.Type != wantType {
				return fmt.Errorf("config: services.%s model %q has type %q, want %q", service, id, m.Type, wantType)
			}
		}
		return nil
	}

	if err := check("llm", ModelTypeLLM, cfg.Services.LLM.Models); err != nil {
		return err
	}
	if err := check("stt", ModelTypeSTT, cfg.Services.STT.Models); err != nil {
		return err
	}

	if cfg.Persona.Model != "" {
		if err := check("persona", ModelTypeLLM, []string{cfg.Persona.Model}); err != nil {
			return err
		}
	}

	return nil
}

// ApplyEnv overrides config values from environment variables.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(envvar.ServerHost); ok && v != "" {
		cfg.Server.Host = v
	}

	if v, ok := lookup(envvar.ServerPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("config: invalid %s %q", envvar.ServerPort, v)
		}
		cfg.Server.HTTPPort = port
	}

	if v, ok := lookup(envvar.CORSAllowedOrigins); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORS.AllowedOrigins = origins
	}

	if v, ok := lookup(envvar.RateLimitMaxRequests); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid %s %q", envvar.RateLimitMaxRequests, v)
		}
		cfg.Server.RateLimit.MaxRequests = n
	}

	if v, ok := lookup(envvar.RateLimitWindowMS); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("config: invalid %s %q", envvar.RateLimitWindowMS, v)
		}
		cfg.Server.RateLimit.Window = time.Duration(ms) * time.Millisecond
	}

	if v, ok := lookup(envvar.ScribepodModelsPath); ok && v != "" {
		cfg.Storage.ModelsDir = v
	}

	return nil
}
