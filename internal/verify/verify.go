// Package verify checks that the external runtime dependencies of the server
// are present before it is started.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/model"
	"github.com/ekisa-team/scribepod/internal/model/source"
	"github.com/ekisa-team/scribepod/internal/xfs"
)

// Check is a single named dependency check.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result is the outcome of one check.
type Result struct {
	Name string
	Err  error
}

// Report holds every check outcome, in order.
type Report struct {
	Results []Result
}

// Failed returns the number of failed checks.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return r.Failed() == 0
}

// Write prints one [OK]/[FAIL] line per check followed by a summary.
func (r *Report) Write(w io.Writer) error {
	for _, res := range r.Results {
		var err error
		if res.Err != nil {
			_, err = fmt.Fprintf(w, "[FAIL] %s: %v\n", res.Name, res.Err)
		} else {
			_, err = fmt.Fprintf(w, "[OK] %s\n", res.Name)
		}
		if err != nil {
			return err
		}
	}

	passed := len(r.Results) - r.Failed()
	if _, err := fmt.Fprintf(w, "\n%d/%d checks passed\n", passed, len(r.Results)); err != nil {
		return err
	}

	if r.OK() {
		_, err := fmt.Fprintln(w, "All dependencies are available.")
		return err
	}
	_, err := fmt.Fprintln(w, "Some dependencies are missing; install them before starting scribepod.")
	return err
}

// Run executes every check in order. Checks never stop each other.
func Run(ctx context.Context, checks []Check) *Report {
	report := &Report{Results: make([]Result, 0, len(checks))}
	for _, c := range checks {
		report.Results = append(report.Results, Result{Name: c.Name, Err: c.Run(ctx)})
	}
	return report
}

// LookPathFunc resolves an executable, as exec.LookPath does.
type LookPathFunc func(file string) (string, error)

// DefaultChecks builds the checks for a config file. The config is loaded once
// and the binary and models directory checks use the loaded values.
func DefaultChecks(configPath, schemaPath string, lookPath LookPathFunc) []Check {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	cfg, cfgErr := config.LoadAndValidate(configPath, schemaPath)
	if cfg == nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil && cfgErr == nil {
		cfgErr = err
	}

	return []Check{
		{
			Name: "config " + configPath,
			Run:  func(context.Context) error { return cfgErr },
		},
		binaryCheck("llama.cpp ("+cfg.Backends.LlamaCPP.BinPath+")", cfg.Backends.LlamaCPP.BinPath, lookPath),
		binaryCheck("whisper.cpp ("+cfg.Backends.WhisperCPP.BinPath+")", cfg.Backends.WhisperCPP.BinPath, lookPath),
		binaryCheck("hugging face cli ("+source.HFBinary+")", source.HFBinary, lookPath),
		{
			Name: "models directory " + model.ResolveModelsPath(cfg),
			Run: func(context.Context) error {
				return xfs.EnsureWritableDir(model.ResolveModelsPath(cfg))
			},
		},
	}
}

func binaryCheck(name, bin string, lookPath LookPathFunc) Check {
	return Check{
		Name: name,
		Run: func(context.Context) error {
			if _, err := lookPath(bin); err != nil {
				return fmt.Errorf("not found on PATH: %w", err)
			}
			return nil
		},
	}
}
