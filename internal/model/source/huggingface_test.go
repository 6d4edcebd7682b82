package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scribepod/internal/config"
)

func hfModel(repo, revision string) *config.ModelConfig {
	m := &config.ModelConfig{Type: config.ModelTypeLLM}
	m.SetHuggingFaceSource(config.HuggingFaceSource{Repo: repo, Revision: revision})
	return m
}

func TestHuggingFaceDownloader_SkipsWhenMarkerMatches(t *testing.T) {
	dir := t.TempDir()
	d := NewHuggingFaceDownloader()
	d.binPath = filepath.Join(dir, "missing-hf")

	repoDir := filepath.Join(dir, "google", "flan-t5-xl")
	require.NoError(t, os.MkdirAll(repoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, markerFilename), []byte(d.markerContent("google/flan-t5-xl", "main")), 0o644))

	path, cached, err := d.Download(context.Background(), hfModel("google/flan-t5-xl", "main"), dir)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, repoDir, path)
}

func TestHuggingFaceDownloader_FailsAfterRetries(t *testing.T) {
	dir := t.TempDir()
	d := NewHuggingFaceDownloader()
	d.binPath = filepath.Join(dir, "missing-hf")
	d.retryDelay = 0
	d.maxRetries = 2

	_, _, err := d.Download(context.Background(), hfModel("google/flan-t5-xl", ""), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestHuggingFaceDownloader_RejectsEmptyRepo(t *testing.T) {
	_, _, err := NewHuggingFaceDownloader().Download(context.Background(), hfModel("  ", ""), t.TempDir())
	assert.Error(t, err)
}

func TestHuggingFaceDownloader_BuildArgs(t *testing.T) {
	d := NewHuggingFaceDownloader()

	args := d.buildArgs(config.HuggingFaceSource{
		Revision:   "v1",
		Include:    []string{"*.gguf"},
		MaxWorkers: 4,
	}, "org/repo", "/models/org/repo")

	assert.Equal(t, []string{
		"download", "org/repo", "--local-dir", "/models/org/repo",
		"--revision", "v1",
		"--include", "*.gguf",
		"--max-workers", "4",
	}, args)
}

func TestHuggingFaceDownloader_ShouldRedownload(t *testing.T) {
	d := NewHuggingFaceDownloader()
	marker := filepath.Join(t.TempDir(), markerFilename)

	assert.True(t, d.shouldRedownload(marker, "x"))

	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))
	assert.False(t, d.shouldRedownload(marker, "x"))
	assert.True(t, d.shouldRedownload(marker, "y"))
}

func TestGetDownloader(t *testing.T) {
	d, err := GetDownloader(context.Background(), config.SourceTypeHuggingFace)
	require.NoError(t, err)
	assert.IsType(t, &HuggingFaceDownloader{}, d)

	_, err = GetDownloader(context.Background(), "s3")
	assert.Error(t, err)
}
