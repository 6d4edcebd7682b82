package source

import (
	"context"
	"fmt"

	"github.com/ekisa-team/scribepod/internal/config"
	"github.com/ekisa-team/scribepod/internal/xfs"
)

// Downloader fetches a model into a local directory.
type Downloader interface {
	// Download places the model under targetDir and returns its path and
	// whether an up-to-date copy was already present.
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// GetDownloader returns the downloader for the given source type.
func GetDownloader(_ context.Context, sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}

// EnsureModelsDirectory creates the models directory and checks it is writable.
func EnsureModelsDirectory(path string) error {
	return xfs.EnsureWritableDir(path)
}
