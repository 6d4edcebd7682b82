package backend

// ModelLocator is implemented by backends whose downloaded model directory
// holds more than the file the runtime loads. The model manager stores a
// Hugging Face snapshot per model ID; the locator picks the weights inside it
// (a .gguf file for llama-cli, a ggml-*.bin file for whisper-server).
type ModelLocator interface {
	// ResolveModelPath returns the weights file to load from basePath. A path
	// that already names a file is returned as is. ErrModelFileNotFound is
	// returned when the directory holds no loadable weights.
	ResolveModelPath(basePath string) (string, error)
}
