package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ekisa-team/scribepod/internal/backend"
	"github.com/ekisa-team/scribepod/internal/mapsafe"
)

// BackendName is the server name used with the ServerManager.
const BackendName = "whisper-server"

// Options holds process-wide whisper.cpp settings.
type Options struct {
	// Port the managed whisper-server listens on.
	Port int

	// Timeout bounds a single transcription request.
	Timeout time.Duration

	// Threads passed to whisper-server; zero keeps its default.
	Threads int

	// ServerURL points at an already running whisper-server. When set no process is managed.
	ServerURL string
}

// ServerController starts and stops the managed whisper-server process.
// *backend.ServerManager satisfies it.
type ServerController interface {
	StartServer(cfg backend.ServerConfig) error
	StopServer(name string, port int) error
}

// Backend implements backend.Backend for whisper.cpp.
//
// whisper-server loads a single model at startup. A request for a different
// model waits for in-flight transcriptions, then restarts the server on it.
type Backend struct {
	binPath       string
	serverManager ServerController
	client        *http.Client
	opts          Options

	mu    sync.RWMutex
	model string // model loaded by the managed server, empty when stopped
}

// TranscriptionRequest represents a request to the whisper-server API.
type TranscriptionRequest struct {
	Language     string  `json:"language,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	BeamSize     int     `json:"beam_size,omitempty"`
	BestOf       int     `json:"best_of,omitempty"`
	Translate    bool    `json:"translate,omitempty"`
	NoTimestamps bool    `json:"no_timestamps,omitempty"`
	Prompt       string  `json:"prompt,omitempty"`
}

// TranscriptionResponse represents a response from the whisper-server API.
type TranscriptionResponse struct {
	Task                        string              `json:"task,omitempty"`
	Language                    string              `json:"language,omitempty"`
	Duration                    float64             `json:"duration,omitempty"`
	Text                        string              `json:"text,omitempty"`
	Segments                    []TranscriptSegment `json:"segments,omitempty"`
	DetectedLanguage            string              `json:"detected_language,omitempty"`
	DetectedLanguageProbability float64             `json:"detected_language_probability,omitempty"`
}

// TranscriptSegment represents a single segment in the transcription.
type TranscriptSegment struct {
	ID           int     `json:"id"`
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Temperature  float64 `json:"temperature,omitempty"`
	AvgLogprob   float64 `json:"avg_logprob,omitempty"`
	NoSpeechProb float64 `json:"no_speech_prob,omitempty"`
}

// NewBackend creates a new Backend instance.
func NewBackend(binPath string, serverManager ServerController, opts Options) *Backend {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}

	return &Backend{
		binPath:       binPath,
		serverManager: serverManager,
		client:        &http.Client{Timeout: opts.Timeout},
		opts:          opts,
	}
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	if b.opts.ServerURL != "" || b.serverManager == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.model = ""
	return b.serverManager.StopServer(BackendName, b.opts.Port)
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderWhisperCPP
}

// ResolveModelPath picks the ggml model file inside a downloaded model directory.
func (b *Backend) ResolveModelPath(basePath string) (string, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return basePath, nil
	}

	matches, err := filepath.Glob(filepath.Join(basePath, "ggml-*.bin"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no ggml-*.bin file in %s", backend.ErrModelFileNotFound, basePath)
	}

	sort.Strings(matches)
	return matches[0], nil
}

// Infer implements backend.Backend. Input is WAV audio, output is the transcribed text.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	baseURL, release, err := b.acquireServer(req.ModelPath)
	if err != nil {
		return nil, err
	}
	defer release()

	if req.Input == nil {
		return nil, fmt.Errorf("failed to read audio input: no input")
	}

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, req.Input); err != nil {
		return nil, fmt.Errorf("failed to read audio input: %w", err)
	}

	if err := b.addTranscriptionParams(writer, b.buildTranscriptionRequest(req)); err != nil {
		return nil, fmt.Errorf("failed to add parameters: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/inference", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Seconds()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return nil, fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, body)
	}

	var transcriptionResp TranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&transcriptionResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	text := strings.TrimSpace(transcriptionResp.Text)

	return &backend.Response{
		Output: strings.NewReader(text),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           req.ModelPath,
			Timestamp:       time.Now(),
			DurationSeconds: elapsed,
			OutputSizeBytes: int64(len(text)),
			BackendSpecific: map[string]any{
				"language": transcriptionResp.Language,
				"segments": len(transcriptionResp.Segments),
			},
		},
	}, nil
}

// acquireServer returns the base URL of a whisper-server serving modelPath.
// The caller must call release once the request against it is done.
func (b *Backend) acquireServer(modelPath string) (baseURL string, release func(), err error) {
	if b.opts.ServerURL != "" {
		return strings.TrimSuffix(b.opts.ServerURL, "/"), func() {}, nil
	}

	baseURL = fmt.Sprintf("http://127.0.0.1:%d", b.opts.Port)
	for {
		b.mu.RLock()
		if b.model == modelPath {
			return baseURL, b.mu.RUnlock, nil
		}
		b.mu.RUnlock()

		if err := b.switchModel(modelPath); err != nil {
			return "", nil, err
		}
	}
}

// switchModel restarts the managed server on modelPath unless it already serves it.
func (b *Backend) switchModel(modelPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model == modelPath {
		return nil
	}

	if b.model != "" {
		slog.Info("Switching whisper model", "from", b.model, "to", modelPath)
		if err := b.serverManager.StopServer(BackendName, b.opts.Port); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		b.model = ""
	}

	args := []string{
		"--model", modelPath,
		"--port", strconv.Itoa(b.opts.Port),
		"--host", "127.0.0.1",
	}
	if b.opts.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(b.opts.Threads))
	}

	if err := b.serverManager.StartServer(backend.ServerConfig{
		Name:       BackendName,
		BinPath:    b.binPath,
		Args:       args,
		Port:       b.opts.Port,
		HealthPath: "/", // whisper-server has no dedicated health endpoint
	}); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	b.model = modelPath

	return nil
}

// buildTranscriptionRequest builds a TranscriptionRequest from a backend.Request.
func (b *Backend) buildTranscriptionRequest(req *backend.Request) *TranscriptionRequest {
	p := req.Parameters

	return &TranscriptionRequest{
		Language:     mapsafe.Get(p, "language", ""),
		Temperature:  mapsafe.Get(p, "temperature", 0.0),
		Translate:    mapsafe.Get(p, "translate", false),
		NoTimestamps: mapsafe.Get(p, "no_timestamps", false),
		Prompt:       mapsafe.Get(p, "prompt", ""),
		BeamSize:     mapsafe.Get(p, "beam_size", -1),
		BestOf:       mapsafe.Get(p, "best_of", 2),
	}
}

// addTranscriptionParams adds transcription parameters to the multipart writer.
func (b *Backend) addTranscriptionParams(w *multipart.Writer, req *TranscriptionRequest) error {
	params := map[string]string{
		"response_format": "verbose_json",
		"temperature":     fmt.Sprintf("%.2f", req.Temperature),
		"translate":       strconv.FormatBool(req.Translate),
		"no_timestamps":   strconv.FormatBool(req.NoTimestamps),
	}

	if req.Language != "" {
		params["language"] = req.Language
	}

	if req.BeamSize >= 0 {
		params["beam_size"] = strconv.Itoa(req.BeamSize)
	}

	if req.BestOf > 0 {
		params["best_of"] = strconv.Itoa(req.BestOf)
	}

	if req.Prompt != "" {
		params["prompt"] = req.Prompt
	}

	for key, value := range params {
		if err := w.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	return nil
}
