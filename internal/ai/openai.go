package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leapstack-labs/pith/internal/config"
	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures a runtime backed by an OpenAI-compatible local
// server such as llama.cpp, Ollama or vLLM.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	// CacheDir records which models have been loaded.
	CacheDir string
	// Accelerator is auto, require or off.
	Accelerator string
	Detect      Detector
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// OpenAIRuntime serves models through an OpenAI-compatible endpoint.
type OpenAIRuntime struct {
	client  *openai.Client
	baseURL string
	cache   *DirCache
	mode    string
	detect  Detector
	logger  *slog.Logger
}

var _ Runtime = (*OpenAIRuntime)(nil)

// NewOpenAIRuntime creates the runtime.
func NewOpenAIRuntime(cfg OpenAIConfig) *OpenAIRuntime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	mode := cfg.Accelerator
	if mode == "" {
		mode = config.DefaultAccelerator
	}
	detect := cfg.Detect
	if detect == nil {
		detect = DetectAccelerator
	}
	return &OpenAIRuntime{
		client:  openai.NewClientWithConfig(clientConfig),
		baseURL: clientConfig.BaseURL,
		cache:   NewDirCache(cfg.CacheDir),
		mode:    mode,
		detect:  detect,
		logger:  logger,
	}
}

// Probe checks for an accelerator according to the configured mode. In auto
// mode a missing accelerator only logs a warning.
func (r *OpenAIRuntime) Probe(_ context.Context) error {
	if r.mode == config.AcceleratorOff {
		return nil
	}
	name, ok := r.detect()
	if ok {
		r.logger.Debug("detected accelerator", "accelerator", name)
		return nil
	}
	if r.mode == config.AcceleratorRequire {
		return &UnsupportedPlatformError{Reason: "no GPU acceleration found (CUDA, ROCm, Vulkan or Apple silicon required)"}
	}
	r.logger.Warn("no GPU acceleration found, inference will run on CPU")
	return nil
}

// NewEngine returns an unloaded engine.
func (r *OpenAIRuntime) NewEngine() Engine {
	return &openAIEngine{runtime: r}
}

// Cache returns the weight cache.
func (r *OpenAIRuntime) Cache() Cache {
	return r.cache
}

type openAIEngine struct {
	runtime  *OpenAIRuntime
	model    string
	progress ProgressFunc
}

func (e *openAIEngine) SetProgressCallback(fn ProgressFunc) {
	e.progress = fn
}

func (e *openAIEngine) report(text string, value float64) {
	if e.progress != nil {
		e.progress(Progress{Text: text, Value: value})
	}
}

// Reload checks that the server offers modelID and warms it up with a
// one-token completion, which makes the server load the weights.
func (e *openAIEngine) Reload(ctx context.Context, modelID string) error {
	r := e.runtime
	e.report(fmt.Sprintf("Connecting to model server at %s", r.baseURL), 0)

	list, err := r.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach model server: %w", err)
	}
	found := false
	for _, m := range list.Models {
		if m.ID == modelID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("model %s is not served by %s", modelID, r.baseURL)
	}

	e.report(fmt.Sprintf("Loading model %s", modelID), 0.5)
	_, err = r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     modelID,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", modelID, err)
	}

	if err := r.cache.Mark(modelID, r.baseURL); err != nil {
		r.logger.Warn("failed to record cached model", "model_id", modelID, "error", err)
	}
	e.model = modelID
	e.report("Model loaded", 1)
	return nil
}

func (e *openAIEngine) ChatStream(ctx context.Context, req ChatRequest) (Stream, error) {
	if e.model == "" {
		return nil, &EngineNotInitializedError{}
	}
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	stream, err := e.runtime.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	return &openAIStream{stream: stream}, nil
}

// Unload forgets the model. The server keeps its own residency policy.
func (e *openAIEngine) Unload(_ context.Context) error {
	e.model = ""
	return nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	s.stream.Close()
	return nil
}
