package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Engine talks to a local or remote Ollama server hosting a vision model
// (llava, minicpm-v, qwen2.5vl, ...).
type Engine struct {
	Model  string
	client *api.Client
}

// New builds an engine for the server at ollamaURL. Any path on the URL is
// dropped. A nil httpc means http.DefaultClient.
func New(ollamaURL, model string, httpc *http.Client) (*Engine, error) {
	parsed, err := url.Parse(strings.TrimSpace(ollamaURL))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", ollamaURL)
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Engine{
		Model:  strings.TrimSpace(model),
		client: api.NewClient(base, httpc),
	}, nil
}

func (e *Engine) Name() string     { return "ollama" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Analyze(ctx context.Context, prompt string, image []byte, _ string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("ollama: empty image")
	}
	stream := false
	req := &api.ChatRequest{
		Model: e.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(image)},
			},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": 0},
	}

	var out strings.Builder
	err := e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat (%s): %w", e.Model, err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", errors.New("ollama: empty response")
	}
	return out.String(), nil
}
