package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"courseassist/internal/chat"
	"courseassist/internal/config"
)

// Mistral текстовый адаптер Mistral API. Системный промпт уходит
// отдельным полем запроса, в списке остаются только непустые
// user/assistant-сообщения. Звук не поддерживается.
type Mistral struct {
	apiKey        string
	baseURL       string
	model         string
	fallbackModel string
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewMistral(cfg config.MistralConfig, httpClient *http.Client, logger *slog.Logger) *Mistral {
	return &Mistral{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		httpClient:    httpClient,
		logger:        logger,
	}
}

func (m *Mistral) Name() string { return config.ProviderMistral }

func (m *Mistral) Generate(ctx context.Context, req Request) (Result, error) {
	if m.apiKey == "" {
		return Result{}, fmt.Errorf("mistral: %w", ErrMissingCredentials)
	}
	if req.Audio != nil {
		return Result{}, fmt.Errorf("mistral: audio input is not supported")
	}

	var system string
	messages := make([]chatMessage, 0, len(req.Turns))
	for _, t := range req.Turns {
		if t.Role == chat.RoleSystem {
			if system == "" {
				system = t.Text
			}
			continue
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Text})
	}
	if len(messages) == 0 {
		return Result{}, fmt.Errorf("mistral: %w", ErrEmptyTurns)
	}

	model := req.Options.ModelName
	if model == "" {
		model = m.model
	}

	text, status, err := m.completeOnce(ctx, model, system, messages, req.Options)
	if err == nil {
		return Result{Text: text}, nil
	}
	if m.fallbackModel != "" && m.fallbackModel != model && isMistralFallbackStatus(status) {
		if m.logger != nil {
			m.logger.Warn("mistral fallback",
				slog.String("model", model),
				slog.String("fallback", m.fallbackModel),
				slog.Int("status", status))
		}
		text, _, ferr := m.completeOnce(ctx, m.fallbackModel, system, messages, req.Options)
		if ferr == nil {
			return Result{Text: text}, nil
		}
		return Result{}, ferr
	}
	return Result{}, err
}

func (m *Mistral) completeOnce(ctx context.Context, model, system string, messages []chatMessage, opts Options) (string, int, error) {
	body := mistralChatRequest{
		Model:    model,
		System:   system,
		Messages: messages,
	}
	if opts.Temperature != nil {
		body.Temperature = opts.Temperature
	}
	if opts.MaxTokens != nil {
		body.MaxTokens = opts.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("mistral: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("mistral: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("mistral: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw := bodyText(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, &Error{Provider: m.Name(), Status: resp.StatusCode, Detail: raw}
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", 0, fmt.Errorf("mistral: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, &Error{Provider: m.Name(), Detail: "empty choices in response"}
	}
	return parsed.Choices[0].Message.Content, 0, nil
}

// isMistralFallbackStatus как у OpenAI, плюс 429: при rate limit основной
// модели одна попытка с запасной дешевле, чем отказ.
func isMistralFallbackStatus(status int) bool {
	return isModelFallbackStatus(status) || status == http.StatusTooManyRequests
}

type mistralChatRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}
