package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"courseassist/internal/chat"
	"courseassist/internal/config"
)

// OpenAI адаптер OpenAI API. Сообщения передаются 1:1 в chat-формате;
// звук проходит отдельный шаг распознавания, после чего транскрипт
// дописывается к последнему user-сообщению. И чат, и распознавание
// имеют по одной fallback-модели.
type OpenAI struct {
	apiKey             string
	baseURL            string
	model              string
	fallbackModel      string
	transcribeModel    string
	transcribeFallback string
	httpClient         *http.Client
	logger             *slog.Logger
}

func NewOpenAI(cfg config.OpenAIConfig, httpClient *http.Client, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		apiKey:             cfg.APIKey,
		baseURL:            strings.TrimSuffix(cfg.BaseURL, "/"),
		model:              cfg.Model,
		fallbackModel:      cfg.FallbackModel,
		transcribeModel:    cfg.TranscribeModel,
		transcribeFallback: cfg.TranscribeFallbackModel,
		httpClient:         httpClient,
		logger:             logger,
	}
}

func (o *OpenAI) Name() string { return config.ProviderOpenAI }

func (o *OpenAI) Generate(ctx context.Context, req Request) (Result, error) {
	if o.apiKey == "" {
		return Result{}, fmt.Errorf("openai: %w", ErrMissingCredentials)
	}

	turns := req.Turns
	var transcript string

	if req.Audio != nil {
		var err error
		transcript, err = o.transcribe(ctx, req.Audio)
		if err != nil {
			return Result{}, err
		}
		turns = appendTranscript(turns, transcript)
	}

	if len(turns) == 0 {
		return Result{}, fmt.Errorf("openai: %w", ErrEmptyTurns)
	}

	text, err := o.complete(ctx, turns, req.Options)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Transcript: transcript}, nil
}

// complete выполняет chat-запрос: сначала основная модель, при отказе
// с кодом 400/404/422 — одна попытка с fallback-моделью.
func (o *OpenAI) complete(ctx context.Context, turns []chat.Turn, opts Options) (string, error) {
	model := opts.ModelName
	if model == "" {
		model = o.model
	}

	text, status, err := o.completeOnce(ctx, model, turns, opts)
	if err == nil {
		return text, nil
	}
	if o.fallbackModel != "" && o.fallbackModel != model && isModelFallbackStatus(status) {
		if o.logger != nil {
			o.logger.Warn("openai chat fallback",
				slog.String("model", model),
				slog.String("fallback", o.fallbackModel),
				slog.Int("status", status))
		}
		text, _, ferr := o.completeOnce(ctx, o.fallbackModel, turns, opts)
		if ferr == nil {
			return text, nil
		}
		return "", ferr
	}
	return "", err
}

func (o *OpenAI) completeOnce(ctx context.Context, model string, turns []chat.Turn, opts Options) (string, int, error) {
	body := openAIChatRequest{
		Model:    model,
		Messages: toChatMessages(turns),
	}
	if opts.Temperature != nil {
		body.Temperature = opts.Temperature
	}
	if opts.MaxTokens != nil {
		body.MaxTokens = opts.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("openai: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw := bodyText(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, &Error{Provider: o.Name(), Status: resp.StatusCode, Detail: raw}
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", 0, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, &Error{Provider: o.Name(), Detail: "empty choices in response"}
	}
	return parsed.Choices[0].Message.Content, 0, nil
}

// transcribe распознаёт звук через speech-endpoint с тем же
// fallback-паттерном, что и у chat-запроса.
func (o *OpenAI) transcribe(ctx context.Context, audio *Audio) (string, error) {
	text, status, err := o.transcribeOnce(ctx, o.transcribeModel, audio)
	if err == nil {
		return text, nil
	}
	if o.transcribeFallback != "" && o.transcribeFallback != o.transcribeModel && isModelFallbackStatus(status) {
		if o.logger != nil {
			o.logger.Warn("openai transcribe fallback",
				slog.String("model", o.transcribeModel),
				slog.String("fallback", o.transcribeFallback),
				slog.Int("status", status))
		}
		text, _, ferr := o.transcribeOnce(ctx, o.transcribeFallback, audio)
		if ferr == nil {
			return text, nil
		}
		return "", ferr
	}
	return "", err
}

func (o *OpenAI) transcribeOnce(ctx context.Context, model string, audio *Audio) (string, int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := "audio." + audioExtension(audio.Format)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", 0, fmt.Errorf("openai: build multipart: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", 0, fmt.Errorf("openai: write audio part: %w", err)
	}
	if err := mw.WriteField("model", model); err != nil {
		return "", 0, fmt.Errorf("openai: write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", 0, fmt.Errorf("openai: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", 0, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("openai: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw := bodyText(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, &Error{Provider: o.Name(), Status: resp.StatusCode, Detail: raw}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", 0, fmt.Errorf("openai: decode transcription: %w", err)
	}
	return parsed.Text, 0, nil
}

// isModelFallbackStatus коды, после которых имеет смысл одна попытка
// с запасной моделью: модель не найдена или запрос ею не принят.
func isModelFallbackStatus(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

// audioExtension выбирает расширение файла для multipart по формату записи.
func audioExtension(format string) string {
	switch {
	case strings.Contains(format, "ogg"):
		return "ogg"
	case strings.Contains(format, "mp3"), strings.Contains(format, "mpeg"):
		return "mp3"
	case strings.Contains(format, "wav"):
		return "wav"
	default:
		return "webm"
	}
}

// toChatMessages переводит канонические сообщения в chat-формат OpenAI 1:1.
func toChatMessages(turns []chat.Turn) []chatMessage {
	messages := make([]chatMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, chatMessage{Role: t.Role, Content: t.Text})
	}
	return messages
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
