package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"courseassist/internal/chat"
	"courseassist/internal/config"
)

// Значения генерации Yandex по умолчанию.
const (
	yandexDefaultTemperature = 0.6
	yandexDefaultMaxTokens   = 2000
	yandexDefaultModel       = "yandexgpt-lite"
)

// Yandex адаптер Yandex Foundation Models. Сообщения уходят 1:1 в формате
// {role, text}; звук проходит отдельный шаг SpeechKit-распознавания.
// Fallback-модели нет: модель задаётся разрешимым URI.
type Yandex struct {
	apiKey      string
	folderID    string
	baseURL     string
	sttBaseURL  string
	model       string
	language    string
	audioFormat string
	sampleRate  int
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewYandex(cfg config.YandexConfig, httpClient *http.Client, logger *slog.Logger) *Yandex {
	return &Yandex{
		apiKey:      cfg.APIKey,
		folderID:    cfg.FolderID,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		sttBaseURL:  strings.TrimSuffix(cfg.STTBaseURL, "/"),
		model:       cfg.Model,
		language:    cfg.Language,
		audioFormat: cfg.AudioFormat,
		sampleRate:  cfg.SampleRate,
		httpClient:  httpClient,
		logger:      logger,
	}
}

func (y *Yandex) Name() string { return config.ProviderYandex }

func (y *Yandex) Generate(ctx context.Context, req Request) (Result, error) {
	if y.apiKey == "" || y.folderID == "" {
		return Result{}, fmt.Errorf("yandex: %w", ErrMissingCredentials)
	}

	turns := req.Turns
	var transcript string

	if req.Audio != nil {
		var err error
		transcript, err = y.transcribe(ctx, req.Audio)
		if err != nil {
			return Result{}, err
		}
		turns = appendTranscript(turns, transcript)
	}

	if len(turns) == 0 {
		return Result{}, fmt.Errorf("yandex: %w", ErrEmptyTurns)
	}

	text, err := y.complete(ctx, turns, req.Options)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Transcript: transcript}, nil
}

func (y *Yandex) complete(ctx context.Context, turns []chat.Turn, opts Options) (string, error) {
	temperature := yandexDefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := yandexDefaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}

	messages := make([]yandexMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, yandexMessage{Role: t.Role, Text: t.Text})
	}

	body := yandexCompletionRequest{
		ModelURI: y.resolveModelURI(opts),
		CompletionOptions: yandexCompletionOptions{
			Stream:      false,
			Temperature: temperature,
			MaxTokens:   strconv.Itoa(maxTokens),
		},
		Messages: messages,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("yandex: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/foundationModels/v1/completion", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("yandex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+y.apiKey)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("yandex: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw := bodyText(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: y.Name(), Status: resp.StatusCode, Detail: raw}
	}

	var parsed yandexCompletionResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("yandex: decode response: %w", err)
	}
	if len(parsed.Result.Alternatives) == 0 {
		return "", &Error{Provider: y.Name(), Detail: "empty alternatives in response"}
	}
	return parsed.Result.Alternatives[0].Message.Text, nil
}

// resolveModelURI выбирает URI модели: явный URI, затем имя модели
// в каталоге с суффиксом /latest, затем модель по умолчанию.
func (y *Yandex) resolveModelURI(opts Options) string {
	if opts.ModelURI != "" {
		return opts.ModelURI
	}
	model := opts.ModelName
	if model == "" {
		model = y.model
	}
	if model == "" {
		model = yandexDefaultModel
	}
	return fmt.Sprintf("gpt://%s/%s/latest", y.folderID, model)
}

// transcribe распознаёт звук через SpeechKit: сырые байты в теле запроса,
// параметры языка/формата/частоты — в query string.
func (y *Yandex) transcribe(ctx context.Context, audio *Audio) (string, error) {
	format := audio.Format
	if format == "" {
		format = y.audioFormat
	}

	q := url.Values{}
	q.Set("lang", y.language)
	q.Set("format", format)
	q.Set("sampleRateHertz", strconv.Itoa(y.sampleRate))
	q.Set("folderId", y.folderID)

	endpoint := y.sttBaseURL + "/speech/v1/stt:recognize?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio.Data))
	if err != nil {
		return "", fmt.Errorf("yandex: build stt request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+y.apiKey)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("yandex: execute stt request: %w", err)
	}
	defer resp.Body.Close()

	raw := bodyText(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: y.Name(), Status: resp.StatusCode, Detail: raw}
	}

	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("yandex: decode stt response: %w", err)
	}
	return parsed.Result, nil
}

type yandexCompletionRequest struct {
	ModelURI          string                  `json:"modelUri"`
	CompletionOptions yandexCompletionOptions `json:"completionOptions"`
	Messages          []yandexMessage         `json:"messages"`
}

type yandexCompletionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexCompletionResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
			Status  string        `json:"status"`
		} `json:"alternatives"`
	} `json:"result"`
}
