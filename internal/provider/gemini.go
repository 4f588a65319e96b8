package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"courseassist/internal/chat"
	"courseassist/internal/config"
)

const defaultAudioMIME = "audio/webm"

// Gemini адаптер Google Gemini API. Системное сообщение уходит как
// systemInstruction, остальные склеиваются в один текстовый блок;
// звук передаётся inline вторым part — отдельного шага распознавания нет.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGemini(cfg config.GeminiConfig, httpClient *http.Client, logger *slog.Logger) *Gemini {
	return &Gemini{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (g *Gemini) Name() string { return config.ProviderGemini }

func (g *Gemini) Generate(ctx context.Context, req Request) (Result, error) {
	if g.apiKey == "" {
		return Result{}, fmt.Errorf("gemini: %w", ErrMissingCredentials)
	}

	model := req.Options.ModelName
	if model == "" {
		model = g.model
	}

	system, block := splitPromptBlock(req.Turns)
	if block == "" && req.Audio == nil {
		return Result{}, fmt.Errorf("gemini: %w", ErrEmptyTurns)
	}

	parts := make([]geminiPart, 0, 2)
	if block != "" {
		parts = append(parts, geminiPart{Text: block})
	}
	if req.Audio != nil {
		mime := req.Audio.Format
		if mime == "" {
			mime = defaultAudioMIME
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MIMEType: mime,
				Data:     base64.StdEncoding.EncodeToString(req.Audio.Data),
			},
		})
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if req.Options.Temperature != nil {
		body.GenerationConfig.Temperature = req.Options.Temperature
	}
	if req.Options.MaxTokens != nil {
		body.GenerationConfig.MaxOutputTokens = req.Options.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("gemini: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw := bodyText(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Result{}, &Error{Provider: g.Name(), Status: resp.StatusCode, Detail: raw}
	}

	var parsed geminiResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Result{}, &Error{Provider: g.Name(), Detail: "empty candidates in response"}
	}

	return Result{Text: parsed.Candidates[0].Content.Parts[0].Text}, nil
}

// splitPromptBlock выделяет системное сообщение и склеивает остальные
// в один блок "<Role>: <text>", разделённый пустыми строками.
func splitPromptBlock(turns []chat.Turn) (system string, block string) {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case chat.RoleSystem:
			if system == "" {
				system = t.Text
			}
		case chat.RoleUser:
			lines = append(lines, "User: "+t.Text)
		case chat.RoleAssistant:
			lines = append(lines, "Assistant: "+t.Text)
		}
	}
	return system, strings.Join(lines, "\n\n")
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}
