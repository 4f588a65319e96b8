package assist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"courseassist/internal/provider"
)

// Ошибки валидации входящего запроса.
var (
	ErrMissingPrompt          = errors.New("prompt is required")
	ErrMissingAudio           = errors.New("audio file is required")
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

const maxMultipartMemory = 32 << 20

// input разобранный входящий запрос: общие поля для JSON и multipart-формы.
type input struct {
	Prompt       string
	System       string
	SessionID    string
	EndSession   bool
	ResetContext bool

	Options provider.Options
	Audio   *provider.Audio
}

type jsonRequest struct {
	Prompt       string   `json:"prompt"`
	System       string   `json:"system"`
	SessionID    string   `json:"sessionId"`
	EndSession   bool     `json:"endSession"`
	ResetContext bool     `json:"resetContext"`
	ModelName    string   `json:"modelName"`
	ModelURI     string   `json:"modelUri"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    *int     `json:"maxTokens"`
}

// parseInput определяет кодировку тела и извлекает поля запроса.
// JSON требует непустой prompt; multipart требует файловую часть "audio".
func parseInput(r *http.Request) (input, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	switch {
	case strings.HasPrefix(mediaType, "application/json"):
		return parseJSONInput(r)
	case strings.HasPrefix(mediaType, "multipart/form-data"):
		return parseMultipartInput(r)
	default:
		return input{}, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
}

func parseJSONInput(r *http.Request) (input, error) {
	var req jsonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return input{}, fmt.Errorf("decode json body: %w", err)
	}

	in := input{
		Prompt:       req.Prompt,
		System:       req.System,
		SessionID:    strings.TrimSpace(req.SessionID),
		EndSession:   req.EndSession,
		ResetContext: req.ResetContext,
		Options: provider.Options{
			ModelName:   req.ModelName,
			ModelURI:    req.ModelURI,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	}

	// Запрос на завершение сессии не обязан нести prompt.
	if in.EndSession {
		return in, nil
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return input{}, ErrMissingPrompt
	}
	return in, nil
}

func parseMultipartInput(r *http.Request) (input, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return input{}, fmt.Errorf("parse multipart form: %w", err)
	}

	in := input{
		Prompt:       r.FormValue("prompt"),
		System:       r.FormValue("system"),
		SessionID:    strings.TrimSpace(r.FormValue("sessionId")),
		EndSession:   parseBool(r.FormValue("endSession")),
		ResetContext: parseBool(r.FormValue("resetContext")),
		Options: provider.Options{
			ModelName: r.FormValue("modelName"),
			ModelURI:  r.FormValue("modelUri"),
		},
	}

	if v := r.FormValue("temperature"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return input{}, fmt.Errorf("parse temperature: %w", err)
		}
		in.Options.Temperature = &t
	}
	if v := r.FormValue("maxTokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return input{}, fmt.Errorf("parse maxTokens: %w", err)
		}
		in.Options.MaxTokens = &n
	}

	if in.EndSession {
		return in, nil
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return input{}, ErrMissingAudio
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return input{}, fmt.Errorf("read audio part: %w", err)
	}

	format := r.FormValue("audioFormat")
	if format == "" && header != nil {
		format = header.Header.Get("Content-Type")
	}
	in.Audio = &provider.Audio{Data: data, Format: format}

	return in, nil
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return parsed
}
