package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"courseassist/internal/chat"
)

var (
	// ErrMissingCredentials возвращается до любого сетевого вызова,
	// если у выбранного провайдера не настроены учётные данные.
	ErrMissingCredentials = errors.New("provider credentials are not configured")

	// ErrEmptyTurns возвращается, если адаптеру передан пустой список сообщений.
	ErrEmptyTurns = errors.New("turns list is empty")
)

// Audio содержит записанный пользователем звук для голосового запроса.
type Audio struct {
	Data   []byte
	Format string // MIME-тип или формат записи; адаптер подставляет свой default
}

// Options переопределения параметров генерации для одного вызова.
type Options struct {
	ModelName   string
	ModelURI    string
	Temperature *float64
	MaxTokens   *int
}

// Request канонический запрос к провайдеру: список сообщений,
// собранный оркестратором, плюс опциональный звук и переопределения.
type Request struct {
	Turns   []chat.Turn
	Audio   *Audio
	Options Options
}

// Result ответ провайдера. Transcript заполняется только если вызов
// включал звук, потребовавший отдельного шага распознавания речи.
type Result struct {
	Text       string
	Transcript string
}

// Provider единый контракт адаптера провайдера: на вход — только
// канонический список сообщений, нормализация происходит один раз в оркестраторе.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Result, error)
}

// Error ошибка вышестоящего API после исчерпания fallback-попыток.
type Error struct {
	Provider string
	Status   int
	Detail   string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Detail)
}

// bodyText читает тело ответа для включения в текст ошибки.
// Если прочитать тело не удалось, подставляет заглушку вместо вторичной ошибки.
func bodyText(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil {
		return "(failed to read response body)"
	}
	return string(data)
}

// appendTranscript добавляет распознанный текст к последнему user-сообщению.
// Если user-сообщений нет, синтезирует новое в конце списка.
func appendTranscript(turns []chat.Turn, transcript string) []chat.Turn {
	out := make([]chat.Turn, len(turns))
	copy(out, turns)

	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == chat.RoleUser {
			out[i].Text = out[i].Text + "\n\nTranscript:\n" + transcript
			return out
		}
	}
	return append(out, chat.Turn{Role: chat.RoleUser, Text: "Transcript:\n" + transcript})
}
