package chat

import (
	"strings"
	"time"
)

// Роли сообщений в диалоге.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultHistoryLimit максимальное число сообщений, хранимых в истории сессии.
const DefaultHistoryLimit = 20

// Turn представляет одно сообщение в диалоге.
type Turn struct {
	Role      string    `json:"role"`      // "system", "user", "assistant"
	Text      string    `json:"text"`      // текст сообщения
	Timestamp time.Time `json:"timestamp"` // время добавления (проставляет оркестратор)
}

// BuildProviderTurns собирает упорядоченный список сообщений для одного запроса к провайдеру:
// системный промпт (если непустой) + история без изменений + новое сообщение пользователя (если непустое).
// Все три сегмента опциональны независимо друг от друга; пустой результат
// должен отклоняться вызывающей стороной до обращения к провайдеру.
func BuildProviderTurns(systemPrompt string, history []Turn, newUserText string) []Turn {
	turns := make([]Turn, 0, len(history)+2)

	if s := strings.TrimSpace(systemPrompt); s != "" {
		turns = append(turns, Turn{Role: RoleSystem, Text: systemPrompt})
	}

	turns = append(turns, history...)

	if t := strings.TrimSpace(newUserText); t != "" {
		turns = append(turns, Turn{Role: RoleUser, Text: newUserText})
	}

	return turns
}

// Trim обрезает историю до maxLen последних сообщений, сохраняя порядок.
// Чистая функция: исходный срез не изменяется.
func Trim(history []Turn, maxLen int) []Turn {
	if maxLen < 0 {
		maxLen = 0
	}
	if len(history) <= maxLen {
		return history
	}
	trimmed := make([]Turn, maxLen)
	copy(trimmed, history[len(history)-maxLen:])
	return trimmed
}
