package session

import (
	"time"

	"courseassist/internal/chat"
)

// Session долговременное состояние диалога, ключом служит переданный
// клиентом идентификатор. Системный промпт хранится отдельно от истории;
// в Messages попадают только user/assistant-сообщения, всегда парами.
type Session struct {
	SystemPrompt string      `json:"systemPrompt"`
	Messages     []chat.Turn `json:"messages"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastActivity time.Time   `json:"lastActivity"`
}

// New создаёт сессию с заданным системным промптом.
func New(systemPrompt string) *Session {
	now := time.Now()
	return &Session{
		SystemPrompt: systemPrompt,
		Messages:     []chat.Turn{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AppendExchange добавляет завершённый обмен (user + assistant) и обрезает
// историю до limit. Сообщения добавляются только парой — незавершённый
// обмен в сессию не попадает.
func (s *Session) AppendExchange(userText, assistantText string, limit int) {
	now := time.Now()
	s.Messages = append(s.Messages,
		chat.Turn{Role: chat.RoleUser, Text: userText, Timestamp: now},
		chat.Turn{Role: chat.RoleAssistant, Text: assistantText, Timestamp: now},
	)
	s.Messages = chat.Trim(s.Messages, limit)
	s.LastActivity = now
}

// Reset очищает историю, сохраняя системный промпт.
func (s *Session) Reset() {
	s.Messages = []chat.Turn{}
	s.LastActivity = time.Now()
}

// Turns число завершённых обменов в истории.
func (s *Session) Turns() int {
	return len(s.Messages) / 2
}
