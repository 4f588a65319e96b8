package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"courseassist/internal/blob"
	"courseassist/internal/chat"
)

const keyPrefix = "session:"

// Gateway шлюз к blob-хранилищу сессий. Персистентность — best-effort:
// любая ошибка хранилища логируется и деградирует до «сессии нет»,
// пользовательский запрос из-за хранилища не падает никогда.
type Gateway struct {
	store  blob.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewGateway создаёт шлюз. ttl — подсказка истечения, прикладываемая
// к каждому сохранению; сам шлюз TTL не контролирует.
func NewGateway(store blob.Store, ttl time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{store: store, ttl: ttl, logger: logger}
}

// Load загружает сессию по идентификатору. Любая ошибка хранилища
// или повреждённые данные трактуются как «не найдено».
func (g *Gateway) Load(ctx context.Context, id string) (*Session, bool) {
	data, found, err := g.store.Get(ctx, keyPrefix+id)
	if err != nil {
		g.logError("session load failed", id, err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		g.logError("session decode failed", id, err)
		return nil, false
	}
	if s.Messages == nil {
		s.Messages = []chat.Turn{}
	}
	return &s, true
}

// Save сохраняет сессию с подсказкой истечения. Ошибки логируются,
// но не возвращаются.
func (g *Gateway) Save(ctx context.Context, id string, s *Session) {
	data, err := json.Marshal(s)
	if err != nil {
		g.logError("session encode failed", id, err)
		return
	}
	if err := g.store.Set(ctx, keyPrefix+id, data, g.ttl); err != nil {
		g.logError("session save failed", id, err)
	}
}

// Delete удаляет сессию. Ошибки логируются, но не возвращаются.
func (g *Gateway) Delete(ctx context.Context, id string) {
	if err := g.store.Delete(ctx, keyPrefix+id); err != nil {
		g.logError("session delete failed", id, err)
	}
}

func (g *Gateway) logError(msg, id string, err error) {
	if g.logger == nil {
		return
	}
	g.logger.Error(msg, slog.String("session_id", id), slog.String("error", err.Error()))
}
