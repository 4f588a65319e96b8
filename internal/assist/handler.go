package assist

import (
	"context"
	"log/slog"
	"net/http"

	"courseassist/internal/chat"
	"courseassist/internal/httpserver"
	"courseassist/internal/provider"
	"courseassist/internal/session"
)

// Deps зависимости оркестратора.
type Deps struct {
	Provider     provider.Provider
	Sessions     *session.Gateway
	HistoryLimit int
	Logger       *slog.Logger
}

// Handler оркестратор одного запроса: разбор входа, разрешение сессии,
// сборка канонического списка сообщений, вызов адаптера провайдера,
// сохранение пары сообщений и формирование ответа.
//
// Побочные эффекты строго упорядочены: до успешного ответа провайдера
// сессия не изменяется и не сохраняется.
type Handler struct {
	provider     provider.Provider
	sessions     *session.Gateway
	historyLimit int
	logger       *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	limit := deps.HistoryLimit
	if limit <= 0 {
		limit = chat.DefaultHistoryLimit
	}
	return &Handler{
		provider:     deps.Provider,
		sessions:     deps.Sessions,
		historyLimit: limit,
		logger:       deps.Logger,
	}
}

type successResponse struct {
	GeneratedText string `json:"generatedText"`
	Provider      string `json:"provider"`
	Transcript    string `json:"transcript,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	Turns         int    `json:"turns"`
}

type endSessionResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Provider  string `json:"provider"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpserver.SetCORSHeaders(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		httpserver.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx := r.Context()

	in, err := parseInput(r)
	if err != nil {
		h.logger.Error("invalid request", slog.String("error", err.Error()))
		httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Завершение сессии — терминальная ветка, провайдер не вызывается.
	if in.EndSession && in.SessionID != "" {
		h.sessions.Delete(ctx, in.SessionID)
		httpserver.WriteJSON(w, http.StatusOK, endSessionResponse{
			Message:   "session ended",
			SessionID: in.SessionID,
			Provider:  h.provider.Name(),
		})
		return
	}

	sess := h.resolveSession(ctx, in)

	turns := chat.BuildProviderTurns(sess.SystemPrompt, sess.Messages, in.Prompt)
	if len(turns) == 0 && in.Audio == nil {
		httpserver.WriteError(w, http.StatusInternalServerError, ErrMissingPrompt.Error())
		return
	}

	result, err := h.provider.Generate(ctx, provider.Request{
		Turns:   turns,
		Audio:   in.Audio,
		Options: in.Options,
	})
	if err != nil {
		h.logger.Error("provider call failed",
			slog.String("provider", h.provider.Name()),
			slog.String("error", err.Error()))
		httpserver.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := successResponse{
		GeneratedText: result.Text,
		Provider:      h.provider.Name(),
		Transcript:    result.Transcript,
	}

	// Сохраняем только при наличии идентификатора сессии и только после
	// успешного ответа провайдера.
	if in.SessionID != "" {
		userText := in.Prompt
		if result.Transcript != "" {
			userText = result.Transcript
		}
		sess.AppendExchange(userText, result.Text, h.historyLimit)
		h.sessions.Save(ctx, in.SessionID, sess)

		resp.SessionID = in.SessionID
		resp.Turns = sess.Turns()
	}

	httpserver.WriteJSON(w, http.StatusOK, resp)
}

// resolveSession загружает существующую сессию или создаёт новую.
// Флаг resetContext очищает историю найденной сессии.
func (h *Handler) resolveSession(ctx context.Context, in input) *session.Session {
	if in.SessionID != "" {
		if sess, found := h.sessions.Load(ctx, in.SessionID); found {
			if in.ResetContext {
				sess.Reset()
			}
			return sess
		}
	}
	return session.New(in.System)
}
