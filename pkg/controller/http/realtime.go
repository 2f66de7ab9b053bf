package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/usecase"
	"github.com/secmon-lab/mnemo/pkg/utils/errutil"
	"github.com/secmon-lab/mnemo/pkg/utils/logging"
)

// Event types sent to the client
const (
	eventSessionCreated = "session.created"
	eventMemories       = "memories"
	eventDelta          = "delta"
	eventDone           = "done"
	eventMemoryCreated  = "memory.created"
	eventError          = "error"
)

// Message types accepted from the client
const messageChat = "chat"

// wsEnvelope is the wire format in both directions. Payload depends on
// Type.
type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsOutgoing struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// chatPayload is the client request for one streamed chat turn. The user
// is bound at connection time, not per message.
type chatPayload struct {
	ConversationID string              `json:"conversation_id"`
	Message        string              `json:"message"`
	History        []model.ChatMessage `json:"history,omitempty"`
	MemoryIDs      []model.MemoryID    `json:"memory_ids,omitempty"`
}

type realtimeHandler struct {
	uc       *usecase.UseCases
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[model.SessionID]*wsSession
}

type wsSession struct {
	session *model.Session
	conn    *websocket.Conn

	// writeMu serializes writes: the chat goroutine and the background
	// extraction callback both write to the connection.
	writeMu sync.Mutex
}

func newRealtimeHandler(uc *usecase.UseCases, allowedOrigins []string) *realtimeHandler {
	h := &realtimeHandler{
		uc:       uc,
		sessions: make(map[model.SessionID]*wsSession),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	return h
}

func (h *realtimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		errutil.HandleHTTP(r.Context(), w, goerr.New("user_id is required"), http.StatusBadRequest)
		return
	}
	conversationID := r.URL.Query().Get("conversation_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		logging.From(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := &wsSession{
		session: model.NewSession(userID, conversationID),
		conn:    conn,
	}

	h.register(sess)
	defer h.unregister(sess)
	defer conn.Close() //nolint:errcheck // connection teardown

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := logging.From(ctx)
	logger.Info("realtime session started",
		"sessionID", sess.session.ID,
		"userID", userID)

	sess.send(ctx, eventSessionCreated, sess.session)

	// Reads run in their own goroutine so a peer disconnect is noticed
	// while a chat turn is in flight. The request context does not fire
	// on disconnect after the upgrade hijacks the connection, so the
	// read side is the only disconnect signal; canceling ctx here tears
	// down any in-flight LLM stream.
	msgCh := make(chan wsEnvelope)
	go func() {
		defer cancel()
		for {
			var envelope wsEnvelope
			if err := conn.ReadJSON(&envelope); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn("realtime session closed unexpectedly",
						"sessionID", sess.session.ID,
						"error", err)
				}
				return
			}

			select {
			case msgCh <- envelope:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case envelope := <-msgCh:
			switch envelope.Type {
			case messageChat:
				h.handleChat(ctx, sess, envelope.Payload)
			default:
				sess.send(ctx, eventError, map[string]string{
					"message": "unknown message type: " + envelope.Type,
				})
			}
		}
	}
}

func (h *realtimeHandler) handleChat(ctx context.Context, sess *wsSession, payload json.RawMessage) {
	var req chatPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.send(ctx, eventError, map[string]string{"message": "invalid chat payload"})
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = sess.session.ConversationID
	}

	events := &usecase.ChatEvents{
		OnMemories: func(ctx context.Context, memories []*model.Memory) {
			if memories == nil {
				memories = []*model.Memory{}
			}
			sess.send(ctx, eventMemories, map[string]any{"memories": memories})
		},
		OnDelta: func(ctx context.Context, delta string) {
			sess.send(ctx, eventDelta, map[string]string{"text": delta})
		},
		OnMemoryCreated: func(ctx context.Context, memory *model.Memory) {
			sess.send(ctx, eventMemoryCreated, map[string]any{"memory": memory})
		},
	}

	resp, err := h.uc.ChatStream(ctx, &model.ChatRequest{
		UserID:         sess.session.UserID,
		ConversationID: conversationID,
		Message:        req.Message,
		History:        req.History,
		MemoryIDs:      req.MemoryIDs,
	}, events)
	if err != nil {
		logging.From(ctx).Error("realtime chat turn failed",
			"sessionID", sess.session.ID,
			"error", err)
		sess.send(ctx, eventError, map[string]string{"message": "chat failed"})
		return
	}

	sess.send(ctx, eventDone, resp)
}

func (h *realtimeHandler) register(sess *wsSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess.session.ID] = sess
}

func (h *realtimeHandler) unregister(sess *wsSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sess.session.ID)
}

func (s *wsSession) send(ctx context.Context, eventType string, payload any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(wsOutgoing{Type: eventType, Payload: payload}); err != nil {
		// The peer may already be gone; background callbacks outlive turns
		logging.From(ctx).Debug("failed to write websocket event",
			"event", eventType,
			"error", err)
	}
}
