package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"github.com/secmon-lab/mnemo/pkg/repository/memory"
	"github.com/secmon-lab/mnemo/pkg/service/extract"
)

type wsTestEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialWS(t *testing.T, httpURL, path string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(httpURL, "http://", "ws://", 1) + path
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	gt.NoError(t, err).Required()
	if resp != nil {
		defer resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvents reads events until all wanted types have been seen or the
// deadline passes. Returns the last event of each type.
func readEvents(t *testing.T, conn *websocket.Conn, want ...string) map[string][]wsTestEvent {
	t.Helper()

	wanted := make(map[string]bool, len(want))
	for _, w := range want {
		wanted[w] = false
	}

	seen := make(map[string][]wsTestEvent)
	gt.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second))).Required()

	for {
		var event wsTestEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("failed to read websocket event (seen so far: %v): %v", seen, err)
		}
		seen[event.Type] = append(seen[event.Type], event)

		if _, ok := wanted[event.Type]; ok {
			wanted[event.Type] = true
		}

		done := true
		for _, ok := range wanted {
			if !ok {
				done = false
				break
			}
		}
		if done {
			return seen
		}
	}
}

func TestRealtimeChat(t *testing.T) {
	t.Run("streams a full chat turn", func(t *testing.T) {
		repo := memory.New()
		createMemory(t, repo, "user-1", "User likes tea", types.MemoryKindPreference)

		extractor := &mockExtractor{
			extractFn: func(ctx context.Context, input extract.Input) ([]extract.Concept, error) {
				emb := make([]float32, model.EmbeddingDimension)
				emb[5] = 1.0
				return []extract.Concept{{
					Content:    "User drinks tea in the evening",
					Kind:       types.MemoryKindContext,
					Importance: 0.4,
					Embedding:  emb,
				}}, nil
			},
		}

		ts := newTestServer(t, repo, extractor)
		conn := dialWS(t, ts.URL, "/ws/chat?user_id=user-1")

		// First event is always session.created
		var created wsTestEvent
		gt.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second))).Required()
		gt.NoError(t, conn.ReadJSON(&created)).Required()
		gt.Value(t, created.Type).Equal("session.created")

		var session model.Session
		gt.NoError(t, json.Unmarshal(created.Payload, &session)).Required()
		gt.Value(t, session.UserID).Equal("user-1")
		gt.String(t, string(session.ID)).NotEqual("")

		gt.NoError(t, conn.WriteJSON(map[string]any{
			"type": "chat",
			"payload": map[string]any{
				"message": "What should I drink tonight?",
			},
		})).Required()

		seen := readEvents(t, conn, "memories", "done", "memory.created")

		// Memories used for the turn
		var memPayload struct {
			Memories []*model.Memory `json:"memories"`
		}
		gt.NoError(t, json.Unmarshal(seen["memories"][0].Payload, &memPayload)).Required()
		gt.Array(t, memPayload.Memories).Length(1).Required()
		gt.Value(t, memPayload.Memories[0].Content).Equal("User likes tea")

		// Streamed deltas assemble the final answer
		gt.Array(t, seen["delta"]).Length(2).Required()
		var answer strings.Builder
		for _, event := range seen["delta"] {
			var delta struct {
				Text string `json:"text"`
			}
			gt.NoError(t, json.Unmarshal(event.Payload, &delta)).Required()
			answer.WriteString(delta.Text)
		}
		gt.Value(t, answer.String()).Equal("Test answer.")

		// Final response
		var done model.ChatResponse
		gt.NoError(t, json.Unmarshal(seen["done"][0].Payload, &done)).Required()
		gt.Value(t, done.Message.Content).Equal("Test answer.")

		// Background extraction pushed a memory.created event
		var createdMem struct {
			Memory *model.Memory `json:"memory"`
		}
		gt.NoError(t, json.Unmarshal(seen["memory.created"][0].Payload, &createdMem)).Required()
		gt.Value(t, createdMem.Memory.Content).Equal("User drinks tea in the evening")
	})

	t.Run("client disconnect cancels the in-flight stream", func(t *testing.T) {
		canceled := make(chan struct{})
		session := &mockLLMSession{
			generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
				ch := make(chan *gollem.Response)
				go func() {
					defer close(ch)
					for range 50 {
						select {
						case <-ctx.Done():
							close(canceled)
							return
						case <-time.After(20 * time.Millisecond):
						}
						ch <- &gollem.Response{Texts: []string{"chunk "}}
					}
				}()
				return ch, nil
			},
		}

		ts := newTestServerWithLLM(t, memory.New(), nil, &mockLLMClient{session: session})
		conn := dialWS(t, ts.URL, "/ws/chat?user_id=user-1")

		var created wsTestEvent
		gt.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second))).Required()
		gt.NoError(t, conn.ReadJSON(&created)).Required()

		gt.NoError(t, conn.WriteJSON(map[string]any{
			"type":    "chat",
			"payload": map[string]any{"message": "tell me a long story"},
		})).Required()

		// Read up to the first delta, then hang up mid-stream
		seen := readEvents(t, conn, "delta")
		gt.Array(t, seen["delta"]).Length(1)
		gt.NoError(t, conn.Close())

		select {
		case <-canceled:
			// The server noticed the disconnect and canceled the turn
		case <-time.After(2 * time.Second):
			t.Fatal("upstream stream was not canceled after client disconnect")
		}
	})

	t.Run("unknown message type yields error event", func(t *testing.T) {
		ts := newTestServer(t, memory.New(), nil)
		conn := dialWS(t, ts.URL, "/ws/chat?user_id=user-1")

		var created wsTestEvent
		gt.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second))).Required()
		gt.NoError(t, conn.ReadJSON(&created)).Required()

		gt.NoError(t, conn.WriteJSON(map[string]any{"type": "nonsense"})).Required()

		var event wsTestEvent
		gt.NoError(t, conn.ReadJSON(&event)).Required()
		gt.Value(t, event.Type).Equal("error")
	})

	t.Run("rejects connection without user_id", func(t *testing.T) {
		ts := newTestServer(t, memory.New(), nil)

		wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws/chat"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil) //nolint:bodyclose // handshake failure
		gt.Error(t, err)
		gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})
}
