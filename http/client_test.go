package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/fwojciec/lunarys"
	lunaryshttp "github.com/fwojciec/lunarys/http"
	lunarysjson "github.com/fwojciec/lunarys/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseResponse is a helper to build server-sent event responses for tests.
type sseResponse struct {
	events []lunarys.StreamEvent
	raw    []string // written verbatim after events
}

func (s sseResponse) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, evt := range s.events {
			data, err := lunarysjson.MarshalStreamEvent(evt)
			assert.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher != nil {
				flusher.Flush()
			}
		}
		for _, raw := range s.raw {
			fmt.Fprint(w, raw)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func newClient(t *testing.T, h http.Handler, opts ...lunaryshttp.Option) *lunaryshttp.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return lunaryshttp.New(append([]lunaryshttp.Option{lunaryshttp.WithBaseURL(srv.URL)}, opts...)...)
}

func userRequest(id lunarys.Identity, content string) lunarys.Request {
	return lunarys.Request{
		ConversationID: id,
		Model:          lunarys.ModelChat,
		Messages:       []lunarys.Turn{{Role: lunarys.RoleUser, Content: content}},
	}
}

func collectEvents(t *testing.T, s lunarys.Stream) []lunarys.StreamEvent {
	t.Helper()
	var events []lunarys.StreamEvent
	for {
		evt, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, evt)
	}
	return events
}

func TestClient_Stream(t *testing.T) {
	t.Parallel()

	t.Run("posts the request and yields events in order", func(t *testing.T) {
		t.Parallel()
		var gotBody map[string]any
		var gotHeader http.Header
		resp := sseResponse{events: []lunarys.StreamEvent{
			lunarys.EventReasoning{Delta: "hmm"},
			lunarys.EventContent{Delta: "He"},
			lunarys.EventContent{Delta: "llo"},
			lunarys.EventComplete{Data: "42"},
		}}
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/chat/stream", r.URL.Path)
			gotHeader = r.Header.Clone()
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			resp.handler(t)(w, r)
		}))

		s, err := client.Stream(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		require.NoError(t, err)
		defer s.Close()

		events := collectEvents(t, s)
		assert.Equal(t, resp.events, events)
		assert.Equal(t, lunarys.StreamStateComplete, s.State())

		assert.NotContains(t, gotBody, "conversationId")
		assert.Equal(t, "deepseek-chat", gotBody["model"])
		assert.Equal(t, "text/event-stream", gotHeader.Get("Accept"))
		assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
		assert.NotEmpty(t, gotHeader.Get("X-Request-ID"))
	})

	t.Run("confirmed conversation sends its id", func(t *testing.T) {
		t.Parallel()
		var gotBody map[string]any
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			sseResponse{events: []lunarys.StreamEvent{lunarys.EventComplete{Data: "42"}}}.handler(t)(w, r)
		}))

		s, err := client.Stream(context.Background(), userRequest(lunarys.Confirmed{ID: 42}, "again"))
		require.NoError(t, err)
		defer s.Close()
		collectEvents(t, s)

		assert.EqualValues(t, 42, gotBody["conversationId"])
	})

	t.Run("malformed lines do not end the stream", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, sseResponse{raw: []string{
			"data: {\"type\":\"content\",\"data\":\"a\"}\n\n",
			"data: {broken\n\n",
			": keepalive\n\n",
			"data: {\"type\":\"content\",\"data\":\"b\"}\n\n",
			"data: {\"type\":\"complete\",\"data\":\"1\"}",
		}}.handler(t))

		s, err := client.Stream(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, []lunarys.StreamEvent{
			lunarys.EventContent{Delta: "a"},
			lunarys.EventContent{Delta: "b"},
			lunarys.EventComplete{Data: "1"},
		}, collectEvents(t, s))
	})

	t.Run("non-200 returns a status error", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))

		_, err := client.Stream(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		var statusErr *lunarys.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.Equal(t, "upstream down", statusErr.Body)
	})

	t.Run("invalid request is rejected before sending", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not reach the server")
		}))

		_, err := client.Stream(context.Background(), lunarys.Request{ConversationID: lunarys.Provisional{}})
		assert.ErrorIs(t, err, lunarys.ErrValidation)
	})

	t.Run("accepts a non-200 success status", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, "data: {\"type\":\"complete\",\"data\":\"5\"}\n\n")
		}))

		s, err := client.Stream(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		require.NoError(t, err)
		defer s.Close()

		evt, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, lunarys.EventComplete{Data: "5"}, evt)
	})

	t.Run("cancellation aborts a blocked read", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "data: {\"type\":\"content\",\"data\":\"He\"}\n\n")
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer close(release)

		ctx, cancel := context.WithCancel(context.Background())
		s, err := client.Stream(ctx, userRequest(lunarys.Provisional{}, "hi"))
		require.NoError(t, err)
		defer s.Close()

		evt, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, lunarys.EventContent{Delta: "He"}, evt)

		cancel()
		_, err = s.Next()
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, lunarys.StreamStateError, s.State())
	})

	t.Run("drain reports complete once over the wire", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, sseResponse{events: []lunarys.StreamEvent{
			lunarys.EventContent{Delta: "He"},
			lunarys.EventContent{Delta: "llo"},
			lunarys.EventComplete{Data: "42"},
			lunarys.EventComplete{Data: "43"},
		}}.handler(t))

		s, err := client.Stream(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		require.NoError(t, err)

		var content string
		var ids []int64
		outcome := lunarys.Drain(context.Background(), s, lunarys.Handler{
			OnContent:  func(d string) { content += d },
			OnComplete: func(id int64) { ids = append(ids, id) },
		})
		assert.Equal(t, lunarys.OutcomeComplete, outcome)
		assert.Equal(t, "Hello", content)
		assert.Equal(t, []int64{42}, ids)
	})
}

func TestStream_ChunkBoundaries(t *testing.T) {
	t.Parallel()

	body := "data: {\"type\":\"content\",\"data\":\"月\"}\n\n" +
		"data: {\"type\":\"content\",\"data\":\"光\"}\n\n" +
		"data: {\"type\":\"complete\",\"data\":\"9\"}\n\n"
	want := []lunarys.StreamEvent{
		lunarys.EventContent{Delta: "月"},
		lunarys.EventContent{Delta: "光"},
		lunarys.EventComplete{Data: "9"},
	}

	t.Run("one byte at a time", func(t *testing.T) {
		t.Parallel()
		r := io.NopCloser(iotest.OneByteReader(strings.NewReader(body)))
		s := lunaryshttp.NewStream(context.Background(), r, lunarys.DiscardLogger())
		assert.Equal(t, want, collectEvents(t, s))
	})

	t.Run("half reads", func(t *testing.T) {
		t.Parallel()
		r := io.NopCloser(iotest.HalfReader(strings.NewReader(body)))
		s := lunaryshttp.NewStream(context.Background(), r, lunarys.DiscardLogger())
		assert.Equal(t, want, collectEvents(t, s))
	})

	t.Run("data returned with EOF", func(t *testing.T) {
		t.Parallel()
		r := io.NopCloser(iotest.DataErrReader(strings.NewReader(body)))
		s := lunaryshttp.NewStream(context.Background(), r, lunarys.DiscardLogger())
		assert.Equal(t, want, collectEvents(t, s))
	})

	t.Run("read error after data delivers buffered events first", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("connection reset")
		r := io.NopCloser(io.MultiReader(
			strings.NewReader("data: {\"type\":\"content\",\"data\":\"x\"}\n\n"),
			iotest.ErrReader(wantErr),
		))
		s := lunaryshttp.NewStream(context.Background(), r, lunarys.DiscardLogger())

		evt, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, lunarys.EventContent{Delta: "x"}, evt)

		_, err = s.Next()
		assert.ErrorIs(t, err, wantErr)
		assert.Equal(t, lunarys.StreamStateError, s.State())
	})

	t.Run("next after close", func(t *testing.T) {
		t.Parallel()
		s := lunaryshttp.NewStream(context.Background(), io.NopCloser(strings.NewReader(body)), lunarys.DiscardLogger())
		require.NoError(t, s.Close())
		assert.Equal(t, lunarys.StreamStateClosed, s.State())
		_, err := s.Next()
		assert.ErrorIs(t, err, lunarys.ErrStreamClosed)
	})
}

func TestClient_Send(t *testing.T) {
	t.Parallel()

	t.Run("decodes the reply", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/chat", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"content":"full reply","conversationId":12}`)
		}))

		got, err := client.Send(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		require.NoError(t, err)
		assert.Equal(t, lunarys.Reply{Content: "full reply", ConversationID: lunarys.Confirmed{ID: 12}}, got)
	})

	t.Run("any 2xx status is success", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"content":"created","conversationId":13}`)
		}))

		got, err := client.Send(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		require.NoError(t, err)
		assert.Equal(t, "created", got.Content)
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := client.Send(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		var statusErr *lunarys.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	})

	t.Run("timeout bounds the call", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}), lunaryshttp.WithTimeout(20*time.Millisecond))
		defer close(release)

		_, err := client.Send(context.Background(), userRequest(lunarys.Provisional{}, "hi"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_ListConversations(t *testing.T) {
	t.Parallel()

	t.Run("decodes the list", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/conversations", r.URL.Path)
			fmt.Fprint(w, `[{"id":3,"title":"t","model":"deepseek-chat","preview":"p","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}]`)
		}))

		got, err := client.ListConversations(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, lunarys.Confirmed{ID: 3}, got[0].ID)
	})

	t.Run("failure is unavailable", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		_, err := client.ListConversations(context.Background())
		assert.ErrorIs(t, err, lunarys.ErrUnavailable)
	})

	t.Run("garbage body is unavailable", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>`)
		}))

		_, err := client.ListConversations(context.Background())
		assert.ErrorIs(t, err, lunarys.ErrUnavailable)
	})

	t.Run("unreachable server is unavailable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		client := lunaryshttp.New(lunaryshttp.WithBaseURL(url))

		_, err := client.ListConversations(context.Background())
		assert.ErrorIs(t, err, lunarys.ErrUnavailable)
	})
}

func TestClient_ListMessages(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/conversations/5/messages":
			fmt.Fprint(w, `[{"id":1,"conversationId":5,"role":"user","content":"q"}]`)
		default:
			http.NotFound(w, r)
		}
	}))

	got, err := client.ListMessages(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q", got[0].Content)

	_, err = client.ListMessages(context.Background(), 6)
	assert.ErrorIs(t, err, lunarys.ErrUnavailable)
}

func TestClient_DeleteConversation(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/api/conversations/1":
			w.WriteHeader(http.StatusNoContent)
		case "/api/conversations/2":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))

	got, err := client.DeleteConversation(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, lunarys.DeleteRemoved, got)

	got, err = client.DeleteConversation(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, lunarys.DeleteNotFound, got)

	_, err = client.DeleteConversation(context.Background(), 3)
	var statusErr *lunarys.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}
