package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
)

const token = "123:abc"

// apiServer answers Bot API methods with canned JSON bodies and records the
// decoded payload of each call.
type apiServer struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]map[string]any
	handlers map[string]func(w http.ResponseWriter, payload map[string]any)
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	s := &apiServer{
		calls:    make(map[string]map[string]any),
		handlers: make(map[string]func(w http.ResponseWriter, payload map[string]any)),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/bot"+token+"/", func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[len("/bot"+token+"/"):]
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		s.mu.Lock()
		s.calls[method] = payload
		h, ok := s.handlers[method]
		s.mu.Unlock()
		if !ok {
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
			return
		}
		h(w, payload)
	})
	mux.HandleFunc("/file/bot"+token+"/voice/file_7.oga", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OggS-audio"))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) on(method, body string) {
	s.onStatus(method, http.StatusOK, body)
}

func (s *apiServer) onStatus(method string, status int, body string) {
	s.handle(method, func(w http.ResponseWriter, _ map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (s *apiServer) handle(method string, h func(w http.ResponseWriter, payload map[string]any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// payload returns the last payload posted to method.
func (s *apiServer) payload(method string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *apiServer) client() *Client {
	return NewClientWithHTTP(s.Server.Client(), token, s.URL)
}

func TestSendText_InlineKeyboard(t *testing.T) {
	srv := newAPIServer(t)
	srv.on("sendMessage", `{"ok":true,"result":{"message_id":42,"chat":{"id":7,"type":"private"}}}`)

	id, err := srv.client().SendText(context.Background(), 7, "<b>hi</b>", chat.SendOptions{
		HTML:   true,
		Inline: chat.Keyboard{chat.Row(chat.Button{Text: "Yes", Data: "cy:m-1"})},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	got := srv.payload("sendMessage")
	assert.EqualValues(t, 7, got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	markup := got["reply_markup"].(map[string]any)
	button := markup["inline_keyboard"].([]any)[0].([]any)[0].(map[string]any)
	assert.Equal(t, "Yes", button["text"])
	assert.Equal(t, "cy:m-1", button["callback_data"])
}

func TestSendText_ReplyMarkups(t *testing.T) {
	srv := newAPIServer(t)
	srv.on("sendMessage", `{"ok":true,"result":{"message_id":1,"chat":{"id":7,"type":"private"}}}`)
	c := srv.client()
	ctx := context.Background()

	_, err := c.SendText(ctx, 7, "reminder?", chat.SendOptions{Reply: [][]string{{"Yes", "No"}}})
	require.NoError(t, err)
	markup := srv.payload("sendMessage")["reply_markup"].(map[string]any)
	assert.Equal(t, true, markup["one_time_keyboard"])
	assert.Len(t, markup["keyboard"].([]any)[0], 2)
	_, hasParse := srv.payload("sendMessage")["parse_mode"]
	assert.False(t, hasParse)

	_, err = c.SendText(ctx, 7, "poll", chat.SendOptions{PollButton: "Create poll"})
	require.NoError(t, err)
	markup = srv.payload("sendMessage")["reply_markup"].(map[string]any)
	button := markup["keyboard"].([]any)[0].([]any)[0].(map[string]any)
	assert.Equal(t, "Create poll", button["text"])
	assert.Contains(t, button, "request_poll")

	_, err = c.SendText(ctx, 7, "name?", chat.SendOptions{ForceReply: true})
	require.NoError(t, err)
	markup = srv.payload("sendMessage")["reply_markup"].(map[string]any)
	assert.Equal(t, true, markup["force_reply"])

	_, err = c.SendText(ctx, 7, "done", chat.SendOptions{RemoveReply: true})
	require.NoError(t, err)
	markup = srv.payload("sendMessage")["reply_markup"].(map[string]any)
	assert.Equal(t, true, markup["remove_keyboard"])
}

func TestSendText_ForbiddenIsUnauthorized(t *testing.T) {
	srv := newAPIServer(t)
	srv.onStatus("sendMessage", http.StatusForbidden,
		`{"ok":false,"error_code":403,"description":"Forbidden: bot can't initiate conversation with a user"}`)

	_, err := srv.client().SendText(context.Background(), 7, "hi", chat.SendOptions{})
	require.Error(t, err)
	assert.True(t, apperr.IsUnauthorized(err))

	var ue *apperr.UnauthorizedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, int64(7), ue.ChatID)
}

func TestCall_OtherFailuresAreExternal(t *testing.T) {
	srv := newAPIServer(t)
	srv.onStatus("sendDocument", http.StatusBadRequest,
		`{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier"}`)

	err := srv.client().SendDocument(context.Background(), 7, "bogus", "")
	require.Error(t, err)
	assert.True(t, apperr.IsExternalService(err))
	assert.False(t, apperr.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "wrong file identifier")
}

func TestCall_RetriesRateLimited(t *testing.T) {
	srv := newAPIServer(t)
	var calls int32
	srv.handle("answerCallbackQuery", func(w http.ResponseWriter, _ map[string]any) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, srv.client().AnswerCallback(context.Background(), "cb-1", "Thanks"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "Thanks", srv.payload("answerCallbackQuery")["text"])
}

func TestEditMessage_NotModifiedIgnored(t *testing.T) {
	srv := newAPIServer(t)
	srv.onStatus("editMessageText", http.StatusBadRequest,
		`{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)

	err := srv.client().EditMessage(context.Background(), 7, 10, "same", chat.SendOptions{HTML: true})
	require.NoError(t, err)
	assert.EqualValues(t, 10, srv.payload("editMessageText")["message_id"])
}

func TestSendDocumentAndPoll(t *testing.T) {
	srv := newAPIServer(t)
	c := srv.client()
	ctx := context.Background()

	require.NoError(t, c.SendDocument(ctx, 7, "file-1", "Here's your meeting agenda."))
	assert.Equal(t, "file-1", srv.payload("sendDocument")["document"])
	assert.Equal(t, "HTML", srv.payload("sendDocument")["parse_mode"])

	require.NoError(t, c.SendPoll(ctx, -5, chat.Poll{Question: "Lunch?", Options: []string{"Pizza", "Sushi"}, MultipleAnswers: true}))
	got := srv.payload("sendPoll")
	assert.Equal(t, "Lunch?", got["question"])
	assert.Equal(t, true, got["allows_multiple_answers"])
	options := got["options"].([]any)
	require.Len(t, options, 2)
	assert.Equal(t, "Sushi", options[1].(map[string]any)["text"])
}

func TestGetUpdatesAndAdministrators(t *testing.T) {
	srv := newAPIServer(t)
	srv.on("getUpdates", `{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"from":{"id":1,"first_name":"Alice"},"chat":{"id":1,"type":"private"},"text":"hi"}}]}`)
	srv.on("getChatAdministrators", `{"ok":true,"result":[{"status":"creator","user":{"id":1,"first_name":"Alice"}},{"status":"administrator","user":{"id":99,"is_bot":true,"first_name":"Dojo"}}]}`)
	c := srv.client()
	ctx := context.Background()

	updates, err := c.GetUpdates(ctx, 5, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "hi", updates[0].Message.Text)
	assert.EqualValues(t, 5, srv.payload("getUpdates")["offset"])
	assert.EqualValues(t, 30, srv.payload("getUpdates")["timeout"])

	admins, err := c.ChatAdministrators(ctx, -5)
	require.NoError(t, err)
	assert.Equal(t, []chat.User{{ID: 1, FirstName: "Alice"}, {ID: 99, FirstName: "Dojo", IsBot: true}}, admins)
}

func TestFetchFile(t *testing.T) {
	srv := newAPIServer(t)
	srv.on("getFile", `{"ok":true,"result":{"file_id":"v-7","file_path":"voice/file_7.oga"}}`)

	data, err := srv.client().FetchFile(context.Background(), "v-7")
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS-audio"), data)
	assert.Equal(t, "v-7", srv.payload("getFile")["file_id"])
}
