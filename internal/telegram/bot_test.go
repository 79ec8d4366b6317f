package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/chat"
)

type recorder struct {
	mu        sync.Mutex
	messages  []chat.Message
	callbacks []chat.Callback
	onMessage func()
}

func (r *recorder) HandleMessage(_ context.Context, msg chat.Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	hook := r.onMessage
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (r *recorder) HandleCallback(_ context.Context, cb chat.Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
	return nil
}

func identifiedBot(t *testing.T, srv *apiServer, h Handler) *Bot {
	t.Helper()
	srv.on("getMe", `{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"Dojo Bot","username":"dojo_bot"}}`)
	b := NewBot(srv.client(), h, time.Second, nil)
	me, err := b.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dojo_bot", me.Username)
	return b
}

func decodeUpdate(t *testing.T, raw string) Update {
	t.Helper()
	var u Update
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return u
}

func TestHandleUpdate_GroupMessage(t *testing.T) {
	srv := newAPIServer(t)
	rec := &recorder{}
	b := identifiedBot(t, srv, rec)

	upd := decodeUpdate(t, `{"update_id":1,"message":{
		"message_id":8,
		"from":{"id":1,"first_name":"Alice","username":"alice"},
		"chat":{"id":-500,"type":"supergroup","title":"Project X"},
		"text":"sure",
		"reply_to_message":{"message_id":7,"from":{"id":99,"is_bot":true,"first_name":"Dojo Bot"},"chat":{"id":-500,"type":"supergroup"}}
	}}`)
	require.NoError(t, b.HandleUpdate(context.Background(), upd))

	require.Len(t, rec.messages, 1)
	msg := rec.messages[0]
	assert.Equal(t, int64(-500), msg.ChatID)
	assert.Equal(t, chat.Supergroup, msg.ChatType)
	assert.True(t, msg.ChatType.IsGroup())
	assert.Equal(t, "Project X", msg.Title)
	assert.Equal(t, chat.User{ID: 1, FirstName: "Alice", Username: "alice"}, msg.From)
	assert.True(t, msg.ReplyToBot)
}

func TestHandleUpdate_MembersJoining(t *testing.T) {
	srv := newAPIServer(t)
	rec := &recorder{}
	b := identifiedBot(t, srv, rec)

	upd := decodeUpdate(t, `{"update_id":2,"message":{
		"message_id":9,
		"from":{"id":1,"first_name":"Alice"},
		"chat":{"id":-500,"type":"group","title":"Project X"},
		"new_chat_members":[{"id":99,"is_bot":true,"first_name":"Dojo Bot"},{"id":3,"first_name":"Carol"}]
	}}`)
	require.NoError(t, b.HandleUpdate(context.Background(), upd))

	require.Len(t, rec.messages, 1)
	msg := rec.messages[0]
	assert.True(t, msg.BotAdded)
	assert.Equal(t, []chat.User{{ID: 3, FirstName: "Carol"}}, msg.NewMembers)
}

func TestHandleUpdate_DocumentVoicePoll(t *testing.T) {
	srv := newAPIServer(t)
	rec := &recorder{}
	b := identifiedBot(t, srv, rec)
	ctx := context.Background()

	require.NoError(t, b.HandleUpdate(ctx, decodeUpdate(t, `{"update_id":3,"message":{
		"message_id":10,"from":{"id":1,"first_name":"Alice"},"chat":{"id":1,"type":"private"},
		"caption":"agenda","document":{"file_id":"f-1","file_name":"agenda.pdf","mime_type":"application/pdf"}}}`)))
	require.NoError(t, b.HandleUpdate(ctx, decodeUpdate(t, `{"update_id":4,"message":{
		"message_id":11,"from":{"id":1,"first_name":"Alice"},"chat":{"id":1,"type":"private"},
		"voice":{"file_id":"v-1","duration":3}}}`)))
	require.NoError(t, b.HandleUpdate(ctx, decodeUpdate(t, `{"update_id":5,"message":{
		"message_id":12,"from":{"id":1,"first_name":"Alice"},"chat":{"id":1,"type":"private"},
		"poll":{"id":"p","question":"Lunch?","options":[{"text":"Pizza"},{"text":"Sushi"}],"is_anonymous":true}}}`)))

	require.Len(t, rec.messages, 3)
	assert.Equal(t, &chat.Document{FileID: "f-1", FileName: "agenda.pdf", MimeType: "application/pdf"}, rec.messages[0].Document)
	assert.Equal(t, "agenda", rec.messages[0].Text)
	assert.Equal(t, &chat.Voice{FileID: "v-1", Duration: 3}, rec.messages[1].Voice)
	assert.Equal(t, &chat.Poll{Question: "Lunch?", Options: []string{"Pizza", "Sushi"}, Anonymous: true}, rec.messages[2].Poll)
}

func TestHandleUpdate_Callback(t *testing.T) {
	srv := newAPIServer(t)
	rec := &recorder{}
	b := identifiedBot(t, srv, rec)
	ctx := context.Background()

	require.NoError(t, b.HandleUpdate(ctx, decodeUpdate(t, `{"update_id":6,"callback_query":{
		"id":"cb-1","from":{"id":2,"first_name":"Bob"},"data":"tv",
		"message":{"message_id":30,"chat":{"id":-500,"type":"group"}}}}`)))
	require.NoError(t, b.HandleUpdate(ctx, decodeUpdate(t, `{"update_id":7,"callback_query":{
		"id":"cb-2","from":{"id":2,"first_name":"Bob"},"data":"tv"}}`)))

	require.Len(t, rec.callbacks, 1)
	assert.Equal(t, chat.Callback{
		ID: "cb-1", From: chat.User{ID: 2, FirstName: "Bob"},
		ChatID: -500, ChatType: chat.Group, MessageID: 30, Data: "tv",
	}, rec.callbacks[0])
}

func TestHandleUpdate_ChannelPostIgnored(t *testing.T) {
	srv := newAPIServer(t)
	rec := &recorder{}
	b := NewBot(srv.client(), rec, time.Second, nil)

	require.NoError(t, b.HandleUpdate(context.Background(), decodeUpdate(t,
		`{"update_id":8,"message":{"message_id":1,"chat":{"id":-100,"type":"channel"},"text":"news"}}`)))
	assert.Empty(t, rec.messages)
}

func TestRun_AdvancesOffsetAndStops(t *testing.T) {
	srv := newAPIServer(t)
	var mu sync.Mutex
	var offsets []any
	srv.handle("getUpdates", func(w http.ResponseWriter, payload map[string]any) {
		mu.Lock()
		offsets = append(offsets, payload["offset"])
		first := len(offsets) == 1
		mu.Unlock()
		if first {
			_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":41,"message":{"message_id":1,"from":{"id":1,"first_name":"Alice"},"chat":{"id":1,"type":"private"},"text":"hi"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{}
	b := NewBot(srv.client(), rec, time.Second, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.messages) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, offsets)
	assert.Nil(t, offsets[0], "the first poll sends no offset")
}
