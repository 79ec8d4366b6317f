package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/telegram"
)

type updateSink struct {
	updates []telegram.Update
	err     error
}

func (s *updateSink) HandleUpdate(_ context.Context, upd telegram.Update) error {
	s.updates = append(s.updates, upd)
	return s.err
}

const updateBody = `{"update_id":7,"message":{"message_id":1,"from":{"id":1,"first_name":"Alice"},"chat":{"id":1,"type":"private"},"text":"hi"}}`

func post(t *testing.T, h http.Handler, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewRouter(nil, "", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhook_DeliversUpdate(t *testing.T) {
	sink := &updateSink{}
	h := NewRouter(sink, "s3cret", nil)

	rec := post(t, h, "s3cret", updateBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.updates, 1)
	assert.Equal(t, 7, sink.updates[0].UpdateID)
	assert.Equal(t, "hi", sink.updates[0].Message.Text)
}

func TestWebhook_RejectsWrongSecret(t *testing.T) {
	sink := &updateSink{}
	h := NewRouter(sink, "s3cret", nil)

	assert.Equal(t, http.StatusUnauthorized, post(t, h, "", updateBody).Code)
	assert.Equal(t, http.StatusUnauthorized, post(t, h, "guess", updateBody).Code)
	assert.Empty(t, sink.updates)
}

func TestWebhook_BadBody(t *testing.T) {
	sink := &updateSink{}
	h := NewRouter(sink, "", nil)

	assert.Equal(t, http.StatusBadRequest, post(t, h, "", "{not json").Code)
	assert.Empty(t, sink.updates)
}

func TestWebhook_HandlerErrorStillAcknowledged(t *testing.T) {
	sink := &updateSink{err: errors.New("dialogflow down")}
	h := NewRouter(sink, "", nil)

	assert.Equal(t, http.StatusOK, post(t, h, "", updateBody).Code)
	assert.Len(t, sink.updates, 1)
}

func TestWebhook_AbsentInPollingMode(t *testing.T) {
	h := NewRouter(nil, "", nil)
	rec := post(t, h, "", updateBody)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
