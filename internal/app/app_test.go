package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/dojobot/internal/intent"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/server"
)

type fakeSecrets struct {
	tokenErr error
	keyErr   error
}

func (f fakeSecrets) TelegramToken(configured string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	if configured != "" {
		return configured, nil
	}
	return "123:abc", nil
}

func (f fakeSecrets) NLUCredentials(string) ([]byte, error) {
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	return []byte(`{}`), nil
}

type fallbackDetector struct{}

func (fallbackDetector) Detect(_ context.Context, _ string, q intent.Query) (*intent.Response, error) {
	return &intent.Response{IntentName: "Default Fallback Intent", FulfillmentText: "Sorry, what was that?", QueryText: q.Text}, nil
}

// botAPI fakes the Telegram endpoints the app touches.
type botAPI struct {
	*httptest.Server

	mu    sync.Mutex
	calls []string
}

func newBotAPI(t *testing.T) *botAPI {
	t.Helper()
	api := &botAPI{}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		api.mu.Lock()
		api.calls = append(api.calls, method)
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"Dojo Bot","username":"dojo_bot"}}`))
		case "getUpdates":
			time.Sleep(10 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1,"type":"private"}}}`))
		}
	}))
	t.Cleanup(api.Close)
	return api
}

func (a *botAPI) called(method string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.calls {
		if c == method {
			return true
		}
	}
	return false
}

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Store.DSN = ":memory:"
	cfg.Server.Addr = ""
	return cfg
}

func newApp(t *testing.T, cfg *model.AppConfig, opts Options) *App {
	t.Helper()
	if opts.Detector == nil {
		opts.Detector = fallbackDetector{}
	}
	a, err := New(context.Background(), cfg, logging.Discard(), fakeSecrets{}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	return a
}

func TestNew_ConsoleMode(t *testing.T) {
	a := newApp(t, testConfig(t), Options{Console: true})

	assert.NotNil(t, a.console)
	assert.Nil(t, a.bot)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_MissingSecrets(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(context.Background(), cfg, logging.Discard(),
		fakeSecrets{tokenErr: errors.New("no token")}, Options{Detector: fallbackDetector{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram token")

	_, err = New(context.Background(), cfg, logging.Discard(),
		fakeSecrets{keyErr: errors.New("no key")}, Options{Console: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NLU credentials")
}

func TestNew_UnknownStoreDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := New(context.Background(), cfg, logging.Discard(), fakeSecrets{}, Options{Console: true, Detector: fallbackDetector{}})
	assert.Error(t, err)
}

func TestWebhookMode_RepliesThroughTelegram(t *testing.T) {
	api := newBotAPI(t)
	cfg := testConfig(t)
	cfg.Telegram.Mode = model.TelegramModeWebhook
	cfg.Telegram.WebhookSecret = "s3cret"

	a := newApp(t, cfg, Options{TelegramBaseURL: api.URL})
	require.NotNil(t, a.bot)

	body := `{"update_id":1,"message":{"message_id":5,"from":{"id":1,"first_name":"Alice"},"chat":{"id":1,"type":"private"},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set(server.SecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, api.called("sendMessage"))
}

func TestRun_PollingStopsOnCancel(t *testing.T) {
	api := newBotAPI(t)
	a := newApp(t, testConfig(t), Options{TelegramBaseURL: api.URL})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return api.called("getUpdates") }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, api.called("getMe"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestInitDB(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.DSN = filepath.Join(t.TempDir(), "dojobot.db")

	version, err := InitDB(context.Background(), cfg)
	require.NoError(t, err)
	assert.Positive(t, version)

	again, err := InitDB(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, version, again)
}
