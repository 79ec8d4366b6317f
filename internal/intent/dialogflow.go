package intent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/model"
)

const (
	dialogflowScope   = "https://www.googleapis.com/auth/dialogflow"
	defaultDialogflow = "https://dialogflow.googleapis.com"

	// Voice notes arrive as OGG/Opus at 48kHz.
	audioEncoding   = "AUDIO_ENCODING_OGG_OPUS"
	audioSampleRate = 48000
)

// DialogflowClient is a Detector backed by the Dialogflow ES v2 REST API.
// It retries rate-limited calls with exponential backoff.
type DialogflowClient struct {
	baseURL      string
	projectID    string
	languageCode string
	httpClient   *http.Client
	maxRetries   int
}

// NewDialogflowClient authenticates with a service account key and returns
// a client for the configured agent.
func NewDialogflowClient(ctx context.Context, cfg model.NLUConfig, credentialsJSON []byte) (*DialogflowClient, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, dialogflowScope)
	if err != nil {
		return nil, fmt.Errorf("parsing dialogflow credentials: %w", err)
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = creds.ProjectID
	}

	httpClient := oauth2.NewClient(ctx, creds.TokenSource)
	httpClient.Timeout = time.Duration(cfg.TimeoutSec) * time.Second

	return NewDialogflowClientWithHTTP(httpClient, cfg.BaseURL, projectID, cfg.LanguageCode), nil
}

// NewDialogflowClientWithHTTP creates a client over an already authorised
// HTTP client.
func NewDialogflowClientWithHTTP(httpClient *http.Client, baseURL, projectID, languageCode string) *DialogflowClient {
	if baseURL == "" {
		baseURL = defaultDialogflow
	}
	if languageCode == "" {
		languageCode = "en"
	}
	return &DialogflowClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		projectID:    projectID,
		languageCode: languageCode,
		httpClient:   httpClient,
		maxRetries:   3,
	}
}

type textInput struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type audioConfig struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type queryInput struct {
	Text        *textInput   `json:"text,omitempty"`
	AudioConfig *audioConfig `json:"audioConfig,omitempty"`
}

type detectIntentRequest struct {
	QueryInput queryInput `json:"queryInput"`
	InputAudio string     `json:"inputAudio,omitempty"`
}

type detectIntentResponse struct {
	QueryResult struct {
		QueryText                string                 `json:"queryText"`
		Parameters               map[string]interface{} `json:"parameters"`
		AllRequiredParamsPresent bool                   `json:"allRequiredParamsPresent"`
		FulfillmentText          string                 `json:"fulfillmentText"`
		Intent                   struct {
			DisplayName string `json:"displayName"`
		} `json:"intent"`
	} `json:"queryResult"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Detect sends one detectIntent request for the session.
func (c *DialogflowClient) Detect(ctx context.Context, sessionID string, q Query) (*Response, error) {
	if q.Empty() {
		return nil, ErrNoInput
	}

	var body detectIntentRequest
	if len(q.Audio) > 0 {
		body.QueryInput.AudioConfig = &audioConfig{
			AudioEncoding:   audioEncoding,
			SampleRateHertz: audioSampleRate,
			LanguageCode:    c.languageCode,
		}
		body.InputAudio = base64.StdEncoding.EncodeToString(q.Audio)
	} else {
		body.QueryInput.Text = &textInput{Text: q.Text, LanguageCode: c.languageCode}
	}

	path := fmt.Sprintf("/v2/projects/%s/agent/sessions/%s:detectIntent",
		url.PathEscape(c.projectID), url.PathEscape(sessionID))

	var out detectIntentResponse
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, apperr.ExternalService("dialogflow", err)
	}

	qr := out.QueryResult
	return &Response{
		IntentName:               qr.Intent.DisplayName,
		Parameters:               qr.Parameters,
		AllRequiredParamsPresent: qr.AllRequiredParamsPresent,
		FulfillmentText:          qr.FulfillmentText,
		QueryText:                qr.QueryText,
	}, nil
}

// post sends a JSON body, retrying on HTTP 429.
func (c *DialogflowClient) post(ctx context.Context, path string, body, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request POST %s: %w", path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429) on POST %s", path)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var apiErr errorResponse
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				return fmt.Errorf("dialogflow API error (%d %s): %s",
					resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
			}
			return fmt.Errorf("unexpected status %d on POST %s: %s",
				resp.StatusCode, path, string(respBody))
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from POST %s: %w", path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and falls back to
// exponential backoff capped at 30s.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
