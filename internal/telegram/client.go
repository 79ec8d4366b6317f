// Package telegram is the Bot API transport: an HTTP client implementing
// chat.Messenger and chat.FileFetcher, and a long-poll loop feeding the
// dispatcher.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	service        = "telegram"

	// maxDownload caps file downloads; the Bot API serves at most 20MB.
	maxDownload = 20 << 20
)

// Client calls the Bot API for one bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a client for token. An empty baseURL selects the public
// API.
func NewClient(token, baseURL string) *Client {
	return NewClientWithHTTP(&http.Client{Timeout: 70 * time.Second}, token, baseURL)
}

// NewClientWithHTTP creates a client over httpClient.
func NewClientWithHTTP(httpClient *http.Client, token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		maxRetries: 3,
	}
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", nil, &u, 0); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	payload := map[string]any{
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates, 0); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendText sends an HTML or plain message and returns its id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, opts chat.SendOptions) (int, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	applyOptions(payload, opts)

	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg, chatID); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendDocument re-sends a stored file by its file id.
func (c *Client) SendDocument(ctx context.Context, chatID int64, docRef, caption string) error {
	payload := map[string]any{
		"chat_id":  chatID,
		"document": docRef,
	}
	if caption != "" {
		payload["caption"] = caption
		payload["parse_mode"] = "HTML"
	}
	return c.call(ctx, "sendDocument", payload, nil, chatID)
}

// EditMessage replaces the text and inline keyboard of a sent message. An
// edit that changes nothing is not an error.
func (c *Client) EditMessage(ctx context.Context, chatID int64, messageID int, text string, opts chat.SendOptions) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if opts.HTML {
		payload["parse_mode"] = "HTML"
	}
	if len(opts.Inline) > 0 {
		payload["reply_markup"] = replyMarkup{InlineKeyboard: inlineKeyboard(opts.Inline)}
	}

	err := c.call(ctx, "editMessageText", payload, nil, chatID)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil, 0)
}

// SendPoll posts a native poll.
func (c *Client) SendPoll(ctx context.Context, chatID int64, poll chat.Poll) error {
	options := make([]PollOption, 0, len(poll.Options))
	for _, o := range poll.Options {
		options = append(options, PollOption{Text: o})
	}
	payload := map[string]any{
		"chat_id":                 chatID,
		"question":                poll.Question,
		"options":                 options,
		"is_anonymous":            poll.Anonymous,
		"allows_multiple_answers": poll.MultipleAnswers,
	}
	return c.call(ctx, "sendPoll", payload, nil, chatID)
}

// ChatAdministrators lists the administrators of a group.
func (c *Client) ChatAdministrators(ctx context.Context, chatID int64) ([]chat.User, error) {
	var members []ChatMember
	if err := c.call(ctx, "getChatAdministrators", map[string]any{"chat_id": chatID}, &members, chatID); err != nil {
		return nil, err
	}
	users := make([]chat.User, 0, len(members))
	for _, m := range members {
		users = append(users, toUser(m.User))
	}
	return users, nil
}

// GetFile resolves a file id to a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f, 0); err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, apperr.ExternalService(service, fmt.Errorf("file %s has no download path", fileID))
	}
	return &f, nil
}

// FetchFile downloads the contents of a file id.
func (c *Client) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.ExternalService(service, fmt.Errorf("downloading file %s: %w", fileID, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.ExternalService(service, fmt.Errorf("downloading file %s: status %d", fileID, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, apperr.ExternalService(service, fmt.Errorf("reading file %s: %w", fileID, err))
	}
	return data, nil
}

func applyOptions(payload map[string]any, opts chat.SendOptions) {
	if opts.HTML {
		payload["parse_mode"] = "HTML"
	}
	if opts.ReplyTo != 0 {
		payload["reply_to_message_id"] = opts.ReplyTo
	}

	switch {
	case len(opts.Inline) > 0:
		payload["reply_markup"] = replyMarkup{InlineKeyboard: inlineKeyboard(opts.Inline)}
	case opts.PollButton != "":
		payload["reply_markup"] = replyMarkup{
			Keyboard:       [][]keyboardButton{{{Text: opts.PollButton, RequestPoll: &pollRequest{}}}},
			ResizeKeyboard: true,
		}
	case len(opts.Reply) > 0:
		rows := make([][]keyboardButton, 0, len(opts.Reply))
		for _, r := range opts.Reply {
			row := make([]keyboardButton, 0, len(r))
			for _, text := range r {
				row = append(row, keyboardButton{Text: text})
			}
			rows = append(rows, row)
		}
		payload["reply_markup"] = replyMarkup{Keyboard: rows, ResizeKeyboard: true, OneTimeKeyboard: true}
	case opts.ForceReply:
		payload["reply_markup"] = replyMarkup{ForceReply: true, Selective: true}
	case opts.RemoveReply:
		payload["reply_markup"] = replyMarkup{RemoveKeyboard: true}
	}
}

func inlineKeyboard(kb chat.Keyboard) [][]inlineButton {
	rows := make([][]inlineButton, 0, len(kb))
	for _, r := range kb {
		row := make([]inlineButton, 0, len(r))
		for _, b := range r {
			row = append(row, inlineButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, row)
	}
	return rows
}

// call posts payload to method and decodes the result into out. chatID
// names the target chat in Unauthorized errors. Rate-limited calls are
// retried after the delay the API asks for.
func (c *Client) call(ctx context.Context, method string, payload, out any, chatID int64) error {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", method, err)
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating %s request: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, status, err := c.do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperr.ExternalService(service, fmt.Errorf("%s: %w", method, err))
		}
		if res.Ok {
			if out == nil || len(res.Result) == 0 {
				return nil
			}
			if err := json.Unmarshal(res.Result, out); err != nil {
				return apperr.ExternalService(service, fmt.Errorf("decoding %s result: %w", method, err))
			}
			return nil
		}

		code := res.ErrorCode
		if code == 0 {
			code = status
		}
		switch {
		case code == http.StatusForbidden:
			return &apperr.UnauthorizedError{ChatID: chatID, Message: res.Description}
		case code == http.StatusTooManyRequests && attempt < c.maxRetries:
			wait := time.Second
			if res.Parameters != nil && res.Parameters.RetryAfter > 0 {
				wait = time.Duration(res.Parameters.RetryAfter) * time.Second
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}
		return apperr.ExternalService(service, fmt.Errorf("%s failed (%d): %s", method, code, res.Description))
	}
}

func (c *Client) do(req *http.Request) (apiResponse[json.RawMessage], int, error) {
	var res apiResponse[json.RawMessage]
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return res, 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, resp.StatusCode, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	return res, resp.StatusCode, nil
}

func (c *Client) methodURL(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

func toUser(u User) chat.User {
	return chat.User{ID: u.ID, FirstName: u.FirstName, Username: u.Username, IsBot: u.IsBot}
}

var (
	_ chat.Messenger   = (*Client)(nil)
	_ chat.FileFetcher = (*Client)(nil)
)
