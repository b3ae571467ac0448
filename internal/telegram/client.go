// Package telegram is a small Bot API client covering the methods the bot,
// the notifier and the photo proxy need.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evotags/evotags/pkg/httpclient"
)

const serviceName = "telegram"

// ErrNotFound is returned when Telegram does not know the requested file.
var ErrNotFound = errors.New("telegram: not found")

// Doer sends HTTP requests. Both *httpclient.Client and
// *httpclient.CircuitBreakerClient satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// Client calls the Bot API.
type Client struct {
	http    Doer
	baseURL string
	token   string
}

// NewClient creates a client for token against baseURL
// (https://api.telegram.org in production).
func NewClient(doer Doer, baseURL, token string) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// call POSTs params as JSON to method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bot"+c.token+"/"+method, bytes.NewReader(body))
	if err != nil {
		return c.redact(fmt.Errorf("create %s request: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return c.redact(fmt.Errorf("telegram %s: %w", method, err))
	}
	defer func() { _ = resp.Body.Close() }()

	var env apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &httpclient.StatusError{Service: serviceName, StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: env.Description}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// redact strips the bot token from err. Transport errors quote the request
// URL, which carries the token.
func (c *Client) redact(err error) error {
	if err == nil || c.token == "" || !strings.Contains(err.Error(), c.token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), c.token, "<redacted>"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends text to chatID. markup may be nil.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if markup != nil {
		params["reply_markup"] = markup
	}
	return c.call(ctx, "sendMessage", params, nil)
}

// AnswerCallbackQuery acknowledges a callback query.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": queryID}, nil)
}

// GetUserProfilePhotos returns up to limit profile photos of userID.
func (c *Client) GetUserProfilePhotos(ctx context.Context, userID int64, limit int) (*UserProfilePhotos, error) {
	var photos UserProfilePhotos
	err := c.call(ctx, "getUserProfilePhotos", map[string]any{"user_id": userID, "limit": limit}, &photos)
	if err != nil {
		return nil, err
	}
	return &photos, nil
}

// GetFile resolves fileID to a downloadable path. Unknown ids yield
// ErrNotFound.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	if err := c.call(ctx, "getFile", map[string]any{"file_id": fileID}, &f); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, apiErr.Description)
		}
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("%w: file %s has no path", ErrNotFound, fileID)
	}
	return &f, nil
}

// FileContent is an open download. The caller closes Body.
type FileContent struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// OpenFile starts downloading filePath as returned by GetFile.
func (c *Client) OpenFile(ctx context.Context, filePath string) (*FileContent, error) {
	u := c.baseURL + "/file/bot" + c.token + "/" + strings.TrimLeft(escapePath(filePath), "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, c.redact(fmt.Errorf("create download request: %w", err))
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, c.redact(fmt.Errorf("download file: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
	}
	if err := httpclient.CheckResponse(resp, serviceName); err != nil {
		return nil, c.redact(err)
	}

	return &FileContent{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
