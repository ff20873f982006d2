// Package client talks to a running pattern server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pattern-bot/internal/server"
	"pattern-bot/internal/session"
	"pattern-bot/internal/symbol"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

// ErrNotFound is returned when the server does not know the session.
var ErrNotFound = errors.New("session not found")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pattern server: %d %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type Client struct {
	base string
	rest *resty.Client
}

// New returns a client for the server at base.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// CreateSession starts a new session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (server.CreateResponse, error) {
	var out server.CreateResponse
	err := c.do(ctx, http.MethodPost, "/sessions", nil, &out)
	return out, err
}

// Sessions lists the live sessions.
func (c *Client) Sessions(ctx context.Context) ([]session.Stats, error) {
	var out []session.Stats
	err := c.do(ctx, http.MethodGet, "/sessions", nil, &out)
	return out, err
}

// Push sends one symbol to session id.
func (c *Client) Push(ctx context.Context, id string, in symbol.Symbol) (session.Outcome, error) {
	var out session.Outcome
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/push", server.PushRequest{Input: &in}, &out)
	return out, err
}

// Predict returns the outstanding prediction of session id. ok is false
// while the session has too little history.
func (c *Client) Predict(ctx context.Context, id string) (next symbol.Symbol, ok bool, err error) {
	var out server.PredictResponse
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/predict", nil, &out); err != nil {
		return symbol.Black, false, err
	}
	if !out.Available || out.Next == nil {
		return symbol.Black, false, nil
	}
	return *out.Next, true, nil
}

// Stats returns the scoring of session id.
func (c *Client) Stats(ctx context.Context, id string) (session.Stats, error) {
	var out session.Stats
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/stats", nil, &out)
	return out, err
}

// Debug returns the context table of session id.
func (c *Client) Debug(ctx context.Context, id string) (session.Snapshot, error) {
	var out session.Snapshot
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/debug", nil, &out)
	return out, err
}

// DeleteSession ends session id.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	apiErr := &server.ErrorResponse{}
	req := c.rest.R().SetContext(ctx).SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.String()
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}

// Stream is an open WebSocket to one session.
type Stream struct {
	conn *websocket.Conn
}

// OpenStream dials the WebSocket endpoint of session id.
func (c *Client) OpenStream(ctx context.Context, id string) (*Stream, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/sessions/" + url.PathEscape(id) + "/stream"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Push sends one symbol and waits for its outcome.
func (s *Stream) Push(in symbol.Symbol) (session.Outcome, error) {
	var out session.Outcome
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(in.String())); err != nil {
		return out, fmt.Errorf("write: %w", err)
	}
	var raw json.RawMessage
	if err := s.conn.ReadJSON(&raw); err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	var apiErr server.ErrorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
		return out, fmt.Errorf("stream: %s", apiErr.Error)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode outcome: %w", err)
	}
	return out, nil
}

// Close sends a close frame and releases the connection.
func (s *Stream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
