package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pattern-bot/internal/client"
	"pattern-bot/internal/server"
	"pattern-bot/internal/session"
	"pattern-bot/internal/symbol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	manager, err := session.NewManager(session.Config{ContextSize: 1, IdleTTL: time.Minute, MaxSessions: 2})
	require.NoError(t, err)
	srv := httptest.NewServer(server.New(manager, 0, 1024, nil).Handler())
	defer srv.Close()

	ctx := context.Background()
	c := client.New(srv.URL, time.Second)
	created, err := c.CreateSession(ctx)
	require.NoError(t, err)

	push := func(in symbol.Symbol) (session.Outcome, error) { return c.Push(ctx, created.ID, in) }
	input := "predict\nw w W grey\nw predict stats debug\nquit\nb\n"

	var out bytes.Buffer
	require.NoError(t, run(ctx, c, created.ID, strings.NewReader(input), &out, push))

	text := out.String()
	assert.Contains(t, text, "next: not enough history")
	assert.Contains(t, text, "white: no prediction")
	assert.Contains(t, text, "error: unknown symbol")
	assert.Contains(t, text, "next: white")
	assert.Contains(t, text, "inputs 4, predictions 3")
	assert.Contains(t, text, "  W  black=0 white=3")

	st, err := c.Stats(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), st.Inputs)
}

func newCtlServer(t *testing.T, failStream bool) (*session.Manager, *client.Client) {
	t.Helper()
	manager, err := session.NewManager(session.Config{ContextSize: 1, IdleTTL: time.Minute, MaxSessions: 2})
	require.NoError(t, err)
	h := server.New(manager, 0, 1024, nil).Handler()
	if failStream {
		inner := h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/stream") {
				http.Error(w, "no streams", http.StatusInternalServerError)
				return
			}
			inner.ServeHTTP(w, r)
		})
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return manager, client.New(srv.URL, time.Second)
}

func TestExecuteDeletesCreatedSession(t *testing.T) {
	manager, c := newCtlServer(t, false)

	var out bytes.Buffer
	err := execute(context.Background(), c, options{stream: true}, strings.NewReader("w b w\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "session ")
	assert.Contains(t, out.String(), "white: predicted")
	assert.Equal(t, 0, manager.Len())
}

func TestExecuteDeletesSessionWhenStreamFails(t *testing.T) {
	manager, c := newCtlServer(t, true)

	var out bytes.Buffer
	err := execute(context.Background(), c, options{stream: true}, strings.NewReader("w\n"), &out)
	require.ErrorContains(t, err, "open stream")
	assert.Equal(t, 0, manager.Len())
}

func TestExecuteKeepsSession(t *testing.T) {
	manager, c := newCtlServer(t, false)

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), c, options{keep: true}, strings.NewReader("b b\n"), &out))
	require.Equal(t, 1, manager.Len())

	id := manager.List()[0].ID
	require.NoError(t, execute(context.Background(), c, options{sessionID: id}, strings.NewReader("b\n"), &out))
	st, err := c.Stats(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Inputs)
}
