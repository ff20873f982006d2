package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pattern-bot/internal/client"
	"pattern-bot/internal/common"
	"pattern-bot/internal/session"
	"pattern-bot/internal/symbol"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	defaultURL := os.Getenv(common.EnvServerURL)
	if defaultURL == "" {
		defaultURL = common.DefaultServerURL
	}

	var (
		serverURL = flag.String("url", defaultURL, "Pattern server base URL")
		sessionID = flag.String("session", "", "Existing session id (default: create one)")
		stream    = flag.Bool("stream", false, "Push over a WebSocket instead of one request per symbol")
		keep      = flag.Bool("keep", false, "Keep a created session when exiting")
		timeout   = flag.Duration("timeout", 5*time.Second, "Request timeout")
		logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c := client.New(*serverURL, *timeout)
	opts := options{sessionID: *sessionID, stream: *stream, keep: *keep}
	if err := execute(context.Background(), c, opts, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Str("url", *serverURL).Msg("session ended with error")
	}
}

type options struct {
	sessionID string
	stream    bool
	keep      bool
}

// execute attaches to or creates a session and runs the input loop. A session
// created here is deleted on every return path unless opts.keep is set.
func execute(ctx context.Context, c *client.Client, opts options, in io.Reader, out io.Writer) error {
	id := opts.sessionID
	if id == "" {
		created, err := c.CreateSession(ctx)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		id = created.ID
		fmt.Fprintf(out, "session %s (context size %d)\n", id, created.ContextSize)
		if !opts.keep {
			defer func() {
				if err := c.DeleteSession(ctx, id); err != nil {
					log.Warn().Err(err).Str("session", id).Msg("failed to delete session")
				}
			}()
		}
	}

	push := func(in symbol.Symbol) (session.Outcome, error) { return c.Push(ctx, id, in) }
	if opts.stream {
		s, err := c.OpenStream(ctx, id)
		if err != nil {
			return fmt.Errorf("open stream: %w", err)
		}
		defer s.Close()
		push = s.Push
	}

	return run(ctx, c, id, in, out, push)
}

// run reads whitespace separated symbols or commands from in until EOF or
// "quit".
func run(ctx context.Context, c *client.Client, id string, in io.Reader, out io.Writer,
	push func(symbol.Symbol) (session.Outcome, error)) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		for _, tok := range strings.Fields(scanner.Text()) {
			switch strings.ToLower(tok) {
			case "quit", "exit":
				return nil
			case "predict":
				next, ok, err := c.Predict(ctx, id)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(out, "next: %s\n", next)
				} else {
					fmt.Fprintln(out, "next: not enough history")
				}
			case "stats":
				st, err := c.Stats(ctx, id)
				if err != nil {
					return err
				}
				printStats(out, st)
			case "debug":
				snap, err := c.Debug(ctx, id)
				if err != nil {
					return err
				}
				printSnapshot(out, snap)
			default:
				sym, err := symbol.Parse(tok)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				res, err := push(sym)
				if err != nil {
					return err
				}
				printOutcome(out, res)
			}
		}
	}
	return scanner.Err()
}

func printOutcome(w io.Writer, o session.Outcome) {
	if o.Predicted != nil {
		mark := "miss"
		if o.Correct {
			mark = "hit"
		}
		fmt.Fprintf(w, "%s: predicted %s, %s", o.Input, *o.Predicted, mark)
	} else {
		fmt.Fprintf(w, "%s: no prediction", o.Input)
	}
	if o.Next != nil {
		fmt.Fprintf(w, " | next %s", *o.Next)
	}
	fmt.Fprintf(w, " | %d/%d correct (%.1f%%)\n", o.Stats.Correct, o.Stats.Predictions, o.Stats.Ratio*100)
}

func printStats(w io.Writer, st session.Stats) {
	fmt.Fprintf(w, "inputs %d, predictions %d, correct %d (%.1f%%), contexts %d\n",
		st.Inputs, st.Predictions, st.Correct, st.Ratio*100, st.Contexts)
}

func printSnapshot(w io.Writer, snap session.Snapshot) {
	printStats(w, snap.Stats)
	for _, e := range snap.Contexts {
		var sb strings.Builder
		for _, s := range e.Context {
			sb.WriteString(strings.ToUpper(s.String()[:1]))
		}
		fmt.Fprintf(w, "  %s  black=%d white=%d\n", sb.String(), e.Counter.Zero, e.Counter.One)
	}
}
