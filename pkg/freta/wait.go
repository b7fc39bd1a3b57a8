package freta

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// DefaultWaitInterval is the pause between poll ticks.
const DefaultWaitInterval = time.Second

// TickFunc checks whether a server-side operation has finished. It is
// invoked exactly once per tick and may itself perform network I/O; any
// error terminates the wait immediately.
type TickFunc func(ctx context.Context) (done bool, message string, err error)

// Sink receives progress feedback from Wait.
type Sink interface {
	// Message surfaces the latest progress message, once per tick.
	Message(msg string)
	// Done marks the end of the wait so the sink can finish its output.
	Done()
}

// Wait blocks until fn reports done, sleeping interval between ticks and
// surfacing progress messages to the sink.
//
// Wait has no attempt bound or timeout of its own: termination is entirely
// the predicate's responsibility, and a predicate that never reports done
// loops until the context is cancelled. Cancellation returns ctx.Err().
func Wait(ctx context.Context, fn TickFunc, interval time.Duration, sink Sink) error {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	if sink == nil {
		sink = discardSink{}
	}

	waited := false
	defer func() {
		if waited {
			sink.Done()
		}
	}()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		done, message, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		sink.Message(message)
		waited = true

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// NewSink builds the appropriate feedback sink for a writer: a rotating
// spinner when the writer is an interactive terminal, otherwise a plain
// printer that suppresses consecutive duplicate messages.
func NewSink(w io.Writer) Sink {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return &spinnerSink{w: w}
	}
	return &plainSink{w: w}
}

var spinnerFrames = []string{"-", `\`, "|", "/"}

// spinnerSink overwrites a single terminal line with a spinner frame and
// the latest message.
type spinnerSink struct {
	w     io.Writer
	frame int
	wrote bool
}

func (s *spinnerSink) Message(msg string) {
	fmt.Fprintf(s.w, "\r%s %s\x1b[K", spinnerFrames[s.frame], msg)
	s.frame = (s.frame + 1) % len(spinnerFrames)
	s.wrote = true
}

func (s *spinnerSink) Done() {
	if s.wrote {
		fmt.Fprintln(s.w)
	}
}

// plainSink prints each message on its own line, skipping repeats so slow
// operations do not flood logs.
type plainSink struct {
	w    io.Writer
	last string
}

func (s *plainSink) Message(msg string) {
	if msg == s.last {
		return
	}
	fmt.Fprintln(s.w, msg)
	s.last = msg
}

func (s *plainSink) Done() {}

type discardSink struct{}

func (discardSink) Message(string) {}
func (discardSink) Done()          {}
