package freta

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// tickScript replays a fixed sequence of predicate results.
type tickScript struct {
	results []struct {
		done bool
		msg  string
	}
	calls int
}

func (s *tickScript) add(done bool, msg string) {
	s.results = append(s.results, struct {
		done bool
		msg  string
	}{done, msg})
}

func (s *tickScript) tick(context.Context) (bool, string, error) {
	r := s.results[s.calls]
	s.calls++
	return r.done, r.msg, nil
}

func TestWaitImmediateDone(t *testing.T) {
	script := &tickScript{}
	script.add(true, "")

	start := time.Now()
	// A long interval proves no sleep happens when the first tick is done.
	err := Wait(context.Background(), script.tick, time.Hour, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, script.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitTicksUntilDone(t *testing.T) {
	script := &tickScript{}
	script.add(false, "imaging: 1")
	script.add(false, "imaging: 2")
	script.add(false, "imaging: 3")
	script.add(true, "")

	var out bytes.Buffer
	err := Wait(context.Background(), script.tick, time.Millisecond, &plainSink{w: &out})
	require.NoError(t, err)
	assert.Equal(t, 4, script.calls)
}

func TestWaitPredicateCountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 25).Draw(t, "n")

		script := &tickScript{}
		for range n {
			script.add(false, "working")
		}
		script.add(true, "")

		err := Wait(context.Background(), script.tick, time.Microsecond, nil)
		require.NoError(t, err)
		assert.Equal(t, n+1, script.calls, "predicate runs n+1 times for n not-done ticks")
	})
}

func TestWaitPlainSinkDedup(t *testing.T) {
	script := &tickScript{}
	script.add(false, "imaging: 1")
	script.add(false, "imaging: 1")
	script.add(true, "")

	var out bytes.Buffer
	err := Wait(context.Background(), script.tick, time.Millisecond, &plainSink{w: &out})
	require.NoError(t, err)

	assert.Equal(t, "imaging: 1\n", out.String(), "identical consecutive messages print once")
}

func TestWaitPlainSinkMessageChanges(t *testing.T) {
	script := &tickScript{}
	script.add(false, "queued")
	script.add(false, "queued")
	script.add(false, "analyzing")
	script.add(false, "queued")
	script.add(true, "")

	var out bytes.Buffer
	err := Wait(context.Background(), script.tick, time.Millisecond, &plainSink{w: &out})
	require.NoError(t, err)

	assert.Equal(t, "queued\nanalyzing\nqueued\n", out.String())
}

func TestWaitPredicateErrorPropagates(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), func(context.Context) (bool, string, error) {
		calls++
		return false, "", assert.AnError
	}, time.Millisecond, nil)

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls, "no retry on predicate errors")
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := Wait(ctx, func(context.Context) (bool, string, error) {
		cancel()
		return false, "never done", nil
	}, time.Hour, nil)

	require.ErrorIs(t, err, context.Canceled)
}

func TestSpinnerSinkOverwritesLine(t *testing.T) {
	var out bytes.Buffer
	sink := &spinnerSink{w: &out}

	sink.Message("imaging: 1")
	sink.Message("imaging: 2")
	sink.Done()

	got := out.String()
	assert.Equal(t, 2, strings.Count(got, "\r"), "each message redraws the line")
	assert.Contains(t, got, "- imaging: 1")
	assert.Contains(t, got, `\ imaging: 2`)
	assert.True(t, strings.HasSuffix(got, "\n"), "spinner finishes its line")
}

func TestSpinnerSinkNoTrailingNewlineWithoutMessages(t *testing.T) {
	var out bytes.Buffer
	sink := &spinnerSink{w: &out}
	sink.Done()
	assert.Empty(t, out.String())
}
