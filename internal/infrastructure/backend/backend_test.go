package backend

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// sleepRecorder replaces the backoff sleep so tests can observe the
// schedule without waiting ~194s.
type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

type staticAuth string

func (a staticAuth) Authorization(context.Context) (string, error) {
	return string(a), nil
}

// timeoutError mimics a read timeout from the transport.
type timeoutError struct{}

func (timeoutError) Error() string   { return "read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// flakyTransport fails with a timeout for the first `failures` attempts,
// then delegates to the real transport.
type flakyTransport struct {
	failures int32
	inner    http.RoundTripper
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if atomic.AddInt32(&t.failures, -1) >= 0 {
		return nil, timeoutError{}
	}
	return t.inner.RoundTrip(req)
}

func newTestBackend(endpoint string) (*Backend, *sleepRecorder) {
	rec := &sleepRecorder{}
	b := New(endpoint, staticAuth("Bearer test-token"), nil)
	b.sleep = rec.sleep
	return b, rec
}

func TestRequestSuccess(t *testing.T) {
	var calls int32
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"image_id":"abc","state":"Report available"}`))
	}))
	defer srv.Close()

	b, rec := newTestBackend(srv.URL)

	raw, err := b.Request(context.Background(), http.MethodPost, "get_image", map[string]string{"image_id": "abc"}, nil)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "abc", decoded["image_id"])
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Empty(t, rec.delays, "a first-attempt success must not sleep")
}

func TestRequestEmptyBodyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b, _ := newTestBackend(srv.URL)

	raw, err := b.Request(context.Background(), http.MethodGet, "versions", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestRequestNonJSONBodyIsHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	b, rec := newTestBackend(srv.URL)

	_, err := b.Request(context.Background(), http.MethodGet, "versions", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
	assert.Empty(t, rec.delays)
}

func TestRequestBodyReadFailureIsHardFailure(t *testing.T) {
	// Promise more body than is delivered; the server closes the
	// connection mid-body and the client's read fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte(`{"truncated`))
	}))
	defer srv.Close()

	b, rec := newTestBackend(srv.URL)

	_, err := b.Request(context.Background(), http.MethodGet, "versions", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read response body")
	assert.Empty(t, rec.delays, "a response was received, so no retry")
}

func TestRequestServiceErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"no such image"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	b, rec := newTestBackend(srv.URL)

	_, err := b.Request(context.Background(), http.MethodPost, "get_image", nil, nil)
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)
	assert.Equal(t, "get_image", svcErr.Path)
	assert.Contains(t, string(svcErr.Body), "no such image")

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "non-2xx responses must not be retried")
	assert.Empty(t, rec.delays)
}

func TestRequestExhaustsRetriesOnConnectionError(t *testing.T) {
	// A closed listener gives a deterministic connection-refused error.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	b, rec := newTestBackend("http://" + addr)

	_, err = b.Request(context.Background(), http.MethodGet, "regions", nil, nil)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 9, exhausted.Attempts)
	assert.Equal(t, "regions", exhausted.Path)

	require.Len(t, rec.delays, 9)
	for i := 1; i < len(rec.delays); i++ {
		assert.Greater(t, rec.delays[i], rec.delays[i-1], "backoff delays must strictly increase")
	}
	assert.Equal(t, 1500*time.Millisecond, rec.delays[0])
}

func TestRequestRecoversAfterTimeouts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	b, rec := newTestBackend(srv.URL)
	b.httpClient.Transport = &flakyTransport{failures: 3, inner: http.DefaultTransport}

	raw, err := b.Request(context.Background(), http.MethodGet, "versions", nil, nil)
	require.NoError(t, err)

	var decoded map[string]bool
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded["ok"])

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "server reached once, on the 4th attempt")
	require.Equal(t, []time.Duration{
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}, rec.delays)
}

func TestRequestCancelledDuringBackoff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	b := New("http://"+addr, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Request(ctx, http.MethodGet, "regions", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRequestIntoDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["my_images","my_images_and_samples"]`))
	}))
	defer srv.Close()

	b, _ := newTestBackend(srv.URL)

	var filters []string
	require.NoError(t, b.RequestInto(context.Background(), http.MethodGet, "search_filters", nil, nil, &filters))
	assert.Equal(t, []string{"my_images", "my_images_and_samples"}, filters)
}

func TestBackoffScheduleProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attempt := rapid.IntRange(2, maxAttempts).Draw(t, "attempt")

		// Each delay grows by exactly the backoff base.
		prev := backoffDelay(attempt - 1)
		cur := backoffDelay(attempt)
		assert.Greater(t, cur, prev)
		assert.InDelta(t, backoffBase, float64(cur)/float64(prev), 1e-9)
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(timeoutError{}))
	assert.True(t, isTransient(&net.OpError{Op: "dial", Err: assert.AnError}))
	assert.False(t, isTransient(assert.AnError))
}
