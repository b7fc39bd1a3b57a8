package freta

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwnerID = "tenant-1234-object-5678"

type fakeAuthority struct {
	loggedIn  bool
	loggedOut bool
}

func (f *fakeAuthority) Authorization(context.Context) (string, error) {
	return "Bearer fake-token", nil
}
func (f *fakeAuthority) OwnerID(context.Context) (string, error) { return testOwnerID, nil }
func (f *fakeAuthority) Login(context.Context) error             { f.loggedIn = true; return nil }
func (f *fakeAuthority) Logout() error                           { f.loggedOut = true; return nil }

func newTestClient(endpoint string) (*Client, *fakeAuthority) {
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	fake := &fakeAuthority{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newClient(cfg, fake, logger), fake
}

// mockService records the JSON bodies it receives, keyed by path.
type mockService struct {
	mu     sync.Mutex
	bodies map[string]map[string]string
	mux    *http.ServeMux
}

func newMockService() *mockService {
	return &mockService{
		bodies: make(map[string]map[string]string),
		mux:    http.NewServeMux(),
	}
}

func (m *mockService) handle(path, response string) {
	m.mux.HandleFunc("/"+path, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			json.Unmarshal(data, &body)
		}
		m.mu.Lock()
		m.bodies[path] = body
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	})
}

func (m *mockService) received(path string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bodies[path]
}

func TestImagesList(t *testing.T) {
	svc := newMockService()
	svc.handle("list_images", `[
		{"image_id":"img-1","machine_id":"web-01","state":"Report available"},
		{"image_id":"img-2","machine_id":"web-02","state":"Upload started"}
	]`)
	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	images, err := client.Images.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "img-1", images[0].ImageID)
	assert.Equal(t, StateReportAvailable, images[0].State)
	assert.Equal(t, map[string]string{"filter": "my_images"}, svc.received("list_images"))
}

func TestImagesStatusDefaultsOwner(t *testing.T) {
	svc := newMockService()
	svc.handle("get_image", `{"image_id":"img-1","state":"Upload started"}`)
	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	image, err := client.Images.Status(context.Background(), "img-1", "")
	require.NoError(t, err)
	assert.Equal(t, StateUploadStarted, image.State)
	assert.Equal(t, testOwnerID, svc.received("get_image")["owner_id"])
}

func TestImagesUploadFlow(t *testing.T) {
	svc := newMockService()
	svc.handle("get_upload_token", `{
		"image": {"sas_url": "https://example.blob.core.windows.net/c/image?sig=x"},
		"profile": {"sas_url": "https://example.blob.core.windows.net/c/profile?sig=y"},
		"image_id": "img-new",
		"result": true
	}`)
	svc.handle("analyze", `true`)
	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	var uploads []string
	client.blobUpload = func(_ context.Context, sasURL, path string) error {
		uploads = append(uploads, path+" -> "+sasURL)
		return nil
	}

	result, err := client.Images.Upload(context.Background(), "web-01", "lime", "eastus",
		"/tmp/mem.lime", "/tmp/kernel.profile")
	require.NoError(t, err)

	assert.Equal(t, "img-new", result.ImageID)
	assert.Equal(t, testOwnerID, result.OwnerID)

	// Profile goes first, then the image; upload of the image data is what
	// triggers server-side processing.
	require.Len(t, uploads, 2)
	assert.Contains(t, uploads[0], "kernel.profile")
	assert.Contains(t, uploads[1], "mem.lime")

	analyzed := svc.received("analyze")
	assert.Equal(t, "img-new", analyzed["image_id"])
	assert.Equal(t, testOwnerID, analyzed["owner_id"])
}

func TestImagesUploadWithoutProfile(t *testing.T) {
	svc := newMockService()
	svc.handle("get_upload_token", `{
		"image": {"sas_url": "https://example.blob.core.windows.net/c/image?sig=x"},
		"image_id": "img-new",
		"result": true
	}`)
	svc.handle("analyze", `true`)
	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	var uploads int
	client.blobUpload = func(context.Context, string, string) error {
		uploads++
		return nil
	}

	_, err := client.Images.Upload(context.Background(), "web-01", "lime", "eastus", "/tmp/mem.lime", "")
	require.NoError(t, err)
	assert.Equal(t, 1, uploads)
}

func TestImagesMonitor(t *testing.T) {
	restoreMonitorInterval(t)
	states := []ImageState{StateUploadStarted, StateQueued, StateAnalyzing, StateReportAvailable}
	var call int

	mux := http.NewServeMux()
	mux.HandleFunc("/get_image", func(w http.ResponseWriter, r *http.Request) {
		state := states[min(call, len(states)-1)]
		call++
		json.NewEncoder(w).Encode(Image{ImageID: "img-1", State: state})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	image, err := client.Images.Monitor(shortWaitCtx(t), "img-1", "owner-1", nil)
	require.NoError(t, err)
	assert.Equal(t, StateReportAvailable, image.State)
	assert.Equal(t, len(states), call)
}

func TestImagesMonitorFailedState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_image", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Image{ImageID: "img-1", State: StateFailed})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	_, err := client.Images.Monitor(shortWaitCtx(t), "img-1", "owner-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestArtifactsGet(t *testing.T) {
	svc := newMockService()
	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	svc.handle("get_artifact", `{"url": "`+srv.URL+`/sas/report.json"}`)
	svc.mux.HandleFunc("/sas/report.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "SAS fetches carry no Authorization header")
		w.Write([]byte(`{"kernel":"5.15.0"}`))
	})

	client, _ := newTestClient(srv.URL)

	data, err := client.Artifacts.Get(context.Background(), "img-1", "report.json", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"kernel":"5.15.0"}`, string(data))

	req := svc.received("get_artifact")
	assert.Equal(t, "report.json", req["filename"])
	assert.Equal(t, testOwnerID, req["owner_id"])
}

func TestArtifactsList(t *testing.T) {
	svc := newMockService()
	svc.handle("list_artifacts", `["report.json","kernel.log"]`)
	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)

	names, err := client.Artifacts.List(context.Background(), "img-1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"report.json", "kernel.log"}, names)
}

func TestServiceMetadata(t *testing.T) {
	svc := newMockService()
	svc.handle("regions", `{"eastus":{"default":true,"name":"East US"}}`)
	svc.handle("versions", `{"analysis":"0.0.1"}`)
	svc.handle("search_filters", `["my_images","my_images_and_samples"]`)
	srv := httptest.NewServer(svc.mux)
	defer srv.Close()

	client, _ := newTestClient(srv.URL)
	ctx := context.Background()

	regions, err := client.Regions(ctx)
	require.NoError(t, err)
	assert.True(t, regions["eastus"].Default)

	versions, err := client.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.0.1", versions["analysis"])

	filters, err := client.SearchFilters(ctx)
	require.NoError(t, err)
	assert.Len(t, filters, 2)
}

func TestLoginLogout(t *testing.T) {
	client, fake := newTestClient("http://unused.invalid")

	require.NoError(t, client.Login(context.Background()))
	assert.True(t, fake.loggedIn)

	require.NoError(t, client.Logout())
	assert.True(t, fake.loggedOut)
}

// shortWaitCtx bounds polling tests so a regression cannot hang the suite.
func shortWaitCtx(t *testing.T) context.Context {
	t.Helper()
	return t.Context()
}

// restoreMonitorInterval shrinks the poll interval for the duration of a
// test.
func restoreMonitorInterval(t *testing.T) {
	t.Helper()
	prev := monitorInterval
	monitorInterval = time.Millisecond
	t.Cleanup(func() { monitorInterval = prev })
}
