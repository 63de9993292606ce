package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"snapsend/internal/camera"
	"snapsend/internal/config"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCatalog = camera.ResolutionList{{Width: 320, Height: 240}, {Width: 640, Height: 480}, {Width: 800, Height: 600}}

// newTestServer はテストパターンドライバーを使うサーバーを作成する
func newTestServer(t *testing.T, uploadURL string) (*Server, *camera.TestPatternDriver) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Camera.Driver = config.DriverTestPattern
	cfg.Camera.DefaultWidth = 640
	cfg.Camera.DefaultHeight = 480
	cfg.Upload.URL = uploadURL

	driver := camera.NewTestPatternDriver(testCatalog, camera.Resolution{Width: 640, Height: 480})
	if err := driver.Start(context.Background()); err != nil {
		t.Fatalf("driver start failed: %v", err)
	}

	srv, err := New(cfg, driver)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv, driver
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestFrontPage(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	// 起動時の解像度が640x480なので800x600は選択不可
	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected text/html, got %s", ct)
	}
	want := "<option>320x240</option><option selected>640x480</option><option disabled>800x600</option>"
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("resolution options not found in page")
	}

	// 変更後は選択状態がページに反映される
	postForm(t, h, "/change-resolution.cgi", url.Values{"width": {"320"}, "height": {"240"}})
	rec = get(t, h, "/")
	want = "<option selected>320x240</option><option>640x480</option><option disabled>800x600</option>"
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("page does not reflect the new resolution")
	}
}

func TestRobotsTxt(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		rec := get(t, h, "/robots.txt")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "User-Agent: *\nDisallow: /\n" {
			t.Errorf("unexpected robots.txt: %q", rec.Body.String())
		}
		postForm(t, h, "/change-resolution.cgi", url.Values{"width": {"320"}, "height": {"240"}})
	}
}

func TestChangeResolution_AllCatalogEntries(t *testing.T) {
	srv, driver := newTestServer(t, "")
	h := srv.Handler()

	for _, r := range testCatalog {
		rec := postForm(t, h, "/change-resolution.cgi", url.Values{
			"width":  {strconv.Itoa(r.Width)},
			"height": {strconv.Itoa(r.Height)},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", r, rec.Code)
		}
		if rec.Body.String() != r.String() {
			t.Errorf("%s: unexpected body %q", r, rec.Body.String())
		}
		if srv.State().Current() != r {
			t.Errorf("%s: current resolution is %s", r, srv.State().Current())
		}
		if driver.CurrentResolution() != r {
			t.Errorf("%s: driver resolution is %s", r, driver.CurrentResolution())
		}
	}
}

func TestChangeResolution_NotFound(t *testing.T) {
	srv, driver := newTestServer(t, "")
	h := srv.Handler()

	testCases := []struct {
		name string
		form url.Values
	}{
		{"カタログにない解像度", url.Values{"width": {"1024"}, "height": {"768"}}},
		{"次に大きい解像度はあるが完全一致しない", url.Values{"width": {"600"}, "height": {"400"}}},
		{"幅だけ一致", url.Values{"width": {"640"}, "height": {"481"}}},
		{"数値ではない", url.Values{"width": {"abc"}, "height": {"480"}}},
		{"パラメータなし", url.Values{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postForm(t, h, "/change-resolution.cgi", tc.form)
			if rec.Code != http.StatusNotFound {
				t.Errorf("Expected 404, got %d", rec.Code)
			}
			if rec.Body.String() != "non-existent resolution\n" {
				t.Errorf("unexpected body %q", rec.Body.String())
			}
			if srv.State().Current() != (camera.Resolution{Width: 640, Height: 480}) {
				t.Errorf("current resolution changed to %s", srv.State().Current())
			}
		})
	}

	if driver.Changes() != 0 {
		t.Errorf("driver should not be reconfigured, got %d changes", driver.Changes())
	}
}

func TestChangeResolution_DriverFailure(t *testing.T) {
	srv, driver := newTestServer(t, "")
	h := srv.Handler()
	driver.SetShouldFailChange(true)

	rec := postForm(t, h, "/change-resolution.cgi", url.Values{"width": {"320"}, "height": {"240"}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != "changeResolution error\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if srv.State().Current() != (camera.Resolution{Width: 640, Height: 480}) {
		t.Errorf("current resolution should not change on failure, got %s", srv.State().Current())
	}
}

func TestChangeResolution_QueryParams(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/change-resolution.cgi?width=320&height=240", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestCamJPG(t *testing.T) {
	srv, driver := newTestServer(t, "")
	h := srv.Handler()

	for i := 0; i < 3; i++ {
		rec := get(t, h, "/cam.jpg")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("Expected image/jpeg, got %s", ct)
		}
	}

	// 静止画の取得では解像度は変わらない
	if srv.State().Current() != (camera.Resolution{Width: 640, Height: 480}) {
		t.Errorf("current resolution changed to %s", srv.State().Current())
	}
	if driver.Changes() != 0 {
		t.Errorf("driver should not be reconfigured, got %d changes", driver.Changes())
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := get(t, srv.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" || body["resolution"] != "640x480" {
		t.Errorf("unexpected health response: %v", body)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("Expected X-Request-Id header")
	}
}

func TestSendCapture(t *testing.T) {
	var received int
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "no image", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		received = len(data)
		_, _ = w.Write([]byte("ok"))
	}))
	defer remote.Close()

	srv, _ := newTestServer(t, remote.URL)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-capture.cgi", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "ok" {
		t.Errorf("Expected remote body, got %q", rec.Body.String())
	}
	if received == 0 {
		t.Error("remote server did not receive the image")
	}
	if rec.Header().Get("X-Capture-Id") == "" {
		t.Error("Expected X-Capture-Id header")
	}
}

func TestSendCapture_Errors(t *testing.T) {
	// 送信先未設定
	srv, _ := newTestServer(t, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-capture.cgi", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	// 送信先がエラーを返す
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer remote.Close()

	srv, driver := newTestServer(t, remote.URL)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-capture.cgi", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}

	// キャプチャ失敗
	driver.SetShouldFailCapture(true)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-capture.cgi", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
}

func TestSelectInitial(t *testing.T) {
	testCases := []struct {
		name          string
		width, height int
		want          camera.Resolution
	}{
		{"完全一致", 640, 480, camera.Resolution{Width: 640, Height: 480}},
		{"次に大きい解像度", 500, 400, camera.Resolution{Width: 640, Height: 480}},
		{"大きすぎる場合は最大", 1600, 1200, camera.Resolution{Width: 800, Height: 600}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := selectInitial(testCatalog, tc.width, tc.height); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNew_EmptyCatalog(t *testing.T) {
	driver := camera.NewTestPatternDriver(nil, camera.Resolution{})
	empty := &emptyCatalogDriver{Driver: driver}
	if _, err := New(config.Default(), empty); err == nil {
		t.Error("Expected error for empty catalog")
	}
}

type emptyCatalogDriver struct {
	camera.Driver
}

func (d *emptyCatalogDriver) Resolutions() camera.ResolutionList { return nil }
