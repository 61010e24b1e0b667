package anyworld

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:              "test-key",
		APIURL:              srv.URL,
		PollingURL:          srv.URL + "/user-processed-model",
		GeneratedPollingURL: srv.URL + "/user-generated-model",
		HTTPClient:          srv.Client(),
		Logger:              discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func jsonResponse(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestFind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anything" {
			t.Errorf("path = %s, want /anything", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" {
			t.Errorf("key = %q, want test-key", q.Get("key"))
		}
		if q.Get("search") != "dog" {
			t.Errorf("search = %q, want dog", q.Get("search"))
		}
		if q.Get("fuzzy") != "true" {
			t.Errorf("fuzzy = %q, want true", q.Get("fuzzy"))
		}
		jsonResponse(w, http.StatusOK, `[
			{"_id": "dog-001", "name": "dog", "type": "quadruped", "themeCategories": ["pets"]},
			{"_id": "wolf-002", "name": "wolf", "type": "quadruped"}
		]`)
	}))
	defer srv.Close()

	results, err := newTestClient(t, srv).Find(context.Background(), "dog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != "dog-001" || results[0].Name != "dog" {
		t.Errorf("first result = %+v", results[0])
	}
	if len(results[0].ThemeCategories) != 1 || results[0].ThemeCategories[0] != "pets" {
		t.Errorf("theme categories = %v, want [pets]", results[0].ThemeCategories)
	}
}

func TestFindByName_SingleObjectNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "cat" {
			t.Errorf("name = %q, want cat", got)
		}
		// An exact-name hit comes back as a bare object, not an array.
		jsonResponse(w, http.StatusOK, `{"_id": "cat-001", "name": "cat"}`)
	}))
	defer srv.Close()

	results, err := newTestClient(t, srv).FindByName(context.Background(), "cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "cat-001" {
		t.Fatalf("results = %+v, want single cat-001", results)
	}
}

func TestFind_EmptyQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv).Find(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestFind_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusNotFound, `{"code": "Not Found", "message": "no model matched"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Find(context.Background(), "unobtainium")

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if terr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", terr.StatusCode)
	}
	if terr.Code != "Not Found" || terr.Message != "no model matched" {
		t.Errorf("code/message = %q/%q", terr.Code, terr.Message)
	}
}

func TestDo_RejectsNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>gateway error</html>")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Find(context.Background(), "dog")

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
}

func TestDo_RetryAfterHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		jsonResponse(w, http.StatusTooManyRequests, `{"code": "Too Many Requests", "message": "slow down"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).GetModel(context.Background(), "m1")

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if terr.RetryAfter != 7*time.Second {
		t.Errorf("retry-after = %v, want 7s", terr.RetryAfter)
	}
}

func TestGetModel_ProcessingAnswers403(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user-processed-model" {
			t.Errorf("path = %s, want /user-processed-model", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("id") != "m1" || q.Get("stage") != "done" || q.Get("key") != "test-key" {
			t.Errorf("query = %v", q)
		}
		// The polling endpoint answers 403 with a JSON payload while the
		// model is still processing.
		jsonResponse(w, http.StatusForbidden, `[{"_id": "m1", "name": "cube", "stage": "rigging"}]`)
	}))
	defer srv.Close()

	model, err := newTestClient(t, srv).GetModel(context.Background(), "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.ID != "m1" || model.Stage != "rigging" {
		t.Errorf("model = %+v", model)
	}
	if model.Status(AnimateDone(false)) != StatusProcessing {
		t.Errorf("status = %s, want processing", model.Status(AnimateDone(false)))
	}
	if len(model.Raw) == 0 {
		t.Error("expected raw payload to be kept")
	}
}

func TestAnimate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cube.obj"), []byte("v 0 0 0\nv 1 0 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/animate" {
			t.Errorf("path = %s, want /animate", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		for field, want := range map[string]string{
			"key":           "test-key",
			"model_name":    "cube",
			"symmetry":      "true",
			"auto_rotate":   "true",
			"auto_classify": "true", // no model_type given
			"platform":      "go",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("field %s = %q, want %q", field, got, want)
			}
		}
		headers := r.MultipartForm.File["files"]
		if len(headers) != 1 {
			t.Fatalf("file parts = %d, want 1", len(headers))
		}
		if headers[0].Filename != "cube.obj" {
			t.Errorf("filename = %q, want cube.obj", headers[0].Filename)
		}
		jsonResponse(w, http.StatusOK, `[{"model_id": "abc123", "name": "cube"}]`)
	}))
	defer srv.Close()

	receipt, err := newTestClient(t, srv).Animate(context.Background(), AnimateRequest{
		FilesDir:   dir,
		ModelName:  "cube",
		Symmetric:  true,
		AutoRotate: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ModelID != "abc123" {
		t.Errorf("model ID = %q, want abc123", receipt.ModelID)
	}
}

func TestAnimate_NoFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Animate(context.Background(), AnimateRequest{
		FilesDir:  t.TempDir(),
		ModelName: "cube",
	})
	if err == nil {
		t.Fatal("expected error for empty upload dir")
	}
}

func TestGenerateFromText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-3d" {
			t.Errorf("path = %s, want /text-to-3d", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		for field, want := range map[string]string{
			"key":           "test-key",
			"text_prompt":   "a small wooden boat",
			"refine_prompt": "true",
			"can_be_public": "false",
			"platform":      "go",
		} {
			if got := r.PostFormValue(field); got != want {
				t.Errorf("field %s = %q, want %q", field, got, want)
			}
		}
		jsonResponse(w, http.StatusOK, `{"model_id": "gen-001", "message": "queued"}`)
	}))
	defer srv.Close()

	receipt, err := newTestClient(t, srv).GenerateFromText(context.Background(), TextRequest{
		Prompt:       "a small wooden boat",
		RefinePrompt: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ModelID != "gen-001" {
		t.Errorf("model ID = %q, want gen-001", receipt.ModelID)
	}
}

func TestGenerateFromImage(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "boat.png")
	// Minimal PNG signature so content sniffing sees an image.
	if err := os.WriteFile(img, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/image-to-3d" {
			t.Errorf("path = %s, want /image-to-3d", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("model_name"); got != "boat" {
			t.Errorf("model_name = %q, want boat", got)
		}
		headers := r.MultipartForm.File["files"]
		if len(headers) != 1 || headers[0].Filename != "boat.png" {
			t.Fatalf("file parts = %+v, want single boat.png", headers)
		}
		if ct := headers[0].Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part content type = %q, want image/png", ct)
		}
		jsonResponse(w, http.StatusOK, `{"model_id": "gen-002"}`)
	}))
	defer srv.Close()

	receipt, err := newTestClient(t, srv).GenerateFromImage(context.Background(), ImageRequest{
		FilePath:  img,
		ModelName: "boat",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ModelID != "gen-002" {
		t.Errorf("model ID = %q, want gen-002", receipt.ModelID)
	}
}

func TestStagingParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("staging"); got != "true" {
			t.Errorf("staging = %q, want true", got)
		}
		jsonResponse(w, http.StatusOK, `[]`)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:     "test-key",
		APIURL:     srv.URL,
		Staging:    true,
		HTTPClient: srv.Client(),
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Find(context.Background(), "dog"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetAnimatedModel_PollsUntilFinished(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			jsonResponse(w, http.StatusForbidden, `[{"_id": "m1", "stage": "rigging"}]`)
			return
		}
		jsonResponse(w, http.StatusOK, `[{"_id": "m1", "stage": "thumbnails_generation_finished",
			"model": {"mesh": {"glb": "https://cdn.example.com/m1.glb"}}}]`)
	}))
	defer srv.Close()

	model, err := newTestClient(t, srv).GetAnimatedModel(context.Background(), "m1", false, PollConfig{
		Warmup:   time.Millisecond,
		Interval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
	if got := model.Model.MeshURL("glb"); got != "https://cdn.example.com/m1.glb" {
		t.Errorf("glb URL = %q", got)
	}
}

func TestIsAnimationDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, `[{"_id": "m1", "stage": "formats_conversion_finished"}]`)
	}))
	defer srv.Close()

	done, err := newTestClient(t, srv).IsAnimationDone(context.Background(), "m1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Error("expected animation to be reported done")
	}
}

func TestDownloadFile(t *testing.T) {
	payload := []byte("glTF binary payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "model.glb")
	if err := newTestClient(t, srv).DownloadFile(context.Background(), srv.URL+"/model.glb", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("downloaded %q, want %q", got, payload)
	}
}

func TestDownloadFile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).DownloadFile(context.Background(), srv.URL+"/missing.glb", filepath.Join(t.TempDir(), "out.glb"))

	var terr *TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want *TransportError with 404", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AW_API_KEY", "env-key")
	t.Setenv("AW_API_URL", "https://staging.example.com")
	t.Setenv("AW_MODE", "staging")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", cfg.APIKey)
	}
	if cfg.APIURL != "https://staging.example.com" {
		t.Errorf("api url = %q", cfg.APIURL)
	}
	if !cfg.Staging {
		t.Error("expected staging mode")
	}
}

func TestConfigFromEnv_MissingKey(t *testing.T) {
	t.Setenv("AW_API_KEY", "")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing AW_API_KEY")
	}
}
