package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fba70/avica-ugc-sub000/internal/model"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		ImageModel:   "test/image-model",
		VideoModel:   "test/video-model",
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestNormalizeOutputString(t *testing.T) {
	asset, err := NormalizeOutput(json.RawMessage(`"https://cdn.example.com/out.png"`))
	if err != nil {
		t.Fatalf("NormalizeOutput: %v", err)
	}
	if asset.URL != "https://cdn.example.com/out.png" {
		t.Errorf("URL = %q", asset.URL)
	}
}

func TestNormalizeOutputArray(t *testing.T) {
	asset, err := NormalizeOutput(json.RawMessage(`["https://cdn.example.com/a.png","https://cdn.example.com/b.png"]`))
	if err != nil {
		t.Fatalf("NormalizeOutput: %v", err)
	}
	if asset.URL != "https://cdn.example.com/a.png" {
		t.Errorf("URL = %q, want first element", asset.URL)
	}
}

func TestNormalizeOutputObjectWithString(t *testing.T) {
	asset, err := NormalizeOutput(json.RawMessage(`{"output":"https://cdn.example.com/out.mp4"}`))
	if err != nil {
		t.Fatalf("NormalizeOutput: %v", err)
	}
	if asset.URL != "https://cdn.example.com/out.mp4" {
		t.Errorf("URL = %q", asset.URL)
	}
}

func TestNormalizeOutputObjectWithArray(t *testing.T) {
	asset, err := NormalizeOutput(json.RawMessage(`{"output":["https://cdn.example.com/out.png"]}`))
	if err != nil {
		t.Fatalf("NormalizeOutput: %v", err)
	}
	if asset.URL != "https://cdn.example.com/out.png" {
		t.Errorf("URL = %q", asset.URL)
	}
}

func TestNormalizeOutputUnknownShapes(t *testing.T) {
	cases := []string{
		`42`,
		`{"result":"https://cdn.example.com/out.png"}`,
		`[]`,
		`""`,
		`{"output":null}`,
		`null`,
	}
	for _, raw := range cases {
		_, err := NormalizeOutput(json.RawMessage(raw))
		var unrec *UnrecognizedOutputError
		if !errors.As(err, &unrec) {
			t.Errorf("NormalizeOutput(%s) err = %v, want UnrecognizedOutputError", raw, err)
		}
	}
}

func TestGenerateImmediateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/predictions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req predictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test/image-model" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(prediction{
			ID:     "pred-1",
			Status: "succeeded",
			Output: json.RawMessage(`"https://cdn.example.com/out.png"`),
		})
	}))
	defer srv.Close()

	asset, err := testClient(t, srv.URL).Generate(context.Background(), Request{
		Kind:        model.KindImage,
		SourceImage: "https://example.com/selfie.jpg",
		Prompt:      "festival portrait",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if asset.URL != "https://cdn.example.com/out.png" {
		t.Errorf("URL = %q", asset.URL)
	}
}

func TestGeneratePollsUntilTerminal(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(prediction{ID: "pred-2", Status: "starting"})
		case r.URL.Path == "/v1/predictions/pred-2":
			polls++
			if polls < 3 {
				json.NewEncoder(w).Encode(prediction{ID: "pred-2", Status: "processing"})
				return
			}
			json.NewEncoder(w).Encode(prediction{
				ID:     "pred-2",
				Status: "succeeded",
				Output: json.RawMessage(`["https://cdn.example.com/out.mp4"]`),
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	asset, err := testClient(t, srv.URL).Generate(context.Background(), Request{Kind: model.KindVideo})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if asset.URL != "https://cdn.example.com/out.mp4" {
		t.Errorf("URL = %q", asset.URL)
	}
	if polls < 3 {
		t.Errorf("polls = %d, want at least 3", polls)
	}
}

func TestGenerateFailedPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(prediction{ID: "pred-3", Status: "failed", Error: "NSFW content detected"})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Generate(context.Background(), Request{Kind: model.KindImage})
	if err == nil {
		t.Fatal("Generate succeeded, want error")
	}
}

func TestGenerateBinaryStream(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	asset, err := testClient(t, srv.URL).Generate(context.Background(), Request{Kind: model.KindImage})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if asset.MIME != "image/png" {
		t.Errorf("MIME = %q", asset.MIME)
	}
	if asset.Base64 != base64.StdEncoding.EncodeToString(payload) {
		t.Errorf("Base64 = %q", asset.Base64)
	}
}

func TestGenerateUnknownOutputShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(prediction{
			ID:     "pred-4",
			Status: "succeeded",
			Output: json.RawMessage(`{"frames":["a.png"]}`),
		})
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Generate(context.Background(), Request{Kind: model.KindImage})
	var unrec *UnrecognizedOutputError
	if !errors.As(err, &unrec) {
		t.Fatalf("err = %v, want UnrecognizedOutputError", err)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media-bytes"))
	}))
	defer srv.Close()

	data, err := testClient(t, srv.URL).Fetch(context.Background(), srv.URL+"/out.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "media-bytes" {
		t.Errorf("data = %q", data)
	}
}
