package insightface

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"face-attendance-go/config"
	"face-attendance-go/internal/integrations/facerecognition"
)

func newTestServer(t *testing.T, faces []apiFace) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiInfoResponse{Status: "ok", Version: "test"})
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		out := make([]apiFace, len(faces))
		copy(out, faces)
		if r.FormValue("extract_embedding") != "true" {
			for i := range out {
				out[i].Embedding = nil
			}
		}
		json.NewEncoder(w).Encode(apiDetectResponse{Status: "ok", FacesCount: len(out), Faces: out})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(url string) *Service {
	return NewService(config.InsightFaceConfig{URL: url + "/", Timeout: 5})
}

func TestServiceIsAvailable(t *testing.T) {
	srv := newTestServer(t, nil)
	if !newTestService(srv.URL).IsAvailable(context.Background()) {
		t.Error("IsAvailable() = false, want true")
	}

	down := newTestService("http://127.0.0.1:1")
	if down.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true for unreachable service")
	}
}

func TestServiceDetect(t *testing.T) {
	srv := newTestServer(t, []apiFace{
		{BoundingBox: []int{10, 20, 50, 60}, Confidence: 0.99},
		{BoundingBox: []int{1, 2, 3}, Confidence: 0.5},
		{BoundingBox: []int{70, 70, 90, 100}, Confidence: 0.9},
	})

	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	boxes, err := newTestService(srv.URL).Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	want := []image.Rectangle{image.Rect(10, 20, 50, 60), image.Rect(70, 70, 90, 100)}
	if len(boxes) != len(want) {
		t.Fatalf("Detect() = %v, want %v", boxes, want)
	}
	for i := range want {
		if boxes[i] != want[i] {
			t.Errorf("box[%d] = %v, want %v", i, boxes[i], want[i])
		}
	}
}

func TestServiceEncodeUsesLargestFace(t *testing.T) {
	srv := newTestServer(t, []apiFace{
		{BoundingBox: []int{0, 0, 5, 5}, Embedding: []float32{1, 1}},
		{BoundingBox: []int{0, 0, 30, 30}, Embedding: []float32{0.5, 0.25}},
	})

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	embedding, err := newTestService(srv.URL).Encode(context.Background(), img, image.Rect(20, 20, 60, 60))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(embedding) != 2 || embedding[0] != 0.5 || embedding[1] != 0.25 {
		t.Errorf("Encode() = %v, want [0.5 0.25]", embedding)
	}
}

func TestServiceEncodeNoFace(t *testing.T) {
	srv := newTestServer(t, nil)

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	_, err := newTestService(srv.URL).Encode(context.Background(), img, image.Rect(20, 20, 60, 60))
	if !errors.Is(err, facerecognition.ErrNoFace) {
		t.Errorf("Encode() error = %v, want ErrNoFace", err)
	}
}

func TestServiceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if _, err := newTestService(srv.URL).Detect(context.Background(), img); err == nil {
		t.Error("Detect() should fail on a 500 response")
	}
}
