package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cometik/assessd/resilience"
)

func TestClient_Do_GET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/health" {
			t.Errorf("expected /health, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/health",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !resp.IsSuccess() {
		t.Error("expected IsSuccess=true")
	}
	if !strings.Contains(string(resp.Body), "ok") {
		t.Errorf("response body should contain ok, got %s", string(resp.Body))
	}
}

func TestClient_Do_POST_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(201)
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/sessions",
		Body:   map[string]string{"locale": "es-AR"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
}

func TestClient_Do_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("expected multipart/form-data, got %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("language"); got != "es" {
			t.Errorf("expected language=es, got %q", got)
		}
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "answer.wav" {
			t.Errorf("expected answer.wav, got %s", hdr.Filename)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("expected audio/wav part, got %s", ct)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "hola"})
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body: &MultipartBody{
			Fields: map[string]string{"language": "es"},
			Files: []FileField{{
				FieldName:   "audio",
				FileName:    "answer.wav",
				ContentType: "audio/wav",
				Data:        []byte("RIFFdata"),
			}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(resp.Body), "hola") {
		t.Errorf("unexpected body: %s", resp.Body)
	}
}

func TestClient_Do_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{404, ErrCodeNotFound, false},
		{422, ErrCodeValidation, false},
		{429, ErrCodeRateLimit, true},
		{500, ErrCodeServer, true},
		{503, ErrCodeServer, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("details"))
		}))

		c, _ := New(Config{BaseURL: srv.URL})
		resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		var cerr *Error
		if !errors.As(err, &cerr) {
			t.Fatalf("status %d: expected *Error, got %T", tt.status, err)
		}
		if cerr.Code != tt.code {
			t.Errorf("status %d: expected code %s, got %s", tt.status, tt.code, cerr.Code)
		}
		if cerr.Retryable != tt.retryable {
			t.Errorf("status %d: expected retryable=%v", tt.status, tt.retryable)
		}
		if string(cerr.Body) != "details" {
			t.Errorf("status %d: body not captured", tt.status)
		}
		if resp == nil || resp.StatusCode != tt.status {
			t.Errorf("status %d: response should still be returned", tt.status)
		}
	}
}

func TestClient_Do_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	retry := resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		RetryIf:        IsRetryable,
	}
	c, err := New(Config{BaseURL: srv.URL, Retry: &retry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/flaky"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_Do_NoRetryOnValidation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Retry: DefaultRetryConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestClient_Do_CircuitBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := resilience.CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 3,
		Timeout:     time.Minute,
	}
	c, err := New(Config{BaseURL: srv.URL, CircuitBreaker: &cb})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	}
	_, err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	if err == nil {
		t.Fatal("expected circuit open error")
	}
	if IsServerError(err) {
		t.Error("expected circuit breaker error, got server error")
	}
}

func TestClient_Do_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = c.Do(ctx, Request{Method: http.MethodGet, Path: "/slow"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTimeout(err) {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestClient_Do_HeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Service"); got != "assessd" {
			t.Errorf("expected default header, got %q", got)
		}
		if got := r.Header.Get("X-Override"); got != "request" {
			t.Errorf("expected request header to win, got %q", got)
		}
		if got := r.URL.Query().Get("model"); got != "small" {
			t.Errorf("expected model=small, got %q", got)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL: srv.URL,
		Headers: map[string]string{"X-Service": "assessd", "X-Override": "client"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c.Do(context.Background(), Request{
		Method:  http.MethodGet,
		Path:    "/models",
		Headers: map[string]string{"X-Override": "request"},
		Query:   map[string]string{"model": "small"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClassifyStatusCode_Success(t *testing.T) {
	for _, code := range []int{200, 201, 202, 204} {
		if err := ClassifyStatusCode(code, nil); err != nil {
			t.Errorf("status %d: expected nil, got %v", code, err)
		}
	}
}

func TestStatusCodeOf(t *testing.T) {
	if got := StatusCodeOf(ClassifyStatusCode(502, nil)); got != 502 {
		t.Errorf("expected 502, got %d", got)
	}
	if got := StatusCodeOf(NewConnectionError(context.DeadlineExceeded)); got != 0 {
		t.Errorf("expected 0 for connection error, got %d", got)
	}
}
