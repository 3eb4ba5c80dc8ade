package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// endpointFor builds an Endpoint pointing at a test server URL.
func endpointFor(t *testing.T, serverURL string) Endpoint {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	ep, err := NewEndpoint(u.Hostname(), port, "")
	if err != nil {
		t.Fatalf("build endpoint: %v", err)
	}
	return ep
}

func TestExecuteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/tap" {
			t.Errorf("path = %s, want /session/tap", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["x"] != float64(10) {
			t.Errorf("x = %v, want 10", body["x"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	tr := NewTransport(endpointFor(t, server.URL), DefaultRetryPolicy())
	resp, err := tr.Execute(context.Background(), Request{
		Method: "POST",
		Path:   "/session/tap",
		Body:   map[string]interface{}{"x": 10, "y": 20},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestExecuteAppErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": map[string]interface{}{
				"error":   "no such element",
				"message": "element not found on screen",
			},
		})
	}))
	defer server.Close()

	tr := NewTransport(endpointFor(t, server.URL), RetryPolicy{MaxRetries: 5, RetryInterval: 10 * time.Millisecond})
	_, err := tr.Execute(context.Background(), Request{Method: "POST", Path: "/element"})
	if err == nil {
		t.Fatal("expected error")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %T, want *AppError", err)
	}
	if appErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", appErr.StatusCode)
	}
	if appErr.Kind != "no such element" {
		t.Errorf("Kind = %q", appErr.Kind)
	}
	if appErr.Message != "element not found on screen" {
		t.Errorf("Message = %q", appErr.Message)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server calls = %d, want 1 (application errors must not be retried)", got)
	}
}

func TestExecuteAppErrorRawBodyPreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("plain text failure"))
	}))
	defer server.Close()

	tr := NewTransport(endpointFor(t, server.URL), DefaultRetryPolicy())
	_, err := tr.Execute(context.Background(), Request{Method: "GET", Path: "/status"})

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %T, want *AppError", err)
	}
	if string(appErr.Body) != "plain text failure" {
		t.Errorf("Body = %q, want raw body preserved", appErr.Body)
	}
}

func TestExecuteRetriesTransientThenSucceeds(t *testing.T) {
	const failures = 2
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			// Drop the connection without a response to simulate a reset.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"value": "ok"})
	}))
	defer server.Close()

	interval := 20 * time.Millisecond
	tr := NewTransport(endpointFor(t, server.URL), RetryPolicy{MaxRetries: 3, RetryInterval: interval})

	start := time.Now()
	resp, err := tr.Execute(context.Background(), Request{Method: "POST", Path: "/gesture"})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil {
		t.Fatal("expected response")
	}
	if got := atomic.LoadInt32(&calls); got != failures+1 {
		t.Errorf("server calls = %d, want %d", got, failures+1)
	}
	if min := time.Duration(failures) * interval; elapsed < min {
		t.Errorf("elapsed = %v, want >= %v (backoff waits between attempts)", elapsed, min)
	}
}

func TestExecuteExhausted(t *testing.T) {
	// Reserve a port, then close the listener so every dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	ep, err := NewEndpoint("127.0.0.1", port, "")
	if err != nil {
		t.Fatalf("build endpoint: %v", err)
	}

	const maxRetries = 2
	tr := NewTransport(ep, RetryPolicy{MaxRetries: maxRetries, RetryInterval: 5 * time.Millisecond})
	_, err = tr.Execute(context.Background(), Request{Method: "GET", Path: "/status"})
	if err == nil {
		t.Fatal("expected error")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %T (%v), want *ExhaustedError", err, err)
	}
	if exhausted.Attempts != maxRetries+1 {
		t.Errorf("Attempts = %d, want %d", exhausted.Attempts, maxRetries+1)
	}

	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Error("ExhaustedError should wrap the last transient failure")
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		t.Error("exhaustion must be distinguishable from an application error")
	}
}

func TestExecuteContextCanceled(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTransport(endpointFor(t, server.URL), DefaultRetryPolicy())
	_, err := tr.Execute(ctx, Request{Method: "GET", Path: "/status"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestWithPolicyKeepsEndpoint(t *testing.T) {
	ep, _ := NewEndpoint("localhost", 8100, "/wd/hub")
	tr := NewTransport(ep, DefaultRetryPolicy())

	probe := tr.WithPolicy(RetryPolicy{MaxRetries: 0, RetryInterval: time.Second})
	if probe.Endpoint() != ep {
		t.Error("WithPolicy must keep the endpoint")
	}
	if probe.Policy().MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", probe.Policy().MaxRetries)
	}
	if tr.Policy().MaxRetries != DefaultMaxRetries {
		t.Error("WithPolicy must not mutate the original transport")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.RetryInterval != time.Second {
		t.Errorf("RetryInterval = %v, want 1s", p.RetryInterval)
	}
	if p.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", p.RequestTimeout)
	}
}
