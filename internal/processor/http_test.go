package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/mailbox"
)

func batchOf(texts ...string) []mailbox.Message {
	var out []mailbox.Message
	for i, text := range texts {
		out = append(out, mailbox.Message{
			UserID:    "u1",
			UserName:  "alice",
			Text:      text,
			ChannelID: "C1",
			ThreadID:  mailbox.MainThread,
			EventTS:   fmt.Sprintf("100.%06d", i),
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
		})
	}
	return out
}

func TestHTTPProcessPostsBatch(t *testing.T) {
	var got batchPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"result":"two jobs drafted"}`))
	}))
	defer srv.Close()

	p, err := NewHTTP(HTTPOpts{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new http processor: %v", err)
	}

	result, err := p.Process(context.Background(), batchOf("need a dev", "remote ok"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result != "two jobs drafted" {
		t.Errorf("result = %q", result)
	}
	if got.BatchSize != 2 || len(got.Messages) != 2 {
		t.Errorf("payload batch size = %d, messages = %d", got.BatchSize, len(got.Messages))
	}
	if got.Messages[0].Text != "need a dev" {
		t.Errorf("payload order wrong: %+v", got.Messages)
	}
}

func TestHTTPProcessRetriesTransportErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Drop the first connection mid-request.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("server does not support hijacking")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewHTTP(HTTPOpts{Endpoint: srv.URL, Retries: 1})
	if err != nil {
		t.Fatalf("new http processor: %v", err)
	}

	if _, err := p.Process(context.Background(), batchOf("hello")); err != nil {
		t.Fatalf("process after retry: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestHTTPProcessDoesNotRetryServerRejection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p, err := NewHTTP(HTTPOpts{Endpoint: srv.URL, Retries: 3})
	if err != nil {
		t.Fatalf("new http processor: %v", err)
	}

	if _, err := p.Process(context.Background(), batchOf("hello")); err == nil {
		t.Fatal("expected error on 422 response")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1 (no retry on rejection)", n)
	}
}

func TestHTTPHealthCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // reachable is enough
	}))
	defer healthy.Close()

	p, _ := NewHTTP(HTTPOpts{Endpoint: healthy.URL})
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check on reachable endpoint: %v", err)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	p2, _ := NewHTTP(HTTPOpts{Endpoint: broken.URL})
	if err := p2.HealthCheck(context.Background()); err == nil {
		t.Error("health check passed on 500 endpoint")
	}
}

func TestMockProcessor(t *testing.T) {
	var m Mock
	got, err := m.Process(context.Background(), batchOf("a", "b", "c"))
	if err != nil {
		t.Fatalf("mock process: %v", err)
	}
	if got != "Processed 3 messages" {
		t.Errorf("result = %q", got)
	}

	one, _ := m.Process(context.Background(), batchOf("a"))
	if one != "Processed 1 message" {
		t.Errorf("singular result = %q", one)
	}

	if _, err := m.Process(context.Background(), nil); err == nil {
		t.Error("mock accepted an empty batch")
	}
}
