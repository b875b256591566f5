package loganalytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSharedKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // base64("0123456789abcdef0123456789abcdef")

func TestNew_MissingConfig(t *testing.T) {
	if _, err := New("", testSharedKey); !errors.Is(err, ErrMissingWorkspaceID) {
		t.Errorf("expected ErrMissingWorkspaceID, got %v", err)
	}
	if _, err := New("workspace", ""); !errors.Is(err, ErrMissingSharedKey) {
		t.Errorf("expected ErrMissingSharedKey, got %v", err)
	}
	if _, err := New("workspace", "not base64 at all!!"); err == nil {
		t.Error("expected error for non-base64 shared key")
	}
}

func TestNew_DerivesEndpoint(t *testing.T) {
	c, err := New("my-workspace", testSharedKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := "https://my-workspace.ods.opinsights.azure.com/api/logs?api-version=2016-04-01"
	if c.endpoint != want {
		t.Errorf("endpoint = %q, want %q", c.endpoint, want)
	}
}

func TestSubmitBatch_RequestShape(t *testing.T) {
	type captured struct {
		header http.Header
		body   []byte
	}
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{header: r.Header.Clone(), body: body}
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c, err := New("testws", testSharedKey, WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	records := []heartbeat{{Computer: "web-01", IsHealthy: true, LoadAverage: 0.42}}
	body, err := c.SubmitBatch(context.Background(), records, "Heartbeat")
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if body != "OK" {
		t.Errorf("expected body 'OK', got '%s'", body)
	}

	reqCap := <-got
	date := fixed.Format(http.TimeFormat)
	if h := reqCap.header.Get("x-ms-date"); h != date {
		t.Errorf("x-ms-date = %q, want %q", h, date)
	}
	if h := reqCap.header.Get("Log-Type"); h != "Heartbeat" {
		t.Errorf("Log-Type = %q, want 'Heartbeat'", h)
	}
	if h := reqCap.header.Get("Accept"); h != "application/json" {
		t.Errorf("Accept = %q, want 'application/json'", h)
	}
	if h := reqCap.header.Get("Content-Type"); h != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", h)
	}
	if _, ok := reqCap.header["Time-Generated-Field"]; !ok {
		t.Error("time-generated-field header missing")
	}
	if want := buildSignature("testws", c.key, len(reqCap.body), date); reqCap.header.Get("Authorization") != want {
		t.Errorf("Authorization = %q, want %q", reqCap.header.Get("Authorization"), want)
	}

	// The payload is a JSON array round-tripping the records.
	var decoded []heartbeat
	if err := json.Unmarshal(reqCap.body, &decoded); err != nil {
		t.Fatalf("payload is not a JSON array: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Computer != "web-01" || !decoded[0].IsHealthy || decoded[0].LoadAverage != 0.42 {
		t.Errorf("payload round-trip mismatch: %+v", decoded)
	}
}

func TestSubmitBatch_RoundTrip(t *testing.T) {
	payload := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		payload <- body
	}))
	defer srv.Close()

	c, _ := New("testws", testSharedKey, WithEndpoint(srv.URL))
	sent := []heartbeat{
		{Computer: "a", LoadAverage: 1.5},
		{Computer: "b", IsHealthy: true},
		{Computer: "c", SessionID: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")},
	}
	if _, err := c.SubmitBatch(context.Background(), sent, "Heartbeat"); err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	var got []heartbeat
	if err := json.Unmarshal(<-payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(got) != len(sent) {
		t.Fatalf("expected %d records, got %d", len(sent), len(got))
	}
	for i := range sent {
		if got[i] != sent[i] {
			t.Errorf("record %d mismatch: sent %+v, got %+v", i, sent[i], got[i])
		}
	}
}

func TestSubmitBatch_TimeGeneratedField(t *testing.T) {
	var header atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("time-generated-field"))
	}))
	defer srv.Close()

	c, _ := New("testws", testSharedKey, WithEndpoint(srv.URL), WithTimeGeneratedField("TimeGenerated"))
	if _, err := c.SubmitBatch(context.Background(), []heartbeat{{}}, "Heartbeat"); err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if h := header.Load(); h != "TimeGenerated" {
		t.Errorf("time-generated-field = %q, want 'TimeGenerated'", h)
	}
}

func TestSubmitBatch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"Error":"InternalError"}`))
	}))
	defer srv.Close()

	c, _ := New("testws", testSharedKey, WithEndpoint(srv.URL))
	body, err := c.SubmitBatch(context.Background(), []heartbeat{{}}, "Heartbeat")
	if body != "" {
		t.Errorf("expected empty body on failure, got '%s'", body)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", se.StatusCode)
	}
	if se.Body != `{"Error":"InternalError"}` {
		t.Errorf("Body = %q", se.Body)
	}
}

func TestSubmitBatch_ValidatesBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c, _ := New("testws", testSharedKey, WithEndpoint(srv.URL))
	ctx := context.Background()

	if _, err := c.SubmitBatch(ctx, []heartbeat{{}}, "Heart_beat"); err == nil {
		t.Error("expected error for invalid log type")
	}
	if _, err := c.SubmitBatch(ctx, []withCount{{Name: "a", Count: 5}}, "Heartbeat"); err == nil {
		t.Error("expected error for integer field")
	}
	if _, err := c.SubmitBatch(ctx, nil, "Heartbeat"); !errors.Is(err, ErrNilRecords) {
		t.Errorf("expected ErrNilRecords, got %v", err)
	}

	if n := calls.Load(); n != 0 {
		t.Errorf("expected no network calls, got %d", n)
	}
}

func TestSubmitOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil || len(arr) != 1 {
			t.Errorf("expected single-element JSON array, got %s", body)
		}
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c, _ := New("testws", testSharedKey, WithEndpoint(srv.URL))
	ctx := context.Background()

	if _, err := c.SubmitOne(ctx, nil, "Heartbeat"); !errors.Is(err, ErrNilRecords) {
		t.Errorf("expected ErrNilRecords for nil record, got %v", err)
	}

	body, err := c.SubmitOne(ctx, heartbeat{Computer: "web-01"}, "Heartbeat")
	if err != nil {
		t.Fatalf("SubmitOne: %v", err)
	}
	if body != "OK" {
		t.Errorf("expected body 'OK', got '%s'", body)
	}
}
