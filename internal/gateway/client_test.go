package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestNormalizeChatID(t *testing.T) {
	cases := map[string]string{
		"5511999999999@s.whatsapp.net": "5511999999999",
		"123456789@lid":                "123456789@lid",
		"5511999999999":                "5511999999999",
		"120363041@g.us":               "120363041",
	}
	for in, want := range cases {
		if got := NormalizeChatID(in); got != want {
			t.Errorf("NormalizeChatID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClient_SendText(t *testing.T) {
	var gotPath, gotApikey string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotApikey = r.Header.Get("apikey")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":{"id":"OUT1"},"status":"PENDING"}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	id, err := c.SendText(context.Background(), srv.URL, "secret-key", "acme-main", "555@s.whatsapp.net", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if id != "OUT1" {
		t.Errorf("message id: got %q", id)
	}
	if gotPath != "/message/sendText/acme-main" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotApikey != "secret-key" {
		t.Errorf("apikey header: got %q", gotApikey)
	}
	if gotBody["number"] != "555" {
		t.Errorf("number: got %q", gotBody["number"])
	}
	if gotBody["text"] != "hello" {
		t.Errorf("text: got %q", gotBody["text"])
	}
}

func TestClient_SendTextGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid apikey"}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.SendText(context.Background(), srv.URL, "bad", "acme-main", "555@s.whatsapp.net", "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status: got %d", apiErr.StatusCode)
	}
}

func TestClient_ConnectionState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instance/connectionState/acme-main" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instance":{"state":"open"}}`))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	state, err := c.ConnectionState(context.Background(), srv.URL, "k", "acme-main")
	if err != nil {
		t.Fatal(err)
	}
	if state != "open" {
		t.Errorf("state: got %q", state)
	}
}
