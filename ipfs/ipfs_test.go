package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResolveURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"ipfs scheme", "ipfs://bafy123/image.png", "https://ipfs.filebase.io/ipfs/bafy123/image.png"},
		{"foreign gateway", "https://ipfs.io/ipfs/bafy123", "https://ipfs.filebase.io/ipfs/bafy123"},
		{"plain https passes through", "https://example.com/logo.png", "https://example.com/logo.png"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveURL(tc.in); got != tc.want {
				t.Fatalf("ResolveURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestGatewayFallbacks(t *testing.T) {
	urls := GatewayFallbacks("ipfs://bafy123")
	if len(urls) != len(Gateways) {
		t.Fatalf("expected %d fallbacks, got %d", len(Gateways), len(urls))
	}
	for i, gw := range Gateways {
		if urls[i] != gw+"bafy123" {
			t.Fatalf("fallback %d = %q, want %q", i, urls[i], gw+"bafy123")
		}
	}
	plain := GatewayFallbacks("https://example.com/logo.png")
	if len(plain) != 1 || plain[0] != "https://example.com/logo.png" {
		t.Fatalf("non-ipfs url should pass through untouched: %v", plain)
	}
}

func TestUploadImageRequiresKey(t *testing.T) {
	client, err := NewClient("https://pin.example", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.UploadImage(context.Background(), "a.png", []byte{1}); err != ErrNoAPIKey {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestUploadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pin" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("expected multipart upload, got %q", r.Header.Get("Content-Type"))
		}
		json.NewEncoder(w).Encode(map[string]string{"cid": "bafyimg"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	uri, err := client.UploadImage(context.Background(), "post.png", []byte("pixels"))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if uri != "ipfs://bafyimg" {
		t.Fatalf("unexpected uri %q", uri)
	}
}

func TestUploadMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var doc map[string]string
		if err := json.Unmarshal(body, &doc); err != nil {
			t.Errorf("bad metadata payload: %v", err)
		}
		if doc["name"] != "sunset" || doc["image"] != "ipfs://bafyimg" {
			t.Errorf("unexpected metadata %v", doc)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"cid": "bafymeta"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	uri, err := client.UploadMetadata(context.Background(), "sunset", "ipfs://bafyimg")
	if err != nil {
		t.Fatalf("UploadMetadata: %v", err)
	}
	if uri != "ipfs://bafymeta" {
		t.Fatalf("unexpected uri %q", uri)
	}
	if _, err := client.UploadMetadata(context.Background(), "sunset", "https://not-ipfs"); err == nil {
		t.Fatal("expected rejection of non-ipfs image uri")
	}
}

func TestUploadSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.UploadImage(context.Background(), "a.png", []byte{1})
	if err == nil || !strings.Contains(err.Error(), "402") {
		t.Fatalf("expected status error, got %v", err)
	}
}
