package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	baseReserve = common.HexToAddress("0x4200000000000000000000000000000000000006")
	aliceCoin   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bobCoin     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func feedFixtureServer(t *testing.T, inflight *int32, maxInflight *int32) *httptest.Server {
	t.Helper()
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inflight != nil {
			cur := atomic.AddInt32(inflight, 1)
			for {
				max := atomic.LoadInt32(maxInflight)
				if cur <= max || atomic.CompareAndSwapInt32(maxInflight, max, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			defer atomic.AddInt32(inflight, -1)
		}
		q := r.URL.Query()
		var tokens []Token
		switch {
		case q.Get("tokenType") == "ERC20":
			tokens = []Token{
				{Symbol: "OWHAALICE", TokenAddress: aliceCoin.Hex(), CreatedAt: day(1)},
				{Symbol: "OWHABOB", TokenAddress: bobCoin.Hex(), CreatedAt: day(2)},
				{Symbol: "LEGACY", TokenAddress: bobCoin.Hex(), CreatedAt: day(3)},
			}
		case q.Get("reserveToken") == strings.ToLower(aliceCoin.Hex()):
			tokens = []Token{
				{Symbol: "SUNSET123", Name: "sunset", TokenAddress: "0xa1", CreatedAt: day(10),
					Metadata: TokenMetadata{Logo: "ipfs://bafysunset"}},
				{Symbol: "NOIMG", Name: "broken", TokenAddress: "0xa2", CreatedAt: day(11)},
			}
		case q.Get("reserveToken") == strings.ToLower(bobCoin.Hex()):
			tokens = []Token{
				{Symbol: "DAWN456", Name: "dawn", TokenAddress: "0xb1", CreatedAt: day(12),
					Metadata: TokenMetadata{Logo: "https://ipfs.io/ipfs/bafydawn"}},
			}
		}
		json.NewEncoder(w).Encode(listResponse{Tokens: tokens})
	}))
}

func TestFeedBuild(t *testing.T) {
	srv := feedFixtureServer(t, nil, nil)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, WithRateLimit(1000, 1000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	builder, err := NewFeedBuilder(client, baseReserve)
	if err != nil {
		t.Fatalf("NewFeedBuilder: %v", err)
	}
	feed, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// LEGACY is outside the symbol namespace, NOIMG has no image.
	if len(feed) != 2 {
		t.Fatalf("expected 2 feed items, got %d: %+v", len(feed), feed)
	}
	if feed[0].Symbol != "DAWN456" || feed[1].Symbol != "SUNSET123" {
		t.Fatalf("feed not newest first: %+v", feed)
	}
	if feed[0].CreatorSymbol != "OWHABOB" {
		t.Fatalf("unexpected creator attribution %q", feed[0].CreatorSymbol)
	}
	for _, item := range feed {
		if !strings.HasPrefix(item.Image, "https://ipfs.filebase.io/ipfs/") {
			t.Fatalf("image not resolved to gateway: %q", item.Image)
		}
	}
}

func TestFeedBoundsConcurrency(t *testing.T) {
	var inflight, maxInflight int32
	srv := feedFixtureServer(t, &inflight, &maxInflight)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, WithRateLimit(1000, 1000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	builder, err := NewFeedBuilder(client, baseReserve, WithConcurrency(1))
	if err != nil {
		t.Fatalf("NewFeedBuilder: %v", err)
	}
	if _, err := builder.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := atomic.LoadInt32(&maxInflight); got > 1 {
		t.Fatalf("expected at most 1 in-flight expansion, saw %d", got)
	}
}

func TestFeedPropagatesExpansionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tokenType") == "ERC20" {
			json.NewEncoder(w).Encode(listResponse{Tokens: []Token{
				{Symbol: "OWHAALICE", TokenAddress: aliceCoin.Hex()},
			}})
			return
		}
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, WithRateLimit(1000, 1000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	builder, err := NewFeedBuilder(client, baseReserve)
	if err != nil {
		t.Fatalf("NewFeedBuilder: %v", err)
	}
	if _, err := builder.Build(context.Background()); err == nil {
		t.Fatal("expected expansion error to propagate")
	}
}
