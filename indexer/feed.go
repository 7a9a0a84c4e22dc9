package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"mintgram/ipfs"
	"mintgram/mintclub"
)

// FeedItem is one post in the aggregated feed, image URL already resolved to
// a renderable gateway address.
type FeedItem struct {
	TokenAddress  string    `json:"tokenAddress"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	Image         string    `json:"image"`
	CreatorSymbol string    `json:"creatorSymbol"`
	CreatedAt     time.Time `json:"createdAt"`
	NextMintPrice string    `json:"nextMintPrice"`
}

// FeedBuilder aggregates post tokens across all creator coins backed by one
// reserve token.
type FeedBuilder struct {
	client       *Client
	reserve      common.Address
	symbolPrefix string
	concurrency  int
	pageSize     int
}

// FeedOption adjusts feed construction.
type FeedOption func(*FeedBuilder)

// WithConcurrency caps how many creator coins are expanded at once.
func WithConcurrency(n int) FeedOption {
	return func(b *FeedBuilder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithSymbolPrefix restricts creator coins to a symbol namespace.
func WithSymbolPrefix(prefix string) FeedOption {
	return func(b *FeedBuilder) {
		b.symbolPrefix = prefix
	}
}

// WithPageSize overrides how many tokens each list request fetches.
func WithPageSize(n int) FeedOption {
	return func(b *FeedBuilder) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// NewFeedBuilder builds a feed over creator coins backed by reserve.
func NewFeedBuilder(client *Client, reserve common.Address, opts ...FeedOption) (*FeedBuilder, error) {
	if client == nil {
		return nil, fmt.Errorf("indexer: client required")
	}
	b := &FeedBuilder{
		client:       client,
		reserve:      reserve,
		symbolPrefix: mintclub.DefaultSymbolPrefix,
		concurrency:  3,
		pageSize:     defaultItemsPerPage,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build lists all creator coins in the namespace, expands each into its post
// tokens with bounded concurrency, drops posts without an image, and returns
// the merged result newest first.
func (b *FeedBuilder) Build(ctx context.Context) ([]FeedItem, error) {
	coins, err := b.client.ListByReserve(ctx, b.reserve, TokenTypeERC20, 1, b.pageSize)
	if err != nil {
		return nil, fmt.Errorf("indexer: list creator coins: %w", err)
	}

	type expansion struct {
		items []FeedItem
		err   error
	}
	results := make([]expansion, len(coins))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	for i, coin := range coins {
		if b.symbolPrefix != "" && !strings.HasPrefix(coin.Symbol, b.symbolPrefix) {
			continue
		}
		if !common.IsHexAddress(coin.TokenAddress) {
			continue
		}
		wg.Add(1)
		go func(i int, coin Token) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			items, err := b.expandCoin(ctx, coin)
			results[i] = expansion{items: items, err: err}
		}(i, coin)
	}
	wg.Wait()

	var feed []FeedItem
	for _, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		feed = append(feed, res.items...)
	}
	sort.Slice(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	return feed, nil
}

func (b *FeedBuilder) expandCoin(ctx context.Context, coin Token) ([]FeedItem, error) {
	posts, err := b.client.ListByReserve(ctx, common.HexToAddress(coin.TokenAddress), TokenTypeERC1155, 1, b.pageSize)
	if err != nil {
		return nil, fmt.Errorf("indexer: list posts for %s: %w", coin.Symbol, err)
	}
	items := make([]FeedItem, 0, len(posts))
	for _, post := range posts {
		if post.Metadata.Logo == "" {
			continue
		}
		items = append(items, FeedItem{
			TokenAddress:  post.TokenAddress,
			Name:          post.Name,
			Symbol:        post.Symbol,
			Image:         ipfs.ResolveURL(post.Metadata.Logo),
			CreatorSymbol: coin.Symbol,
			CreatedAt:     post.CreatedAt,
			NextMintPrice: post.PriceForNextMint,
		})
	}
	return items, nil
}
