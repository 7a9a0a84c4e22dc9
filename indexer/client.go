// Package indexer reads token state from the off-chain index that tracks
// bonding-curve deployments.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"mintgram/mintclub"
)

// TokenType selects the asset class when listing tokens.
type TokenType string

const (
	// TokenTypeERC20 covers creator coins.
	TokenTypeERC20 TokenType = "ERC20"
	// TokenTypeERC1155 covers post tokens.
	TokenTypeERC1155 TokenType = "ERC1155"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultItemsPerPage   = 100
	// The index refuses bursts; three requests a second keeps fan-out polite.
	defaultRequestsPerSecond = 3
)

// Token is a single entry from the index.
type Token struct {
	ChainID          uint64        `json:"chainId"`
	Name             string        `json:"name"`
	Symbol           string        `json:"symbol"`
	TokenAddress     string        `json:"tokenAddress"`
	TokenType        TokenType     `json:"tokenType"`
	ReserveToken     string        `json:"reserveToken"`
	CreatorAddress   string        `json:"creatorAddress"`
	CreatedAt        time.Time     `json:"createdAt"`
	PriceForNextMint string        `json:"priceForNextMint"`
	Metadata         TokenMetadata `json:"metadata"`
}

// TokenMetadata carries the display fields attached to a token.
type TokenMetadata struct {
	Logo        string `json:"logo"`
	Description string `json:"description"`
}

// Client talks to the index REST API. All calls share one rate limiter so
// concurrent feed fan-out stays within the index's burst tolerance.
type Client struct {
	endpoint   string
	chainID    uint64
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option adjusts optional client behaviour.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRateLimit replaces the default request pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithChainID scopes queries to a chain other than the default.
func WithChainID(chainID uint64) Option {
	return func(c *Client) {
		if chainID != 0 {
			c.chainID = chainID
		}
	}
}

// New builds an index client against the given base endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("indexer: endpoint required")
	}
	c := &Client{
		endpoint:   trimmed,
		chainID:    mintclub.BaseChainID,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type listResponse struct {
	Tokens []Token `json:"tokens"`
}

// ListByReserve returns tokens of the given type backed by the reserve
// address, newest first as reported by the index.
func (c *Client) ListByReserve(ctx context.Context, reserve common.Address, tokenType TokenType, page, itemsPerPage int) ([]Token, error) {
	if page < 1 {
		page = 1
	}
	if itemsPerPage < 1 {
		itemsPerPage = defaultItemsPerPage
	}
	query := url.Values{}
	query.Set("chainId", strconv.FormatUint(c.chainID, 10))
	query.Set("tokenType", string(tokenType))
	query.Set("reserveToken", strings.ToLower(reserve.Hex()))
	query.Set("page", strconv.Itoa(page))
	query.Set("itemsPerPage", strconv.Itoa(itemsPerPage))

	var out listResponse
	if err := c.get(ctx, "/tokens/list", query, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

// Detail fetches a single token by symbol. A nil token with nil error means
// the symbol is not indexed yet.
func (c *Client) Detail(ctx context.Context, symbol string) (*Token, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("indexer: symbol required")
	}
	query := url.Values{}
	query.Set("chainId", strconv.FormatUint(c.chainID, 10))

	var out Token
	err := c.get(ctx, "/tokens/"+url.PathEscape(symbol), query, &out)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Exists reports whether the symbol has been picked up by the index. It
// satisfies the existence checker used after on-chain confirmation.
func (c *Client) Exists(ctx context.Context, symbol string) (bool, error) {
	token, err := c.Detail(ctx, symbol)
	if err != nil {
		return false, err
	}
	return token != nil, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("indexer: unexpected status %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("indexer: rate limit wait: %w", err)
	}
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("indexer: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("indexer: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("indexer: decode %s: %w", path, err)
	}
	return nil
}
