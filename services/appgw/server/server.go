// Package server exposes the mini-app HTTP API: creation endpoints that feed
// the on-chain orchestrator, and read endpoints over the token index.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"mintgram/indexer"
	"mintgram/ipfs"
	"mintgram/mintclub"
	"mintgram/orchestrator"
	"mintgram/services/appgw/auth"
	"mintgram/services/appgw/models"
)

// Runner abstracts the creation coordinator.
type Runner interface {
	Run(ctx context.Context, kind orchestrator.Kind, params mintclub.CreationParams) orchestrator.Operation
}

// TokenReader abstracts the index queries the API serves.
type TokenReader interface {
	Detail(ctx context.Context, symbol string) (*indexer.Token, error)
	ListByReserve(ctx context.Context, reserve common.Address, tokenType indexer.TokenType, page, itemsPerPage int) ([]indexer.Token, error)
}

// FeedSource abstracts the aggregated feed.
type FeedSource interface {
	Build(ctx context.Context) ([]indexer.FeedItem, error)
}

// Pinner abstracts image and metadata pinning for post creation.
type Pinner interface {
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
	UploadMetadata(ctx context.Context, name, imageURI string) (string, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Store        *models.Store
	Runner       Runner
	Tokens       TokenReader
	Feed         FeedSource
	Pinner       Pinner
	Verifier     *auth.Verifier
	Reserve      common.Address
	SymbolPrefix string
	Registry     *prometheus.Registry
	Logger       *slog.Logger
	WriteRate    float64
	WriteBurst   int
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	store        *models.Store
	runner       Runner
	tokens       TokenReader
	feed         FeedSource
	pinner       Pinner
	verifier     *auth.Verifier
	reserve      common.Address
	symbolPrefix string
	logger       *slog.Logger
	writeLimiter *rate.Limiter
	imageClient  *http.Client
	now          func() time.Time

	// baseCtx owns background work that must outlive the request.
	baseCtx context.Context

	metrics *httpMetrics
	router  http.Handler
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newHTTPMetrics(reg *prometheus.Registry) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgram_appgw_requests_total",
			Help: "HTTP requests served, by route and status class.",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mintgram_appgw_request_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

// New constructs the HTTP server. The registry may be nil, in which case
// metrics are collected but never exported.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: store required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("server: runner required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("server: token reader required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("server: verifier required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.SymbolPrefix
	if prefix == "" {
		prefix = mintclub.DefaultSymbolPrefix
	}
	writeRate := cfg.WriteRate
	if writeRate <= 0 {
		writeRate = 5
	}
	writeBurst := cfg.WriteBurst
	if writeBurst <= 0 {
		writeBurst = 10
	}
	srv := &Server{
		store:        cfg.Store,
		runner:       cfg.Runner,
		tokens:       cfg.Tokens,
		feed:         cfg.Feed,
		pinner:       cfg.Pinner,
		verifier:     cfg.Verifier,
		reserve:      cfg.Reserve,
		symbolPrefix: prefix,
		logger:       logger,
		writeLimiter: rate.NewLimiter(rate.Limit(writeRate), writeBurst),
		imageClient:  &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
		baseCtx:      ctx,
		metrics:      newHTTPMetrics(cfg.Registry),
	}
	srv.router = srv.buildRouter(cfg.Registry)
	return srv, nil
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/feed", s.handleFeed)
		r.Get("/posts", s.handlePosts)
		r.Get("/token", s.handleToken)
		r.Get("/operations/{id}", s.handleOperation)

		r.Group(func(r chi.Router) {
			r.Use(s.verifier.Middleware)
			r.Use(s.throttleWrites)
			r.Post("/coins", s.handleCreateCoin)
			r.Post("/posts", s.handleCreatePost)
		})
	})

	return otelhttp.NewHandler(r, "appgw")
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requests.WithLabelValues(route, fmt.Sprintf("%dxx", ww.Status()/100)).Inc()
		s.metrics.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) throttleWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.writeLimiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createCoinRequest struct {
	Name string `json:"name"`
}

type createPostRequest struct {
	Name     string `json:"name"`
	ImageURI string `json:"imageUri"`
}

type createResponse struct {
	OperationID string `json:"operationId"`
	Symbol      string `json:"symbol"`
}

func (s *Server) handleCreateCoin(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req createCoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	symbol, err := mintclub.CoinSymbol(s.symbolPrefix, username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = username
	}
	params := mintclub.CreationParams{
		Kind:    mintclub.AssetCoin,
		Name:    name,
		Symbol:  symbol,
		Reserve: mintclub.ReserveToken{Address: s.reserve, Decimals: 18},
		Curve:   mintclub.CoinCurve(),
	}
	s.startOperation(w, orchestrator.KindCreateCoin, username, params)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "post name required", http.StatusBadRequest)
		return
	}
	if s.pinner == nil {
		http.Error(w, "post creation disabled: pinning not configured", http.StatusServiceUnavailable)
		return
	}
	imageURI := strings.TrimSpace(req.ImageURI)
	switch {
	case strings.HasPrefix(imageURI, "ipfs://"):
	case strings.HasPrefix(imageURI, "http://"), strings.HasPrefix(imageURI, "https://"):
		pinned, err := s.pinRemoteImage(r.Context(), imageURI)
		if err != nil {
			s.logger.Error("pin remote image", "url", imageURI, "error", err)
			http.Error(w, "failed to pin post image", http.StatusBadGateway)
			return
		}
		imageURI = pinned
	default:
		http.Error(w, "imageUri must be an ipfs:// uri or an http(s) url", http.StatusBadRequest)
		return
	}

	coinSymbol, err := mintclub.CoinSymbol(s.symbolPrefix, username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	coin, err := s.tokens.Detail(r.Context(), coinSymbol)
	if err != nil {
		s.logger.Error("coin lookup failed", "symbol", coinSymbol, "error", err)
		http.Error(w, "token index unavailable", http.StatusBadGateway)
		return
	}
	if coin == nil {
		http.Error(w, "create your coin before posting", http.StatusConflict)
		return
	}
	if !common.IsHexAddress(coin.TokenAddress) {
		http.Error(w, "indexed coin has no usable address", http.StatusBadGateway)
		return
	}

	metadataURI, err := s.pinner.UploadMetadata(r.Context(), req.Name, imageURI)
	if err != nil {
		s.logger.Error("metadata pinning failed", "error", err)
		http.Error(w, "failed to pin post metadata", http.StatusBadGateway)
		return
	}
	symbol, err := mintclub.PostSymbol(req.Name, s.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params := mintclub.CreationParams{
		Kind:        mintclub.AssetPost,
		Name:        req.Name,
		Symbol:      symbol,
		Reserve:     mintclub.ReserveToken{Address: common.HexToAddress(coin.TokenAddress), Decimals: 18},
		Curve:       mintclub.PostCurve(),
		MetadataURI: metadataURI,
	}
	s.startOperation(w, orchestrator.KindCreatePost, username, params)
}

// Remote images larger than this are refused rather than pinned.
const maxImageBytes = 8 << 20

// pinRemoteImage downloads an externally hosted image and pins it, returning
// the ipfs:// URI to reference from metadata.
func (s *Server) pinRemoteImage(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := s.imageClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("fetch image: empty body")
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("fetch image: exceeds %d byte limit", maxImageBytes)
	}
	return s.pinner.UploadImage(ctx, imageFilename(rawURL), data)
}

func imageFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}

// startOperation validates, records the pending row, and runs the creation in
// the background. The row id, not the coordinator's internal id, is what
// clients poll.
func (s *Server) startOperation(w http.ResponseWriter, kind orchestrator.Kind, username string, params mintclub.CreationParams) {
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := uuid.New()
	if err := s.store.CreatePending(s.baseCtx, id, string(kind), username, params.Symbol); err != nil {
		s.logger.Error("persist pending operation", "error", err)
		http.Error(w, "failed to record operation", http.StatusInternalServerError)
		return
	}
	go s.runOperation(id, kind, params)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(createResponse{OperationID: id.String(), Symbol: params.Symbol})
}

func (s *Server) runOperation(id uuid.UUID, kind orchestrator.Kind, params mintclub.CreationParams) {
	op := s.runner.Run(s.baseCtx, kind, params)
	var txHash, errorKind, message string
	var retryable bool
	if op.SubmittedTxHash != nil {
		txHash = op.SubmittedTxHash.Hex()
	}
	if op.Outcome != nil {
		errorKind = string(op.Outcome.Kind)
		message = op.Outcome.UserMessage
		retryable = op.Outcome.Retryable
	}
	if err := s.store.RecordOutcome(s.baseCtx, id, string(op.Status), txHash, errorKind, message, retryable); err != nil {
		s.logger.Error("persist operation outcome", "operation", id, "error", err)
	}
}

type operationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Username  string    `json:"username"`
	Symbol    string    `json:"symbol"`
	Status    string    `json:"status"`
	TxHash    string    `json:"txHash,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Retryable bool      `json:"retryable"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid operation id", http.StatusBadRequest)
		return
	}
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "operation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("load operation", "operation", id, "error", err)
		http.Error(w, "failed to load operation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		ID:        rec.ID.String(),
		Kind:      rec.Kind,
		Username:  rec.Username,
		Symbol:    rec.Symbol,
		Status:    rec.Status,
		TxHash:    rec.TxHash,
		ErrorKind: rec.ErrorKind,
		Message:   rec.Message,
		Retryable: rec.Retryable,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		http.Error(w, "feed not configured", http.StatusServiceUnavailable)
		return
	}
	items, err := s.feed.Build(r.Context())
	if err != nil {
		s.logger.Error("build feed", "error", err)
		http.Error(w, "failed to build feed", http.StatusBadGateway)
		return
	}
	if items == nil {
		items = []indexer.FeedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	reserveParam := r.URL.Query().Get("reserve")
	if !common.IsHexAddress(reserveParam) {
		http.Error(w, "reserve query parameter must be a hex address", http.StatusBadRequest)
		return
	}
	posts, err := s.tokens.ListByReserve(r.Context(), common.HexToAddress(reserveParam), indexer.TokenTypeERC1155, 1, 100)
	if err != nil {
		s.logger.Error("list posts", "reserve", reserveParam, "error", err)
		http.Error(w, "token index unavailable", http.StatusBadGateway)
		return
	}
	if posts == nil {
		posts = []indexer.Token{}
	}
	for i := range posts {
		posts[i].Metadata.Logo = ipfs.ResolveURL(posts[i].Metadata.Logo)
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		http.Error(w, "username query parameter required", http.StatusBadRequest)
		return
	}
	symbol, err := mintclub.CoinSymbol(s.symbolPrefix, username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token, err := s.tokens.Detail(r.Context(), symbol)
	if err != nil {
		s.logger.Error("token lookup", "symbol", symbol, "error", err)
		http.Error(w, "token index unavailable", http.StatusBadGateway)
		return
	}
	if token == nil {
		http.Error(w, "token not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
