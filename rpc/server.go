package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/indexer"
	"github.com/stellarcarbon/sorocarbon/native/sink"
	"github.com/stellarcarbon/sorocarbon/observability"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	headerRequestID       = "X-Request-ID"
)

// Config tunes the gateway.
type Config struct {
	RateLimit      RateLimit
	Tokens         *auth.TokenVerifier
	Idempotency    *IdempotencyStore
	IdempotencyTTL time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

type handlerFunc func(ctx context.Context, r *http.Request, params []json.RawMessage) (interface{}, *RPCError)

type method struct {
	handler handlerFunc
	// mutating methods accept credentials and honour Idempotency-Key.
	mutating bool
}

// Server exposes the sink contract over JSON-RPC.
type Server struct {
	sink        *sink.Client
	index       *indexer.Store
	broadcaster *Broadcaster
	cfg         Config
	limiter     *rateLimiter
	metrics     *observability.RPCMetrics
	logger      *slog.Logger
	methods     map[string]method
	now         func() time.Time
	flights     singleflight.Group
	httpServer  *http.Server
}

// NewServer builds a gateway for client. index and broadcaster are optional.
func NewServer(client *sink.Client, index *indexer.Store, broadcaster *Broadcaster, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		sink:        client,
		index:       index,
		broadcaster: broadcaster,
		cfg:         cfg,
		limiter:     newRateLimiter(cfg.RateLimit),
		metrics:     observability.RPC(),
		logger:      cfg.Logger.With(slog.String("component", "rpc")),
		now:         time.Now,
	}
	s.methods = s.routes()
	return s
}

// Handler returns the HTTP surface: POST /rpc, GET /healthz, GET /metrics and
// GET /ws.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors(s.cfg.AllowedOrigins))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rpc", s.handleRPC)
	r.Get("/ws", s.handleEventsWS)
	return otelhttp.NewHandler(r, "sorocarbon-rpc")
}

// Start serves on addr until Shutdown. It returns nil after a graceful stop.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("json-rpc listening", slog.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// SweepVisitors drops idle rate-limit state. The daemon calls it periodically.
func (s *Server) SweepVisitors() { s.limiter.sweep() }

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	requestID := strings.TrimSpace(r.Header.Get(headerRequestID))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(headerRequestID, requestID)

	if !s.limiter.allow(s.limiter.clientID(r)) {
		s.metrics.RecordThrottle("rate_limit")
		body, status := encodeResponse(nil, nil, newError(http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded", nil))
		writeResponse(w, status, body)
		return
	}

	req, rpcErr := readRequest(w, r)
	if rpcErr != nil {
		body, status := encodeResponse(nil, nil, rpcErr)
		writeResponse(w, status, body)
		s.metrics.Observe("invalid", rpcErr.Code, time.Since(start))
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		body, status := encodeResponse(req.ID, nil, newError(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method))
		writeResponse(w, status, body)
		s.metrics.Observe("unknown", codeMethodNotFound, time.Since(start))
		return
	}

	var (
		body   []byte
		status int
		hit    bool
	)
	if cacheKey := s.idempotencyScope(r, req, m); cacheKey != "" {
		v, _, _ := s.flights.Do(cacheKey, func() (interface{}, error) {
			return s.replayOrExecute(r, req, m, cacheKey), nil
		})
		out := v.(replay)
		body, status, rpcErr, hit = out.body, out.status, out.rpcErr, out.hit
	} else {
		body, status, rpcErr = s.execute(r, req, m)
	}
	if hit {
		w.Header().Set("X-Idempotency-Cache", "hit")
	}
	writeResponse(w, status, body)

	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
		if rpcErr.Code == codeAborted || rpcErr.Code == codeServerError {
			s.logger.Error("rpc call failed",
				slog.String("method", req.Method),
				slog.String("request_id", requestID),
				slog.Any("error", rpcErr.Data))
		}
	}
	s.metrics.Observe(req.Method, code, time.Since(start))
}

type replay struct {
	body   []byte
	status int
	rpcErr *RPCError
	hit    bool
}

func (s *Server) execute(r *http.Request, req *RPCRequest, m method) ([]byte, int, *RPCError) {
	result, rpcErr := m.handler(r.Context(), r, req.Params)
	body, status := encodeResponse(req.ID, result, rpcErr)
	return body, status, rpcErr
}

// replayOrExecute runs under the per-key flight, so a key is checked, executed
// and stored by one request at a time.
func (s *Server) replayOrExecute(r *http.Request, req *RPCRequest, m method, cacheKey string) replay {
	record, found, err := s.cfg.Idempotency.Get(cacheKey, s.now())
	if err != nil {
		s.logger.Warn("idempotency lookup failed", slog.Any("error", err))
	} else if found {
		return replay{body: record.Body, status: record.StatusCode, hit: true}
	}
	body, status, rpcErr := s.execute(r, req, m)
	if cacheable(status, rpcErr) {
		now := s.now()
		if err := s.cfg.Idempotency.Put(cacheKey, IdempotencyRecord{
			StatusCode: status,
			Body:       body,
			StoredAt:   now,
			ExpiresAt:  now.Add(s.cfg.IdempotencyTTL),
		}); err != nil {
			s.logger.Warn("idempotency store failed", slog.Any("error", err))
		}
	}
	return replay{body: body, status: status, rpcErr: rpcErr}
}

// idempotencyScope returns the replay cache key for a mutating request that
// carries an Idempotency-Key, or "" when the request is not cacheable. The
// key covers the verified token subject, the approval signers and the params.
func (s *Server) idempotencyScope(r *http.Request, req *RPCRequest, m method) string {
	if !m.mutating || s.cfg.Idempotency == nil {
		return ""
	}
	key := strings.TrimSpace(r.Header.Get(headerIdempotency))
	if key == "" {
		return ""
	}
	var identities []string
	if token := bearerToken(r); token != "" {
		if !s.cfg.Tokens.Enabled() {
			return ""
		}
		grant, err := s.cfg.Tokens.Verify(token)
		if err != nil {
			return ""
		}
		identities = append(identities, "token:"+grant.Subject.String())
	}
	if len(req.Params) == 1 {
		var creds credentialParams
		if err := json.Unmarshal(req.Params[0], &creds); err == nil {
			for _, a := range creds.Approvals {
				identities = append(identities, "signer:"+a.Signer.String())
			}
		}
	}
	sort.Strings(identities)
	return idempotencyKey(req.Method, key, identities, req.Params)
}

func readRequest(w http.ResponseWriter, r *http.Request) (*RPCRequest, *RPCError) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, newError(http.StatusRequestEntityTooLarge, codeInvalidRequest,
				fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes), nil)
		}
		return nil, newError(http.StatusBadRequest, codeInvalidRequest, "failed to read request body", err.Error())
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, newError(http.StatusBadRequest, codeInvalidRequest, "request body required", nil)
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, newError(http.StatusBadRequest, codeParseError, "invalid JSON payload", err.Error())
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		return nil, newError(http.StatusBadRequest, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
	}
	if req.Method == "" {
		return nil, newError(http.StatusBadRequest, codeInvalidRequest, "method required", nil)
	}
	return req, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// credentials builds the authorization context for one call from signed
// approvals in the params and an optional bearer capability token.
func (s *Server) credentials(r *http.Request, approvals []auth.Approval) (auth.Context, *RPCError) {
	ctxs := auth.Set{}
	if len(approvals) > 0 {
		ctxs = append(ctxs, auth.Approvals(approvals))
	}
	if token := bearerToken(r); token != "" {
		if !s.cfg.Tokens.Enabled() {
			return nil, newError(http.StatusUnauthorized, codeUnauthorized, "bearer tokens are not accepted", nil)
		}
		grant, err := s.cfg.Tokens.Verify(token)
		if err != nil {
			return nil, newError(http.StatusUnauthorized, codeUnauthorized, "invalid bearer token", err.Error())
		}
		ctxs = append(ctxs, auth.Grants{grant})
	}
	if len(ctxs) == 0 {
		return auth.None{}, nil
	}
	return ctxs, nil
}
