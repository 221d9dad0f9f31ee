package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"amanavault/core"
	"amanavault/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the node over JSON-RPC. Admin methods require a bearer JWT
// signed with the configured secret; everything else is open but rate limited
// per client address.
type Server struct {
	node      *core.Node
	log       *slog.Logger
	jwtSecret []byte
	rateEvery rate.Limit
	rateBurst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Options configures the RPC server.
type Options struct {
	JWTSecret string
	RateLimit int
	RateBurst int
	Logger    *slog.Logger
}

func NewServer(node *core.Node, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = 50
	}
	burst := opts.RateBurst
	if burst < limit {
		burst = limit
	}
	return &Server{
		node:      node,
		log:       logger,
		jwtSecret: []byte(strings.TrimSpace(opts.JWTSecret)),
		rateEvery: rate.Limit(limit),
		rateBurst: burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Handler returns the instrumented HTTP handler serving RPC and the event
// stream.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.HandleFunc("/ws/events", s.handleEventsWS)
	return otelhttp.NewHandler(mux, "rpc")
}

func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allow(clientIP string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(s.rateEvery, s.rateBurst)
		s.limiters[clientIP] = limiter
	}
	return limiter.Allow()
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if len(s.jwtSecret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "admin methods disabled: no RPC secret configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	return nil
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.allow(s.clientIP(r)) {
		observability.RPCMetrics().RecordThrottle("rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	status := s.dispatch(w, r, req)
	observability.RPCMetrics().Observe(req.Method, status, time.Since(started))
	s.log.Debug("rpc request", "method", req.Method, "status", status, "requestId", requestID)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	switch req.Method {
	case "vault_deposit":
		return s.handleVaultDeposit(w, req)
	case "vault_withdraw":
		return s.handleVaultWithdraw(w, req)
	case "vault_redeem":
		return s.handleVaultRedeem(w, req)
	case "vault_approveShares":
		return s.handleVaultApproveShares(w, req)
	case "vault_claimRewards":
		return s.handleVaultClaimRewards(w, req)
	case "vault_getState":
		return s.handleVaultGetState(w, req)
	case "vault_getPosition":
		return s.handleVaultGetPosition(w, req)
	case "vault_totalAssets":
		return s.handleVaultTotalAssets(w, req)
	case "vault_sharesOf":
		return s.handleVaultSharesOf(w, req)
	case "vault_claimable":
		return s.handleVaultClaimable(w, req)
	case "vault_convertToShares":
		return s.handleVaultConvertToShares(w, req)
	case "vault_convertToAssets":
		return s.handleVaultConvertToAssets(w, req)
	case "strategy_totalAssets":
		return s.handleStrategyTotalAssets(w, req)
	case "token_transfer":
		return s.handleTokenTransfer(w, req)
	case "token_approve":
		return s.handleTokenApprove(w, req)
	case "token_balance":
		return s.handleTokenBalance(w, req)
	case "token_supply":
		return s.handleTokenSupply(w, req)
	case "vault_setRewardToken":
		return s.adminCall(w, r, req, s.handleVaultSetRewardToken)
	case "vault_setRewardsInterval":
		return s.adminCall(w, r, req, s.handleVaultSetRewardsInterval)
	case "vault_setFeeRate":
		return s.adminCall(w, r, req, s.handleVaultSetFeeRate)
	case "vault_setStrategy":
		return s.adminCall(w, r, req, s.handleVaultSetStrategy)
	case "venue_setRate":
		return s.adminCall(w, r, req, s.handleVenueSetRate)
	case "venue_setWithdrawLimit":
		return s.adminCall(w, r, req, s.handleVenueSetWithdrawLimit)
	case "token_mint":
		return s.adminCall(w, r, req, s.handleTokenMint)
	case "system_pause":
		return s.adminCall(w, r, req, s.handleSystemPause)
	case "system_resume":
		return s.adminCall(w, r, req, s.handleSystemResume)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return http.StatusNotFound
	}
}

func (s *Server) adminCall(w http.ResponseWriter, r *http.Request, req *RPCRequest, handler func(http.ResponseWriter, *RPCRequest) int) int {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return http.StatusUnauthorized
	}
	return handler(w, req)
}
