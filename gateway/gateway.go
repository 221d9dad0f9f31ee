package gateway

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"amanavault/core"
	"amanavault/crypto"
)

// Server exposes a read-only REST surface over the node for wallets and
// dashboards. Mutations go through the JSON-RPC server, never through here.
type Server struct {
	node      *core.Node
	log       *slog.Logger
	rateEvery rate.Limit
	rateBurst int

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

type Options struct {
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
		rateEvery: rate.Limit(limit),
		rateBurst: burst,
		visitors:  make(map[string]*rate.Limiter),
	}
}

// Handler builds the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/vault", s.getVault)
		r.Get("/positions/{address}", s.getPosition)
		r.Get("/rewards/{address}", s.getRewards)
		r.Get("/tokens/{symbol}/supply", s.getSupply)
		r.Get("/tokens/{symbol}/balances/{address}", s.getBalance)
	})

	return otelhttp.NewHandler(r, "gateway")
}

func (s *Server) Start(addr string) error {
	s.log.Info("starting gateway", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		s.mu.Lock()
		limiter, ok := s.visitors[host]
		if !ok {
			limiter = rate.NewLimiter(s.rateEvery, s.rateBurst)
			s.visitors[host] = limiter
		}
		s.mu.Unlock()
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func pathAddress(r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	return addr, err == nil
}

func (s *Server) getVault(w http.ResponseWriter, _ *http.Request) {
	view, err := s.node.Vault()
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid address")
		return
	}
	pos, err := s.node.PositionOf(addr)
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) getRewards(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid address")
		return
	}
	claimable, err := s.node.ClaimableRewards(addr)
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address":   addr.String(),
		"claimable": claimable.String(),
	})
}

func (s *Server) getSupply(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	supply, err := s.node.TokenSupply(symbol)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"symbol": symbol,
		"supply": supply.String(),
	})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid address")
		return
	}
	symbol := chi.URLParam(r, "symbol")
	balance, err := s.node.TokenBalance(symbol, addr)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.String(),
		"symbol":  symbol,
		"amount":  balance.String(),
	})
}
