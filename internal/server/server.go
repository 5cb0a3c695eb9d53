package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/zarvd/github-app-jwt/internal/minter"
)

const defaultLifetime = 10 * time.Minute

type MintTokenRequest struct {
	// Issuer overrides the configured App ID when set.
	Issuer string `json:"issuer,omitempty"`
	// LifetimeSeconds is clamped to GitHub's 10 minute maximum.
	LifetimeSeconds int64 `json:"lifetime_seconds,omitempty"`
}

type MintTokenResponse struct {
	Token     string `json:"token"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// Server mints App tokens over HTTP.
type Server struct {
	logger *slog.Logger
	minter *minter.Minter
	issuer string

	now func() time.Time
}

func New(logger *slog.Logger, m *minter.Minter, issuer string) *Server {
	return &Server{
		logger: logger,
		minter: m,
		issuer: issuer,
		now:    time.Now,
	}
}

func (svr *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/token", svr.handleMintToken).Methods(http.MethodPost)
	router.HandleFunc("/healthz", svr.handleHealthz).Methods(http.MethodGet)
	return handlers.LoggingHandler(os.Stderr, router)
}

func (svr *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	logger := svr.logger.With(slog.String("method", "MintToken"))

	var req MintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("failed to decode request", slog.Any("error", err))
		http.Error(w, "not a valid JSON request body", http.StatusBadRequest)
		return
	}

	issuer := req.Issuer
	if issuer == "" {
		issuer = svr.issuer
	}
	lifetime := time.Duration(req.LifetimeSeconds) * time.Second
	if lifetime <= 0 || lifetime > minter.MaxLifetime {
		lifetime = defaultLifetime
	}

	issuedAt := svr.now()
	expiresAt := issuedAt.Add(lifetime)
	token, err := svr.minter.Mint(minter.Claims{
		Issuer:    issuer,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		logger.Error("failed to mint token", slog.Any("error", err))
		http.Error(w, "not able to mint token", http.StatusInternalServerError)
		return
	}

	logger.Info("minted token",
		slog.String("issuer", issuer),
		slog.Int64("issued-at", issuedAt.Unix()),
		slog.Int64("expires-at", expiresAt.Unix()),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MintTokenResponse{
		Token:     token,
		IssuedAt:  issuedAt.Unix(),
		ExpiresAt: expiresAt.Unix(),
	})
}

func (svr *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
