package main

import (
	"bufio"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/zarvd/github-app-jwt/internal/key"
	"github.com/zarvd/github-app-jwt/internal/minter"
	"github.com/zarvd/github-app-jwt/internal/server"
)

type CLI struct {
	Mint  MintCmd  `cmd:"" default:"withargs" help:"Mint a GitHub App JWT and print it"`
	Serve ServeCmd `cmd:"" help:"Mint GitHub App JWTs over HTTP"`
}

type MintCmd struct {
	Key   string `help:"Path to the PEM-encoded App private key" env:"GITHUB_APP_PRIVATE_KEY_PATH"`
	AppID string `help:"GitHub App ID used as the token issuer" env:"GITHUB_APP_ID"`
	Iat   int64  `help:"Issued-at as a Unix timestamp (default: now)"`
	Exp   int64  `help:"Expiration as a Unix timestamp (default: iat + 600)"`
}

func (cmd *MintCmd) Run(logger *slog.Logger) error {
	keyPath := cmd.Key
	if keyPath == "" {
		var err error
		if keyPath, err = prompt("Enter path of private PEM file: "); err != nil {
			return err
		}
	}
	appID := cmd.AppID
	if appID == "" {
		var err error
		if appID, err = prompt("Enter your App ID: "); err != nil {
			return err
		}
	}

	signingKey, err := loadSigningKey(logger, keyPath)
	if err != nil {
		return err
	}

	issuedAt := time.Now().Truncate(time.Second)
	if cmd.Iat != 0 {
		issuedAt = time.Unix(cmd.Iat, 0)
	}
	expiresAt := issuedAt.Add(minter.MaxLifetime)
	if cmd.Exp != 0 {
		expiresAt = time.Unix(cmd.Exp, 0)
	}
	if expiresAt.Sub(issuedAt) > minter.MaxLifetime {
		logger.Warn("token lifetime exceeds the 10 minute maximum, GitHub will reject it",
			slog.Duration("lifetime", expiresAt.Sub(issuedAt)))
	}

	token, err := minter.New(signingKey).Mint(minter.Claims{
		Issuer:    appID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}

	now := time.Now().Unix()
	fmt.Printf("JWT:  %s\n", token)
	fmt.Printf("Issued At: %d\n", now)
	fmt.Printf("Expires At + 600: %d\n", now+600)
	fmt.Printf("January 1st 1970: %s\n", time.Unix(0, 0).UTC())
	fmt.Printf("January 1st 2020: %s\n", time.Unix(1577836800, 0).UTC())
	return nil
}

type ServeCmd struct {
	Listen string `help:"Address to listen on" default:"127.0.0.1:8914"`
	Key    string `required:"" help:"Path to the PEM-encoded App private key" env:"GITHUB_APP_PRIVATE_KEY_PATH"`
	AppID  string `required:"" help:"GitHub App ID used as the default token issuer" env:"GITHUB_APP_ID"`
}

func (cmd *ServeCmd) Run(ctx context.Context, logger *slog.Logger) error {
	signingKey, err := loadSigningKey(logger, cmd.Key)
	if err != nil {
		return err
	}

	svr := server.New(logger, minter.New(signingKey), cmd.AppID)
	httpServer := &http.Server{
		Handler:      svr.Handler(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	listener, err := net.Listen("tcp", cmd.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer listener.Close()

	go func() {
		logger.Info("serving on", slog.String("address", listener.Addr().String()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func loadSigningKey(logger *slog.Logger, path string) (*rsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	signingKey, err := key.DecodeRSAPrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}

	fingerprint, err := key.Fingerprint(&signingKey.PublicKey)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded signing key",
		slog.String("fingerprint", fingerprint),
		slog.Int("bits", signingKey.N.BitLen()),
	)
	return signingKey, nil
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	var cli CLI
	cliCtx := kong.Parse(&cli)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.Bind(logger)

	if err := cliCtx.Run(); err != nil {
		logger.Error("failed to run CLI", slog.Any("error", err))
		os.Exit(1)
	}
}
