package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pdf-inquiry/internal/auth"
	"github.com/ziadkadry99/pdf-inquiry/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and websocket chat server",
	Long: `Starts the pdfqa server: a REST API for signup, login, uploads,
questions, summaries and conversation history, plus a websocket chat at
/ws/chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		secret := []byte(a.cfg.Server.JWTSecret)
		if len(secret) == 0 {
			// Tokens issued with a random secret do not survive a restart.
			secret, err = randomSecret()
			if err != nil {
				return err
			}
			a.logger.Warn("server.jwt_secret is not set; using a random secret")
		}
		tokens, err := auth.NewTokens(secret, a.cfg.TokenTTL())
		if err != nil {
			return err
		}

		port := a.cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		srv := server.New(server.Config{
			Port:           port,
			AllowAll:       a.cfg.Server.AllowAllOrigins,
			MaxUploadBytes: int64(a.cfg.Server.MaxUploadMB) << 20,
		}, a.rag, a.users, tokens, a.logger)

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "pdfqa server %s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Storage: %s\n", a.cfg.Storage.Driver)
		fmt.Fprintf(os.Stderr, "  Provider: %s (%s)\n", a.cfg.Provider, a.cfg.Model)

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func randomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating token secret: %w", err)
	}
	return []byte(hex.EncodeToString(b)), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
