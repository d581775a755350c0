package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"zkv-router/internal/handlers"
	"zkv-router/internal/router"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(s *state) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the proof router HTTP API",
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			if s.cfg.Server.JWTSecret == "" {
				return errors.New("server.jwtSecret (or JWT_SECRET) is required to serve the API")
			}
			if addr == "" {
				addr = fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
			}

			c, err := s.services()
			if err != nil {
				return err
			}
			submissions, err := c.Submissions()
			if err != nil {
				return err
			}

			dir, err := filepath.Abs(s.cfg.Storage.Dir)
			if err != nil {
				return fmt.Errorf("invalid storage dir: %w", err)
			}

			gin.SetMode(gin.ReleaseMode)
			engine := router.SetupRouter(
				s.cfg.Server,
				handlers.NewProofHandler(c.Pipeline, submissions, c.Store, dir, s.mnemonic, s.logger),
				handlers.NewWebSocketHandler(c.Hub, s.logger),
				s.logger,
			)
			srv := &http.Server{
				Addr:              addr,
				Handler:           engine,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				s.logger.WithField("addr", addr).Info("🚀 zkv-router API listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				s.logger.Info("shutting down")
				// hijacked websocket streams are not tracked by Shutdown
				c.Hub.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.host:server.port)")
	return cmd
}
