// Package server assembles the HTTP router and runs the service until its
// context is cancelled.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lifeos/lifeosd/internal/config"
	"github.com/lifeos/lifeosd/internal/handler"
	"github.com/lifeos/lifeosd/internal/handler/agents"
	"github.com/lifeos/lifeosd/internal/handler/auth"
	"github.com/lifeos/lifeosd/internal/handler/chat"
	"github.com/lifeos/lifeosd/internal/handler/conversations"
	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/middleware"
	"github.com/lifeos/lifeosd/internal/svc"
)

// ServerOptions holds optional dependencies for the server.
type ServerOptions struct {
	SvcCtx *svc.ServiceContext // pre-initialized service context
	Quiet  bool                // suppress startup messages
}

// Run starts the HTTP server and blocks until the context is cancelled.
func Run(ctx context.Context, c config.Config, opts ...ServerOptions) error {
	var o ServerOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return run(ctx, c, o)
}

func run(ctx context.Context, c config.Config, opts ServerOptions) error {
	if err := checkPortAvailable(c.Host, c.Port); err != nil {
		return fmt.Errorf("port %d is already in use: %w", c.Port, err)
	}

	svcCtx := opts.SvcCtx
	if svcCtx == nil {
		var err error
		svcCtx, err = svc.NewServiceContext(c)
		if err != nil {
			return err
		}
		defer svcCtx.Close()
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", c.Host, c.Port),
		Handler:     Router(svcCtx, opts.Quiet),
		IdleTimeout: 120 * time.Second,
	}

	if !opts.Quiet {
		fmt.Printf("Server ready at http://%s:%d\n", c.Host, c.Port)
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("[Server] http server error: %v", err)
		}
	}()

	<-ctx.Done()

	if !opts.Quiet {
		fmt.Println("\nShutting down server gracefully...")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// Router builds the chi router. Exposed separately so handler tests can run
// against the full middleware stack.
func Router(svcCtx *svc.ServiceContext, quiet bool) http.Handler {
	r := chi.NewRouter()

	if !quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", auth.LoginHandler(svcCtx))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(svcCtx.Config.Auth.Password, svcCtx.Config.Auth.AccessSecret))

			r.Post("/chat", chat.ChatHandler(svcCtx))
			r.Get("/conversations", conversations.ListConversationsHandler(svcCtx))
			r.Get("/conversations/{sessionId}/messages", conversations.GetMessagesHandler(svcCtx))
			r.Get("/agents", agents.ListAgentsHandler(svcCtx))
		})
	})

	return r
}

// checkPortAvailable checks if a port is available for binding.
func checkPortAvailable(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
