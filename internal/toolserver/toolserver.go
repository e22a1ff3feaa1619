// internal/toolserver/toolserver.go
package toolserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"toolgate/internal/policy"
	"toolgate/pkg/config"
	"toolgate/pkg/credentials"
	"toolgate/pkg/db"
	"toolgate/pkg/logger"
	"toolgate/pkg/middleware"
	"toolgate/pkg/oauth"
	"toolgate/pkg/session"
	"toolgate/pkg/tools"
	"toolgate/pkg/transport"
)

// Options identifies one tool server: its name, the audience its verifier
// accepts, and where it listens.
type Options struct {
	Name     string
	Audience string
	Addr     string
}

// RegisterFunc wires a server's provider tools. newOAuth builds a refresh
// client for a named provider against the shared credential store.
type RegisterFunc func(reg *tools.Registry, store credentials.Store, newOAuth func(provider string) *oauth.Client, log *zap.SugaredLogger) error

// Run brings up one tool server end to end: stores, policy gate, tool
// registry, session verifier, transport, HTTP server, graceful shutdown.
// All three tool servers are this function with a different RegisterFunc.
func Run(cfg config.Config, opts Options, register RegisterFunc) {
	log := logger.New(cfg.Env, opts.Name)

	pool := db.MustPostgres(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var store credentials.Store
	var gate tools.Gate
	if pool != nil {
		if err := credentials.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if err := policy.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("policy schema", "err", err)
		}
		store = credentials.NewPostgresStore(pool, log)
		gate = policy.New(pool, log)
	} else {
		store = credentials.NewMemoryStore(log)
	}
	store = credentials.WithRedisCache(store, rdb, log)

	reg := tools.NewRegistry(gate, log)
	newOAuth := func(provider string) *oauth.Client {
		return oauth.NewClient(provider, cfg.Providers[provider], store, log)
	}
	if err := register(reg, store, newOAuth, log); err != nil {
		log.Fatalw("register tools", "err", err)
	}

	verifier := session.NewVerifier(cfg.SessionSecret, cfg.SessionIssuer, opts.Audience)
	streams := transport.WithRedisIndex(transport.NewMemoryRegistry(), rdb, log)
	ts := transport.NewServer(verifier, streams, reg, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg, opts.Name))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	ts.Routes(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: opts.Addr, Handler: r}
	go func() {
		log.Infow(opts.Name+" listening", "addr", opts.Addr, "audience", opts.Audience)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println(opts.Name + " stopped")
}
