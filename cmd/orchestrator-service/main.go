// cmd/orchestrator-service/main.go
package main

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

	"toolgate/internal/orchestrator"
	"toolgate/pkg/config"
	"toolgate/pkg/logger"
	"toolgate/pkg/middleware"
	"toolgate/pkg/session"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "orchestrator-service")

	issuer := session.NewIssuer(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	svc := orchestrator.New(issuer, []orchestrator.ToolServer{
		{Name: "books", Audience: "toolgate-books", Endpoint: "http://localhost" + cfg.BooksAddr + "/sse"},
		{Name: "fieldops", Audience: "toolgate-fieldops", Endpoint: "http://localhost" + cfg.FieldOpsAddr + "/sse"},
		{Name: "comms", Audience: "toolgate-comms", Endpoint: "http://localhost" + cfg.CommsAddr + "/sse"},
	}, nil, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg, "orchestrator-service"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	svc.Routes(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.OrchestratorAddr, Handler: r}
	go func() {
		log.Infow("orchestrator-service listening", "addr", cfg.OrchestratorAddr)
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
	fmt.Println("orchestrator-service stopped")
}
