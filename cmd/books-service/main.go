// cmd/books-service/main.go
package main

import (
	"go.uber.org/zap"

	"toolgate/internal/providers/books"
	"toolgate/internal/toolserver"
	"toolgate/pkg/config"
	"toolgate/pkg/credentials"
	"toolgate/pkg/oauth"
	"toolgate/pkg/tools"
	"toolgate/pkg/upstream"
)

func main() {
	cfg := config.Load()
	toolserver.Run(cfg, toolserver.Options{
		Name:     "books-service",
		Audience: "toolgate-books",
		Addr:     cfg.BooksAddr,
	}, func(reg *tools.Registry, store credentials.Store, newOAuth func(string) *oauth.Client, log *zap.SugaredLogger) error {
		adapter := books.NewAdapter("")
		client := upstream.New(adapter, store, newOAuth(adapter.Provider()), log)
		return books.Register(reg, client)
	})
}
