// cmd/fieldops-service/main.go
package main

import (
	"go.uber.org/zap"

	"toolgate/internal/providers/fieldops"
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
		Name:     "fieldops-service",
		Audience: "toolgate-fieldops",
		Addr:     cfg.FieldOpsAddr,
	}, func(reg *tools.Registry, store credentials.Store, newOAuth func(string) *oauth.Client, log *zap.SugaredLogger) error {
		adapter := fieldops.NewAdapter("")
		client := upstream.New(adapter, store, newOAuth(adapter.Provider()), log)
		return fieldops.Register(reg, client)
	})
}
