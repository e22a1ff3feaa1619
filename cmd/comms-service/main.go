// cmd/comms-service/main.go
package main

import (
	"go.uber.org/zap"

	"toolgate/internal/providers/comms"
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
		Name:     "comms-service",
		Audience: "toolgate-comms",
		Addr:     cfg.CommsAddr,
	}, func(reg *tools.Registry, store credentials.Store, newOAuth func(string) *oauth.Client, log *zap.SugaredLogger) error {
		emailAdapter := comms.NewEmailAdapter("")
		smsAdapter := comms.NewSMSAdapter("")
		email := upstream.New(emailAdapter, store, newOAuth(emailAdapter.Provider()), log)
		sms := upstream.New(smsAdapter, store, newOAuth(smsAdapter.Provider()), log)
		return comms.Register(reg, email, sms)
	})
}
