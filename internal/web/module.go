package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/ghaggin/pbdemo/internal/config"
	"github.com/ghaggin/pbdemo/internal/pocketbase"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(
		New,
		NewBackend,
	),
)

func NewBackend(cfg *config.Config, log *zap.Logger) (*pocketbase.Client, error) {
	u, err := url.Parse(cfg.PocketBase.URL)
	if err != nil {
		return nil, err
	}

	log.Info("using pocketbase", zap.String("url", u.String()))
	return pocketbase.NewClient(&http.Client{Timeout: 15 * time.Second}, *u, log), nil
}
