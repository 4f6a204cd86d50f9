package main

import (
	"github.com/ghaggin/pbdemo/internal/config"
	"github.com/ghaggin/pbdemo/internal/middleware"
	"github.com/ghaggin/pbdemo/internal/web"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.Provide(
			zap.NewDevelopment,
			config.New,
			middleware.NewSessionManager,
		),
		web.Module,
		fx.Invoke(web.RegisterHooks),
	)

	app.Run()
}
