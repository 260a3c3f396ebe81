//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/zephyre/internal/bootstrap"
	"github.com/yanqian/zephyre/internal/domain/session"
	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/infra/config"
	httpiface "github.com/yanqian/zephyre/internal/interface/http"
	"github.com/yanqian/zephyre/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideValkeyClient,
		provideWeatherDirectory,
		provideWeatherCache,
		provideWeatherService,
		provideImageStore,
		provideAnalysisService,
		provideSkincareEngine,
		provideSessionStore,
		provideSessionLocker,
		provideJobQueue,
		provideSessionConfig,
		provideSessionService,
		wire.Bind(new(session.PlanGenerator), new(*skincare.Engine)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
