package main

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	echoshell "github.com/trezcool/masomo-console/apps/shell/echo"
	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/auth"
	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/theme"
	"github.com/trezcool/masomo-console/core/user"
	apisvc "github.com/trezcool/masomo-console/services/api"
	logsvc "github.com/trezcool/masomo-console/services/logger"
	"github.com/trezcool/masomo-console/services/metrics"
	"github.com/trezcool/masomo-console/storage"
)

type storageResult struct {
	dig.Out
	Storage core.Storage
	Close   func() error `name:"closeStorage"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)
	logger.Enable(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")
	return logger
}

func newStorage(conf *core.Config, logger core.Logger) storageResult {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Storage.Timeout)
	defer cancel()
	s, closeFn, err := storage.Open(ctx, conf)
	if err != nil {
		logger.Fatal("setting up storage: "+err.Error(), err)
	}
	return storageResult{Storage: s, Close: closeFn}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newCollector(reg *prometheus.Registry) *metrics.Collector {
	return metrics.NewCollector(reg)
}

func newSessionStore(conf *core.Config, s core.Storage, rec *metrics.Collector, logger core.Logger) *session.Store {
	return session.NewStore(session.Options{
		Storage:  s,
		Logger:   logger,
		Recorder: rec,
		Key:      conf.Storage.SessionKey,
		Timeout:  conf.Storage.Timeout,
	})
}

func newThemeStore(conf *core.Config, s core.Storage, marker *echoshell.Marker, rec *metrics.Collector, logger core.Logger) *theme.Store {
	return theme.NewStore(theme.Options{
		Storage:  s,
		Marker:   marker,
		Logger:   logger,
		Recorder: rec,
		Key:      conf.Storage.ThemeKey,
		Timeout:  conf.Storage.Timeout,
	})
}

func newAPIClient(conf *core.Config, sessions *session.Store, rec *metrics.Collector, logger core.Logger) *apisvc.Client {
	return apisvc.NewClient(apisvc.Options{
		BaseURL:   conf.API.BaseURL,
		Timeout:   conf.API.Timeout,
		RateLimit: conf.API.RateLimit,
		RateBurst: conf.API.RateBurst,
		Tokens:    sessions,
		Recorder:  rec,
		Logger:    logger,
	})
}

func newAuthService(
	conf *core.Config,
	sessions *session.Store,
	client *apisvc.Client,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *auth.Service {
	return auth.NewService(auth.Options{
		Store:         sessions,
		Backend:       client,
		Validate:      validate,
		Translator:    translator,
		Logger:        logger,
		RefreshLeeway: conf.API.RefreshLeeway,
	})
}

func newServer(
	conf *core.Config,
	svc *auth.Service,
	themes *theme.Store,
	marker *echoshell.Marker,
	reg *prometheus.Registry,
	logger core.Logger,
) *echoshell.Server {
	return echoshell.NewServer(echoshell.Options{
		Address:        conf.Shell.Address,
		Debug:          conf.Debug,
		TestMode:       conf.TestMode,
		DisableReqLogs: conf.Shell.DisableReqLogs,
		Auth:           svc,
		Themes:         themes,
		Marker:         marker,
		Gatherer:       reg,
		Logger:         logger,
	})
}

// newContainer returns the dependency injection container of the web shell.
func newContainer() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStorage))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRegistry))
	must(c.Provide(newCollector))
	must(c.Provide(echoshell.NewMarker))
	must(c.Provide(newSessionStore))
	must(c.Provide(newThemeStore))
	must(c.Provide(newAPIClient))
	must(c.Provide(newAuthService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
