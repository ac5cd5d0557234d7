package main

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"golang.org/x/term"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/auth"
	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/theme"
	"github.com/trezcool/masomo-console/core/user"
	apisvc "github.com/trezcool/masomo-console/services/api"
	logsvc "github.com/trezcool/masomo-console/services/logger"
	"github.com/trezcool/masomo-console/storage"
)

type storageResult struct {
	dig.Out
	Storage core.Storage
	Close   func() error `name:"closeStorage"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(os.Stderr, conf)
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

func newPaletteMarker() *palette {
	return newPalette(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func newSessionStore(conf *core.Config, s core.Storage, logger core.Logger) *session.Store {
	return session.NewStore(session.Options{
		Storage: s,
		Logger:  logger,
		Key:     conf.Storage.SessionKey,
		Timeout: conf.Storage.Timeout,
	})
}

func newThemeStore(conf *core.Config, s core.Storage, marker *palette, logger core.Logger) *theme.Store {
	return theme.NewStore(theme.Options{
		Storage: s,
		Marker:  marker,
		Logger:  logger,
		Key:     conf.Storage.ThemeKey,
		Timeout: conf.Storage.Timeout,
	})
}

func newAPIClient(conf *core.Config, sessions *session.Store, logger core.Logger) *apisvc.Client {
	return apisvc.NewClient(apisvc.Options{
		BaseURL:   conf.API.BaseURL,
		Timeout:   conf.API.Timeout,
		RateLimit: conf.API.RateLimit,
		RateBurst: conf.API.RateBurst,
		Tokens:    sessions,
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

func newCommandLine(conf *core.Config, svc *auth.Service, sessions *session.Store, themes *theme.Store, colors *palette) *commandLine {
	return &commandLine{
		svc:      svc,
		sessions: sessions,
		themes:   themes,
		colors:   colors,
		out:      os.Stdout,
		timeout:  conf.API.Timeout,
	}
}

// newContainer returns the dependency injection container of the console.
func newContainer() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStorage))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newPaletteMarker))
	must(c.Provide(newSessionStore))
	must(c.Provide(newThemeStore))
	must(c.Provide(newAPIClient))
	must(c.Provide(newAuthService))
	must(c.Provide(newCommandLine))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
