package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"herekitty/internal/alerting"
	"herekitty/internal/config"
	"herekitty/internal/fetcher"
	"herekitty/internal/market"
	"herekitty/internal/mooncat"
	"herekitty/internal/opensea"
	"herekitty/internal/scheduler"
	"herekitty/internal/service"
	"herekitty/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newOpenSeaClient() *opensea.Client {
	return opensea.NewClient(opensea.Options{
		BaseURL:         a.Config.OpenSea.BaseURL,
		APIKey:          a.Config.OpenSea.APIKey,
		ContractAddress: a.Config.OpenSea.ContractAddress,
		Chain:           a.Config.OpenSea.Chain,
		Timeout:         a.Config.OpenSea.RequestTimeout,
		RequestDelay:    a.Config.OpenSea.RequestDelay,
		UserAgent:       a.Config.OpenSea.UserAgent,
	}, a.Logger)
}

func (a *App) newMoonCatClient() *mooncat.Client {
	return mooncat.NewClient(mooncat.Options{
		BaseURL:      a.Config.MoonCat.BaseURL,
		DNAGateway:   a.Config.MoonCat.DNAGateway,
		ChainStation: a.Config.MoonCat.ChainStation,
		Timeout:      a.Config.MoonCat.RequestTimeout,
		UserAgent:    a.Config.MoonCat.UserAgent,
	}, a.Logger)
}

func (a *App) newWrapperFetcher() *fetcher.Wrapper {
	return fetcher.NewWrapper(fetcher.WrapperOptions{
		RPCURL:          a.Config.Ethereum.RPCURL,
		ContractAddress: a.Config.Ethereum.WrapperAddress,
		Timeout:         a.Config.Ethereum.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Discord.Enabled {
		cfg := a.Config.Alerting.Discord
		return alerting.NewDiscordNotifier(cfg.WebhookURL, cfg.Username, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running floor watch service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	aggregator := market.NewAggregator(a.newOpenSeaClient(), a.Logger)
	notifier := a.newNotifier()

	var sampleStore storage.FloorSampleStore
	var alertStore storage.AlertStore
	if store != nil {
		sampleStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, aggregator, sampleStore, alertStore, notifier, a.Logger)

	a.Logger.Info().Msg("starting floor watch service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("floor watch service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	Category  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
