// Package app wires configuration, storage, services and the bot engine
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	coreconfig "github.com/m3rciful/vouchershop/core/config"
	coredatabase "github.com/m3rciful/vouchershop/core/database"
	"github.com/m3rciful/vouchershop/core/logger"
	coretelegram "github.com/m3rciful/vouchershop/core/telegram"
	"github.com/m3rciful/vouchershop/internal/bot"
	"github.com/m3rciful/vouchershop/internal/service"
	"github.com/m3rciful/vouchershop/internal/session"
	"github.com/m3rciful/vouchershop/internal/store"
)

// App holds everything needed to run the voucher shop bot.
type App struct {
	cfg    *coreconfig.Config
	engine *bot.Engine
	msgr   *bot.TelegramMessenger

	closers []func() error
}

// Bootstrap initializes the logger, opens the configured row store and
// builds the service graph and bot engine.
func Bootstrap(cfg *coreconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("app: logger init failed: %w", err)
	}

	a := &App{cfg: cfg}

	rs, err := a.openStore(cfg)
	if err != nil {
		return nil, err
	}

	users := store.NewUsers(rs)
	categories := store.NewCategories(rs)
	orders := store.NewOrders(rs)
	logs := store.NewLogs(rs)

	locks := service.NewKeyedMutex()
	audit := service.NewAudit(logs)
	catalog := service.NewCatalog(categories, locks)
	allocator := service.NewAllocator(categories, locks)
	userSvc := service.NewUsers(users)

	engineCfg := bot.Config{
		AdminID:        strconv.FormatInt(cfg.Telegram.AdminID, 10),
		ChannelRef:     cfg.Shop.ChannelRef,
		PaymentAddress: cfg.Shop.PaymentAddress,
		SupportContact: cfg.Shop.SupportContact,
	}
	if cfg.Shop.AuditChannelID != 0 {
		engineCfg.AuditChannelID = strconv.FormatInt(cfg.Shop.AuditChannelID, 10)
	}

	// The messenger gets its bot instance when the transport starts.
	a.msgr = bot.NewTelegramMessenger(nil, nil)
	a.engine = bot.New(engineCfg, a.msgr, session.NewStore(), catalog, userSvc, audit)
	a.engine.AttachWorkflow(service.NewWorkflow(orders, allocator, audit, a.engine))

	logger.L.With("component", "app").Info("app wired",
		slog.String("event", "bootstrap"),
		slog.String("driver", cfg.Store.Driver),
	)
	return a, nil
}

// databaseConfig converts the parsed configuration section into the
// core/database form. The two structs stay separate so core/config does not
// depend on the database package.
func databaseConfig(c coreconfig.DatabaseConfig) coredatabase.Config {
	return coredatabase.Config{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		Name:           c.Name,
		SSLMode:        c.SSLMode,
		MaxConnections: c.MaxConnections,
	}
}

func (a *App) openStore(cfg *coreconfig.Config) (store.RowStore, error) {
	switch cfg.Store.Driver {
	case coreconfig.StoreDriverPostgres:
		dbCfg := databaseConfig(cfg.Database)
		db, err := coredatabase.Connect(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("app: database init failed: %w", err)
		}
		if err := coredatabase.RunMigrations(dbCfg); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("app: migrations failed: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return store.NewPostgres(db), nil

	case coreconfig.StoreDriverSheets:
		s, err := store.NewSheets(context.Background(), cfg.Store.SpreadsheetID, cfg.Store.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("app: sheets init failed: %w", err)
		}
		return s, nil

	case coreconfig.StoreDriverMemory:
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("app: unknown store driver %q", cfg.Store.Driver)
}

// TelegramRunOptions builds the transport runtime options.
func (a *App) TelegramRunOptions() coretelegram.RunOptions {
	reg := bot.BuildRegistry(a.engine)
	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      bot.BuildRoutes(a.engine, reg, a.cfg.Telegram.AdminID),
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			a.msgr.SetBot(rt.Bot)
			a.msgr.SetDispatcher(rt.Dispatcher)
			return nil
		},
	}
}

// Messenger exposes the Telegram messenger for transport wiring.
func (a *App) Messenger() *bot.TelegramMessenger {
	return a.msgr
}

// Close releases held resources.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
