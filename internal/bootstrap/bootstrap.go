package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/fund-nav-pipeline/internal/config"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/extract"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/ports"
	"github.com/kirillkom/fund-nav-pipeline/internal/core/usecase"
	imapmail "github.com/kirillkom/fund-nav-pipeline/internal/infrastructure/mail/imap"
	natsqueue "github.com/kirillkom/fund-nav-pipeline/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fund-nav-pipeline/internal/infrastructure/sheet/xlsx"
	"github.com/kirillkom/fund-nav-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fund-nav-pipeline/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	NavRepo  ports.NavRepository
	Cursor   ports.CursorStore
	Failures ports.FailureLog
	Clean    *postgres.CleanRepository
	Queue    ports.EventBus

	Engine      *extract.Engine
	Writer      *usecase.IngestionWriter
	CalibrateUC *usecase.CalibrationUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	primaryDB, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open primary store: %w", err)
	}
	if err := postgres.EnsurePrimarySchema(ctx, primaryDB); err != nil {
		return nil, fmt.Errorf("ensure primary schema: %w", err)
	}

	cleanDB := primaryDB
	if cfg.CleanPostgresDSN != cfg.PostgresDSN {
		cleanDB, err = postgres.OpenDB(cfg.CleanPostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open clean store: %w", err)
		}
	}
	if err := postgres.EnsureCleanSchema(ctx, cleanDB); err != nil {
		return nil, fmt.Errorf("ensure clean schema: %w", err)
	}

	table, err := extract.LoadSynonyms(cfg.SynonymsPath)
	if err != nil {
		return nil, fmt.Errorf("load synonym table: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject, executor, logger)
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	navRepo := postgres.NewNavRepository(primaryDB)
	cursorRepo := postgres.NewCursorRepository(primaryDB)
	failureRepo := postgres.NewFailureRepository(primaryDB)
	cleanRepo := postgres.NewCleanRepository(cleanDB)

	writer := usecase.NewIngestionWriter(navRepo, failureRepo, logger)
	calibrateUC := usecase.NewCalibrationUseCase(navRepo, cleanRepo, cfg.NavLimit, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		NavRepo:  navRepo,
		Cursor:   cursorRepo,
		Failures: failureRepo,
		Clean:    cleanRepo,
		Queue:    queue,

		Engine:      extract.NewEngine(table),
		Writer:      writer,
		CalibrateUC: calibrateUC,

		closeFn: func() {
			queue.Close()
			if cleanDB != primaryDB {
				_ = cleanDB.Close()
			}
			_ = primaryDB.Close()
		},
	}, nil
}

// NewMailSource builds the IMAP source from config. Only the sync
// binary dials the mailbox, so this stays out of New.
func (a *App) NewMailSource() ports.MailSource {
	return imapmail.New(imapmail.Options{
		Addr:           a.Config.IMAPAddr,
		Username:       a.Config.IMAPUser,
		Password:       a.Config.IMAPPassword,
		Mailbox:        a.Config.IMAPMailbox,
		FetchPerSecond: a.Config.FetchPerSecond,
		ClientName:     a.Config.IMAPClientName,
	}, a.Logger)
}

// NewSyncUseCase wires one sync run around a mail source.
func (a *App) NewSyncUseCase(mail ports.MailSource) *usecase.SyncMailboxUseCase {
	return usecase.NewSyncMailboxUseCase(
		mail, xlsx.NewDecoder(), a.Engine, a.Cursor, a.Writer, a.Queue, a.Logger,
	)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
