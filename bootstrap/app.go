package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casetrack/access"
	"casetrack/api"
	"casetrack/audit"
	"casetrack/config"
	"casetrack/core"
	"casetrack/hooks"
	"casetrack/service"
	"casetrack/storage"
	"casetrack/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// App represents the casetrack application with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	SQLite          *storage.SQLite
	CaseStorage     core.CaseStorage
	TaskStorage     core.TaskStorage
	IOCStorage      core.IOCStorage
	UserStorage     core.UserStorage
	GrantStorage    core.GrantStorage
	ActivityStorage core.ActivityStorage

	// Pipeline
	Access     *access.Controller
	Hooks      *hooks.Dispatcher
	Tracker    *audit.Tracker
	Publisher  *audit.RedisPublisher
	Cases      *service.CaseService
	Tasks      *service.TaskService
	IOCs       *service.IOCService
	APIServer  *api.API
	shutdownCh chan struct{}
}

// FirstRunResult reports what the first-run setup did.
type FirstRunResult struct {
	IsFirstRun    bool
	AdminCreated  bool
	AdminUsername string
	AdminPassword string
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		shutdownCh: make(chan struct{}),
	}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("casetrack starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	sugar.Info("Running pre-flight checks...")
	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	sqlite, err := storage.NewSQLite(cfg.GetSQLitePath(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	app.SQLite = sqlite

	if err := app.initStorage(sqlite, sugar); err != nil {
		sqlite.Close()
		return nil, err
	}

	// Authorization, hooks, audit
	app.Access = access.NewController(app.GrantStorage, sugar)

	app.Hooks = hooks.NewDispatcher(cfg.Hooks.Budget, sugar)
	RegisterBuiltinHooks(app.Hooks)

	if cfg.Activity.Redis.Enabled {
		publisher, err := audit.Connect(ctx, cfg.Activity.Redis.Addr, cfg.Activity.Redis.Password, cfg.Activity.Redis.DB, sugar)
		if err != nil {
			sugar.Errorw("Activity stream publisher unavailable, continuing without it",
				"addr", cfg.Activity.Redis.Addr, "error", err)
		} else {
			app.Publisher = publisher
			sugar.Infow("Activity stream publisher connected", "addr", cfg.Activity.Redis.Addr)
		}
	}

	var publisher audit.Publisher
	if app.Publisher != nil {
		publisher = app.Publisher
	}
	app.Tracker = audit.NewTracker(app.ActivityStorage, publisher, sugar)

	// Business operation services
	app.Cases = service.NewCaseService(app.CaseStorage, app.Hooks, app.Tracker, sugar)
	app.Tasks = service.NewTaskService(app.TaskStorage, app.CaseStorage, app.Hooks, app.Tracker, sugar)
	app.IOCs = service.NewIOCService(app.IOCStorage, app.CaseStorage, app.Hooks, app.Tracker, sugar)

	app.APIServer = api.NewAPI(app.Cases, app.Tasks, app.IOCs, app.Tracker,
		app.UserStorage, app.GrantStorage, app.Access, cfg, sugar)

	firstRunResult, err := app.runFirstRunSetup(ctx)
	if err != nil {
		sugar.Errorw("First-run setup encountered errors", "error", err)
	} else if firstRunResult.IsFirstRun {
		sugar.Infow("First-run setup completed",
			"admin_created", firstRunResult.AdminCreated,
			"admin_username", firstRunResult.AdminUsername)
	}

	return app, nil
}

// initStorage opens the per-entity storage layers over the shared pools.
func (a *App) initStorage(sqlite *storage.SQLite, sugar *zap.SugaredLogger) error {
	var err error
	if a.CaseStorage, err = storage.NewSQLiteCaseStorage(sqlite, sugar); err != nil {
		return fmt.Errorf("failed to initialize case storage: %w", err)
	}
	if a.TaskStorage, err = storage.NewSQLiteTaskStorage(sqlite, sugar); err != nil {
		return fmt.Errorf("failed to initialize task storage: %w", err)
	}
	if a.IOCStorage, err = storage.NewSQLiteIOCStorage(sqlite, sugar); err != nil {
		return fmt.Errorf("failed to initialize ioc storage: %w", err)
	}
	if a.UserStorage, err = storage.NewSQLiteUserStorage(sqlite, sugar); err != nil {
		return fmt.Errorf("failed to initialize user storage: %w", err)
	}
	if a.GrantStorage, err = storage.NewSQLiteGrantStorage(sqlite, sugar); err != nil {
		return fmt.Errorf("failed to initialize grant storage: %w", err)
	}
	if a.ActivityStorage, err = storage.NewSQLiteActivityStorage(sqlite, sugar); err != nil {
		return fmt.Errorf("failed to initialize activity storage: %w", err)
	}
	return nil
}

// Start starts the API server in the background.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.APIServer.Start(); err != nil {
			a.Sugar.Errorw("API server stopped unexpectedly", "error", err)
		}
	}()

	a.Sugar.Infow("API server started",
		"host", a.Config.API.Host,
		"port", a.Config.API.Port)
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components: API first so no new
// operations enter the pipeline, then the activity publisher, then storage.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if a.APIServer != nil {
		if err := a.APIServer.Shutdown(ctx); err != nil {
			a.Sugar.Errorw("API shutdown error", "error", err)
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Sugar.Errorw("Activity publisher close error", "error", err)
		}
	}

	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			a.Sugar.Errorw("SQLite close error", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
}

// runFirstRunSetup creates the initial server administrator when the user
// table is empty. The generated password is printed to stderr exactly once.
func (a *App) runFirstRunSetup(ctx context.Context) (*FirstRunResult, error) {
	result := &FirstRunResult{}

	users, err := a.UserStorage.ListUsers(ctx)
	if err != nil || len(users) == 0 {
		result.IsFirstRun = true
	}
	if !result.IsFirstRun {
		return result, nil
	}

	a.Sugar.Info("========================================")
	a.Sugar.Info("FIRST RUN DETECTED - Running initial setup")
	a.Sugar.Info("========================================")

	adminUsername := "admin"
	adminPassword, err := GenerateSecurePassword(24)
	if err != nil {
		return result, fmt.Errorf("failed to generate admin password: %w", err)
	}

	hashedPassword, err := util.HashPassword(adminPassword, a.Config.Auth.BcryptCost)
	if err != nil {
		return result, fmt.Errorf("failed to hash admin password: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	adminUser := &core.User{
		ID:           uuid.NewString(),
		Username:     adminUsername,
		PasswordHash: hashedPassword,
		Permissions:  []core.Permission{core.PermStandardUser, core.PermServerAdministrator},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.UserStorage.CreateUser(setupCtx, adminUser); err != nil {
		a.Sugar.Warnw("Failed to create admin user", "error", err)
		return result, nil
	}

	result.AdminCreated = true
	result.AdminUsername = adminUsername
	result.AdminPassword = adminPassword

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "     DEFAULT ADMIN CREDENTIALS\n")
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "  Username: %s\n", adminUsername)
	fmt.Fprintf(os.Stderr, "  Password: %s\n", adminPassword)
	fmt.Fprintf(os.Stderr, "========================================\n")
	fmt.Fprintf(os.Stderr, "  IMPORTANT: This password will NOT be\n")
	fmt.Fprintf(os.Stderr, "  shown again! Store it securely now.\n")
	fmt.Fprintf(os.Stderr, "========================================\n\n")

	a.Sugar.Info("First-run setup completed")
	return result, nil
}
