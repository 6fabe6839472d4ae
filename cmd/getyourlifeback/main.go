package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jsai2001/GetYourLifeBack/internal/api"
	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/config"
	"github.com/jsai2001/GetYourLifeBack/internal/enforce"
	"github.com/jsai2001/GetYourLifeBack/internal/lockfile"
	"github.com/jsai2001/GetYourLifeBack/internal/messaging"
	"github.com/jsai2001/GetYourLifeBack/internal/otp"
	"github.com/jsai2001/GetYourLifeBack/internal/override"
	"github.com/jsai2001/GetYourLifeBack/internal/platform"
	"github.com/jsai2001/GetYourLifeBack/internal/present"
	"github.com/jsai2001/GetYourLifeBack/internal/quota"
	"github.com/jsai2001/GetYourLifeBack/internal/quotes"
	"github.com/jsai2001/GetYourLifeBack/internal/recovery"
	"github.com/jsai2001/GetYourLifeBack/internal/session"
	"github.com/jsai2001/GetYourLifeBack/internal/store"
	"github.com/jsai2001/GetYourLifeBack/internal/twiliosms"
	"github.com/jsai2001/GetYourLifeBack/internal/usage"
	"github.com/jsai2001/GetYourLifeBack/internal/util"
	"github.com/jsai2001/GetYourLifeBack/internal/watchdog"
	"github.com/jsai2001/GetYourLifeBack/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for GetYourLifeBack state data
	DefaultStateDir = "/var/lib/getyourlifeback"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "getyourlifeback.db"
)

func main() {
	initializeLogger()

	// Load environment configuration
	cfg := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(cfg)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Only one instance may enforce at a time.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire instance lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping GetYourLifeBack with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir,
		"dsn_set", *flags.dbDSN != "",
		"api_addr", *flags.apiAddr,
		"otp_transport", *flags.otpTransport,
		"enforce_quota", *flags.enforceQuota)

	if err := run(flags); err != nil {
		slog.Error("GetYourLifeBack failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("GetYourLifeBack exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	APIAddr        string
	Timezone       string
	TimeAPIURL     string
	OTPTransport   string
	OTPRecipient   string
	TelegramChatID string
	AppGroupsPath  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	apiAddr        *string
	timezone       *string
	timeAPIURL     *string
	otpTransport   *string
	otpRecipient   *string
	telegramChatID *string
	appGroupsPath  *string
	enforceQuota   *bool
	blockingUI     *bool
	qrOutput       *string
	numeric        *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		StateDir:       os.Getenv("GYLB_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		APIAddr:        os.Getenv("API_ADDR"),
		Timezone:       os.Getenv("GYLB_TIMEZONE"),
		TimeAPIURL:     os.Getenv("TIME_API_URL"),
		OTPTransport:   os.Getenv("OTP_TRANSPORT"),
		OTPRecipient:   os.Getenv("OTP_RECIPIENT"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		AppGroupsPath:  os.Getenv("GYLB_APP_GROUPS"),
	}

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No GYLB_STATE_DIR set, using default", "default_state_dir", cfg.StateDir)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseURL)
	}
	if cfg.Timezone == "" {
		cfg.Timezone = quota.DefaultTimezone
	}
	if cfg.OTPTransport == "" {
		cfg.OTPTransport = "console"
	}

	slog.Debug("environment variables loaded",
		"GYLB_STATE_DIR", cfg.StateDir,
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"API_ADDR", cfg.APIAddr,
		"GYLB_TIMEZONE", cfg.Timezone,
		"OTP_TRANSPORT", cfg.OTPTransport,
		"OTP_RECIPIENT_SET", cfg.OTPRecipient != "",
		"GYLB_APP_GROUPS", cfg.AppGroupsPath)

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", cfg.StateDir, "state directory for GetYourLifeBack data (overrides $GYLB_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", cfg.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		apiAddr:        flag.String("api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)"),
		timezone:       flag.String("timezone", cfg.Timezone, "IANA timezone for daily quota and usage rollover (overrides $GYLB_TIMEZONE)"),
		timeAPIURL:     flag.String("time-api-url", cfg.TimeAPIURL, "authoritative time endpoint (overrides $TIME_API_URL)"),
		otpTransport:   flag.String("otp-transport", cfg.OTPTransport, "override code transport: twilio, whatsapp, telegram or console (overrides $OTP_TRANSPORT)"),
		otpRecipient:   flag.String("otp-recipient", cfg.OTPRecipient, "accountability partner phone number in E.164 form (overrides $OTP_RECIPIENT)"),
		telegramChatID: flag.String("telegram-chat-id", cfg.TelegramChatID, "accountability partner Telegram chat ID (overrides $TELEGRAM_CHAT_ID)"),
		appGroupsPath:  flag.String("app-groups", cfg.AppGroupsPath, "path to a YAML app-group profile (overrides $GYLB_APP_GROUPS)"),
		enforceQuota:   flag.Bool("enforce-quota", util.ParseBoolEnv("GYLB_ENFORCE_QUOTA", false), "reject overrides once the daily quota is spent"),
		blockingUI:     flag.Bool("blocking-overlay", util.ParseBoolEnv("GYLB_BLOCKING_OVERLAY", false), "show reminders as non-dismissable overlays"),
		qrOutput:       flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:        flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"timezone", *flags.timezone,
		"otpTransport", *flags.otpTransport,
		"enforceQuota", *flags.enforceQuota,
		"blockingUI", *flags.blockingUI)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		dbDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "db_dir", dbDir)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// run wires every module together and serves until a shutdown signal.
func run(flags Flags) error {
	ctx := context.Background()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	ck := clock.NewTamperResistant(clock.NewHTTPTimeFetcher(*flags.timeAPIURL))
	ck.Sync(ctx)

	mgr := session.NewManager(st, ck)

	messenger, err := buildMessenger(flags)
	if err != nil {
		return err
	}
	defer messenger.Stop()

	gate := otp.NewGatekeeper(st, ck, messenger, mgr)

	quotaOpts := []quota.Option{quota.WithTimezone(*flags.timezone)}
	if *flags.enforceQuota {
		quotaOpts = append(quotaOpts, quota.WithEnforcement())
	}
	tracker, err := quota.NewTracker(st, ck, quotaOpts...)
	if err != nil {
		return err
	}
	tracker.StartRolloverJob()
	defer tracker.StopRolloverJob()

	loc, err := time.LoadLocation(*flags.timezone)
	if err != nil {
		return err
	}

	presenter := present.NewTerminalPresenter()
	controller := platform.NewProcessController(ck, loc)

	quoteSource := buildQuoteSource()

	schedOpts := []enforce.Option{enforce.WithQuoteSource(quoteSource)}
	if *flags.blockingUI {
		schedOpts = append(schedOpts, enforce.WithBlockingOverlay())
	}
	sched := enforce.NewScheduler(mgr, st, ck, presenter, controller, schedOpts...)

	ovr := override.NewController(mgr, gate, tracker, sched, presenter)

	summary := usageCalculator(controller, ck, loc)
	idle := enforce.NewIdleReminder(mgr, presenter, quoteSource, summary)
	idle.Start()
	defer idle.Stop()

	dog := watchdog.NewSupervisor(mgr, st, ck, sched.Start)
	defer dog.Stop()

	// Pick the session back up if the process died mid-focus.
	rec := recovery.NewManager(mgr)
	rec.Register(recovery.NewSessionRecovery(mgr, sched, dog))
	if err := rec.RecoverAll(ctx); err != nil {
		slog.Warn("State recovery finished with errors", "error", err)
	}
	defer sched.Stop()

	apiOpts := buildAPIOptions(flags, dog)
	srv := api.NewServer(mgr, sched, ovr, tracker, apiOpts...)
	if err := srv.Start(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	slog.Info("Shutdown signal received", "signal", received.String())

	return srv.Shutdown(ctx)
}

// buildStore opens the backing store for the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		st, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// buildMessenger selects the override-code transport. Credentials come from
// the environment: TWILIO_* for twilio, TELEGRAM_BOT_TOKEN for telegram.
func buildMessenger(flags Flags) (messaging.Service, error) {
	switch *flags.otpTransport {
	case "twilio":
		client, err := twiliosms.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client, *flags.otpRecipient), nil
	case "whatsapp":
		var waOpts []whatsapp.Option
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client, *flags.otpRecipient), nil
	case "telegram":
		chatID, err := strconv.ParseInt(*flags.telegramChatID, 10, 64)
		if err != nil {
			return nil, err
		}
		svc, err := messaging.NewTelegramService(os.Getenv("TELEGRAM_BOT_TOKEN"), chatID)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		slog.Warn("No partner transport configured, override codes print to the local console")
		return messaging.NewConsoleService(), nil
	}
}

// buildQuoteSource prefers generated quotes and falls back to the static set.
func buildQuoteSource() quotes.Source {
	static := quotes.NewStaticSource()
	genai, err := quotes.NewGenAISource(static)
	if err != nil {
		slog.Debug("Generated quotes unavailable, using static set", "error", err)
		return static
	}
	return genai
}

// usageCalculator builds the daily summary over the process controller.
func usageCalculator(controller *platform.ProcessController, ck clock.Clock, loc *time.Location) *usage.Calculator {
	return usage.NewCalculator(controller, ck, loc, nil)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, dog *watchdog.Supervisor) []api.Option {
	apiOpts := []api.Option{api.WithWatchdog(dog)}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.appGroupsPath != "" {
		groups, err := config.LoadAppGroups(*flags.appGroupsPath)
		if err != nil {
			slog.Warn("Failed to load app groups, continuing without profiles", "error", err, "path", *flags.appGroupsPath)
		} else {
			apiOpts = append(apiOpts, api.WithAppGroups(groups))
		}
	}
	return apiOpts
}
