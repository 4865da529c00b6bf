package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"deskshell/internal/config"
	"deskshell/pkg/logging"

	"github.com/joho/godotenv"
)

// Application is the main application structure that bootstraps and runs deskshell
type Application struct {
	config   *Config
	services *Services
}

// NewApplication creates and initializes a new application instance
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	// Configure logging based on flags until the configuration is known
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	initLogging(cfg, appLogLevel, "")

	if err := loadEnvFiles(cfg.EnvFiles); err != nil {
		logging.Error("Bootstrap", err, "Failed to load environment files")
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	deskCfg, err := loadConfig(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load deskshell configuration")
		return nil, fmt.Errorf("failed to load deskshell configuration: %w", err)
	}
	cfg.DeskshellConfig = &deskCfg

	if !cfg.Debug {
		level, _ := logging.ParseLevel(deskCfg.Logging.Level)
		initLogging(cfg, level, logging.Format(deskCfg.Logging.Format))
	}
	logging.Info("Bootstrap", "Running in %s mode", deskCfg.Mode)

	if err := prepareDirectories(deskCfg.Directories); err != nil {
		logging.Error("Bootstrap", err, "Failed to prepare directories")
		return nil, fmt.Errorf("failed to prepare directories: %w", err)
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// LoadDeskshellConfig loads the layered configuration and applies the
// command line overrides in cfg without starting anything.
func LoadDeskshellConfig(cfg *Config) (config.DeskshellConfig, error) {
	return loadConfig(cfg)
}

func loadConfig(cfg *Config) (config.DeskshellConfig, error) {
	deskCfg, err := config.LoadConfigWithOverride(cfg.ConfigPath)
	if err != nil {
		return config.DeskshellConfig{}, err
	}
	if cfg.ConfigPath != "" {
		logging.Info("Bootstrap", "Loaded configuration with override: %s", cfg.ConfigPath)
	} else {
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}

	if cfg.Mode != "" && cfg.Mode != deskCfg.Mode {
		deskCfg.Mode = cfg.Mode
		if err := deskCfg.Validate(); err != nil {
			return config.DeskshellConfig{}, err
		}
	}
	return deskCfg, nil
}

func initLogging(cfg *Config, level logging.LogLevel, format logging.Format) {
	if cfg.JSONLogs {
		format = logging.FormatJSON
	}
	if format == "" {
		format = logging.FormatText
	}
	logging.Init(format, level, cfg.Output)
}

// loadEnvFiles loads dotenv files without overriding variables already set.
func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		logging.Debug("Bootstrap", "Loaded environment file %s", f)
	}
	return nil
}

func prepareDirectories(d config.Directories) error {
	for _, dir := range []string{d.AppData, d.Temp, filepath.Dir(d.UserConfig)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the services, presents them and blocks until the application
// is asked to close. Services are always stopped before Run returns.
func (a *Application) Run(ctx context.Context) error {
	return runCLIMode(ctx, a.services.Hooks(), a.services)
}

// Services exposes the wired components.
func (a *Application) Services() *Services {
	return a.services
}
