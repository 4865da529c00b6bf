package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"deskshell/internal/environment"
	"deskshell/pkg/logging"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osUserConfigDir = os.UserConfigDir
var osGetwd = os.Getwd
var osTempDir = os.TempDir
var osLookupEnv = os.LookupEnv

const (
	appName          = "deskshell"
	userConfigDir    = ".config/deskshell"
	projectConfigDir = ".deskshell"
	configFileName   = "config.yaml"
	userSettingsFile = "userConfig.json"
)

// LoadConfig loads the configuration by layering default, user, and project settings.
func LoadConfig() (DeskshellConfig, error) {
	return LoadConfigWithOverride("")
}

// LoadConfigWithOverride layers an explicit file on top of the default, user
// and project configuration. An empty path skips the extra layer; a path that
// does not exist is an error.
func LoadConfigWithOverride(overridePath string) (DeskshellConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else if err := applyOptionalLayer(&config, userConfigPath); err != nil {
		return DeskshellConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine project config path: %v", err)
	} else if err := applyOptionalLayer(&config, projectConfigPath); err != nil {
		return DeskshellConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
	}

	if overridePath != "" {
		if err := applyLayer(&config, overridePath); err != nil {
			return DeskshellConfig{}, fmt.Errorf("error loading config from %s: %w", overridePath, err)
		}
	}

	if err := finalize(&config); err != nil {
		return DeskshellConfig{}, err
	}
	if err := config.Validate(); err != nil {
		return DeskshellConfig{}, err
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func applyOptionalLayer(config *DeskshellConfig, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return applyLayer(config, path)
}

// applyLayer decodes path on top of config. Fields absent from the file keep
// their current value, maps are merged key by key and lists are replaced.
func applyLayer(config *DeskshellConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}
	logging.Debug("Config", "Applied configuration layer %s", path)
	return nil
}

// finalize expands environment references and fills derived paths.
func finalize(c *DeskshellConfig) error {
	expand := func(s string) string {
		return expandHome(environment.Expand(s, osLookupEnv))
	}

	c.Host = expand(c.Host)
	c.Directories.Base = expand(c.Directories.Base)
	c.Directories.AppData = expand(c.Directories.AppData)
	c.Directories.Temp = expand(c.Directories.Temp)
	c.Directories.UserConfig = expand(c.Directories.UserConfig)

	if c.Directories.AppData == "" {
		dir, err := osUserConfigDir()
		if err != nil {
			return fmt.Errorf("could not determine application data directory: %w", err)
		}
		c.Directories.AppData = filepath.Join(dir, appName)
	}
	if c.Directories.UserConfig == "" {
		c.Directories.UserConfig = filepath.Join(c.Directories.AppData, userSettingsFile)
	}

	for _, svc := range []*ServiceDefinition{&c.Backend, &c.Frontend} {
		svc.WorkingDir = expand(svc.WorkingDir)
		for _, l := range []*LaunchDefinition{&svc.Dev, &svc.Packaged} {
			l.Command = expand(l.Command)
			l.WorkingDir = expand(l.WorkingDir)
		}
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := osUserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ResolveDir returns dir relative to the base directory unless it is absolute.
func (c DeskshellConfig) ResolveDir(dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Directories.Base, dir)
}

// Validate reports the first configuration error.
func (c DeskshellConfig) Validate() error {
	if c.Mode != ModeDev && c.Mode != ModePackaged {
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeDev, ModePackaged)
	}
	if c.Ports.MaxAttempts < 0 {
		return fmt.Errorf("ports.maxAttempts must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdownTimeout must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := c.Logging.Format; f != "" && f != string(logging.FormatText) && f != string(logging.FormatJSON) {
		return fmt.Errorf("logging.format %q: must be text or json", f)
	}

	for name, svc := range map[string]ServiceDefinition{"backend": c.Backend, "frontend": c.Frontend} {
		l := svc.Launch(c.Mode)
		if l.Command == "" {
			return fmt.Errorf("%s: no command for mode %s", name, c.Mode)
		}
		if !l.Stop.Valid() {
			return fmt.Errorf("%s: invalid stop strategy %q", name, l.Stop)
		}
		switch svc.Probe.Type {
		case "", "tcp", "http", "none":
		default:
			return fmt.Errorf("%s: invalid probe type %q", name, svc.Probe.Type)
		}
		if svc.ReadyTimeout < 0 || svc.StopTimeout < 0 {
			return fmt.Errorf("%s: timeouts must not be negative", name)
		}
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
