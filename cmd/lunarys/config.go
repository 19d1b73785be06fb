package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/lunarys"
	"github.com/muesli/termenv"
	"github.com/spf13/viper"
)

const (
	configDirName = ".lunarys"
	envPrefix     = "LUNARYS"
)

// config is the resolved set of settings.
type config struct {
	BaseURL   string
	Model     lunarys.Model
	Stream    bool
	Locale    lunarys.Locale
	Theme     lunarys.Theme
	Timeout   time.Duration
	LogLevel  string
	LogFile   string
	LogFormat string
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, configDirName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("model", string(lunarys.DefaultModel))
	v.SetDefault("stream", true)
	v.SetDefault("locale", "en")
	v.SetDefault("theme", "auto")
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(configDir(), "lunarys.log"))
	v.SetDefault("log.format", "text")
}

// readConfig loads the config file and environment into v. A missing
// default config file is not an error; a missing explicit one is.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig validates the settings held by v.
func loadConfig(v *viper.Viper) (config, error) {
	model := lunarys.Model(v.GetString("model"))
	if !model.Valid() {
		return config{}, fmt.Errorf("unknown model %q: %w", model, lunarys.ErrValidation)
	}
	locale, err := lunarys.LocaleByName(v.GetString("locale"))
	if err != nil {
		return config{}, err
	}
	theme, err := resolveTheme(v.GetString("theme"))
	if err != nil {
		return config{}, err
	}
	timeout := v.GetDuration("timeout")
	if timeout < 0 {
		return config{}, fmt.Errorf("negative timeout %s: %w", timeout, lunarys.ErrValidation)
	}
	baseURL := strings.TrimRight(v.GetString("base_url"), "/")
	if baseURL == "" {
		return config{}, fmt.Errorf("empty base_url: %w", lunarys.ErrValidation)
	}

	return config{
		BaseURL:   baseURL,
		Model:     model,
		Stream:    v.GetBool("stream"),
		Locale:    locale,
		Theme:     theme,
		Timeout:   timeout,
		LogLevel:  v.GetString("log.level"),
		LogFile:   v.GetString("log.file"),
		LogFormat: v.GetString("log.format"),
	}, nil
}

// resolveTheme maps a theme name to a Theme. "auto" asks the terminal:
// no color support means plain, otherwise the background decides.
func resolveTheme(name string) (lunarys.Theme, error) {
	if name != "auto" {
		return lunarys.ThemeByName(name)
	}
	if termenv.EnvColorProfile() == termenv.Ascii {
		return lunarys.PlainTheme(), nil
	}
	if termenv.HasDarkBackground() {
		return lunarys.DefaultTheme(), nil
	}
	return lunarys.LightTheme(), nil
}
