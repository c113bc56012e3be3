// Package config loads settings from environment variables and an optional
// config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"go.ngs.io/nearest-api/internal/adapter/nominatim"
	"go.ngs.io/nearest-api/internal/geocode"
)

// EnvPrefix is prepended to every environment variable, e.g. NEAREST_SERVER_PORT.
const EnvPrefix = "nearest"

// Keys that can be set via config file or environment.
var Keys = []string{
	"server.port",
	"cors.allowed_origins",
	"log.level",
	"geocode.base_url",
	"geocode.user_agent",
	"geocode.country_codes",
	"geocode.timeout",
	"geocode.min_delay",
	"geocode.max_retries",
	"geocode.error_wait",
	"cache.path",
	"cache.flush_every",
	"cache.flush_interval",
	"rank.index_threshold",
}

// envAliases are unprefixed variables accepted for deployment compatibility.
var envAliases = map[string]string{
	"server.port":          "PORT",
	"cors.allowed_origins": "CORS_ALLOWED_ORIGINS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("cors.allowed_origins", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("geocode.base_url", nominatim.DefaultBaseURL)
	v.SetDefault("geocode.user_agent", "senop-nearest-app")
	d := geocode.DefaultOptions()
	v.SetDefault("geocode.country_codes", strings.Join(d.CountryCodes, ","))
	v.SetDefault("geocode.timeout", "12s")
	v.SetDefault("geocode.min_delay", d.MinDelay.String())
	v.SetDefault("geocode.max_retries", d.MaxRetries)
	v.SetDefault("geocode.error_wait", d.ErrorWait.String())
	v.SetDefault("cache.path", "geocode_cache_pre.json")
	v.SetDefault("cache.flush_every", d.FlushEvery)
	v.SetDefault("cache.flush_interval", "1m")
	v.SetDefault("rank.index_threshold", 256)
}

// Init builds a viper instance. configPath may be empty; a missing file at
// configPath is not an error, a malformed one is.
func Init(configPath string) (*viper.Viper, error) {
	v := viper.New()

	replacer := strings.NewReplacer(".", "_")
	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(replacer)

	for _, key := range Keys {
		names := []string{key, strings.ToUpper(EnvPrefix + "_" + replacer.Replace(key))}
		if alias, ok := envAliases[key]; ok {
			names = append(names, alias)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, err
		}
	}
	setDefaults(v)

	if configPath == "" {
		return v, nil
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return v, nil
}

// GeocodeSettings holds the external lookup configuration.
type GeocodeSettings struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Options   geocode.Options
}

// Geocode extracts geocoding settings.
func Geocode(v *viper.Viper) (GeocodeSettings, error) {
	opts := geocode.DefaultOptions()
	if codes := splitList(v.GetString("geocode.country_codes")); len(codes) > 0 {
		opts.CountryCodes = codes
	}
	opts.MinDelay = v.GetDuration("geocode.min_delay")
	opts.MaxRetries = v.GetInt("geocode.max_retries")
	opts.ErrorWait = v.GetDuration("geocode.error_wait")
	if n := v.GetInt("cache.flush_every"); n > 0 {
		opts.FlushEvery = n
	}
	if opts.MinDelay < 0 || opts.ErrorWait < 0 {
		return GeocodeSettings{}, fmt.Errorf("geocode delays must not be negative")
	}
	if opts.MaxRetries < 0 {
		return GeocodeSettings{}, fmt.Errorf("geocode.max_retries must not be negative")
	}

	return GeocodeSettings{
		BaseURL:   v.GetString("geocode.base_url"),
		UserAgent: v.GetString("geocode.user_agent"),
		Timeout:   v.GetDuration("geocode.timeout"),
		Options:   opts,
	}, nil
}

// AllowedOrigins returns the CORS origin list; empty allows all origins.
func AllowedOrigins(v *viper.Viper) []string {
	return splitList(v.GetString("cors.allowed_origins"))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
