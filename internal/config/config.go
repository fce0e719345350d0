package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

type Config struct {
	HTTPAddr          string        `mapstructure:"http_addr"`
	LogLevel          string        `mapstructure:"log_level"`
	DatabaseURL       string        `mapstructure:"database_url"`
	CartDir           string        `mapstructure:"cart_dir"`
	PageSize          int           `mapstructure:"page_size"`
	SessionMax        int           `mapstructure:"session_max"`
	SessionIdleTTL    time.Duration `mapstructure:"session_idle_ttl"`
	PriceCeiling      string        `mapstructure:"price_ceiling"`
	SeedDemo          bool          `mapstructure:"seed_demo"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AdminEmail        string        `mapstructure:"admin_email"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsToken      string        `mapstructure:"metrics_token"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("cart_dir", "")
	v.SetDefault("page_size", 8)
	v.SetDefault("session_max", 10000)
	v.SetDefault("session_idle_ttl", "30m")
	v.SetDefault("price_ceiling", "10000")
	v.SetDefault("seed_demo", true)
	v.SetDefault("jwt_secret", "dev-secret")
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password_hash", "")
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_token", "")
}

// Load reads, in increasing priority: defaults, the optional --config file,
// a .env file in the working directory and STOREFRONT_* environment variables.
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	file := fs.String("config", "", "config file (yaml, json or toml)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *file != "" {
		v.SetConfigFile(*file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", *file, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page_size must be > 0, got %d", c.PageSize))
	}
	if c.SessionMax < 1 {
		errs = append(errs, fmt.Errorf("session_max must be > 0, got %d", c.SessionMax))
	}
	if c.SessionIdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("session_idle_ttl must be > 0, got %s", c.SessionIdleTTL))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr required"))
	}
	if c.AdminEmail != "" && c.AdminPasswordHash == "" {
		errs = append(errs, errors.New("admin_password_hash required when admin_email is set"))
	}
	return errors.Join(errs...)
}
