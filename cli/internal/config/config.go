package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/BDNK1/apiflow/cli/internal/constants"
	"github.com/BDNK1/apiflow/cli/internal/report"
	"github.com/BDNK1/apiflow/cli/internal/runner"
	"github.com/BDNK1/apiflow/cli/internal/telemetry"
	"github.com/BDNK1/apiflow/plugins/auth"
	httpplugin "github.com/BDNK1/apiflow/plugins/http"
)

var validate = validator.New()

// Config represents the apiflow.yaml structure
type Config struct {
	Runner    runner.Config     `mapstructure:",squash" yaml:",inline"`
	Log       LogConfig         `mapstructure:"log" yaml:"log"`
	HTTP      httpplugin.Config `mapstructure:"http" yaml:"http"`
	Auth      AuthConfig        `mapstructure:"auth" yaml:"auth"`
	Report    report.Config     `mapstructure:"report" yaml:"report"`
	Telemetry telemetry.Config  `mapstructure:"telemetry" yaml:"telemetry"`
	Server    ServerConfig      `mapstructure:"server" yaml:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" default:"text" validate:"oneof=text json"`
}

type AuthConfig struct {
	Profiles map[string]auth.Profile `mapstructure:"profiles" yaml:"profiles" validate:"dive"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" default:":8080" validate:"required"`
}

// envKeys are bound explicitly so overrides work even when the file omits the key.
var envKeys = []string{
	"base_url",
	"concurrency",
	"log.level",
	"log.format",
	"http.timeout",
	"http.max_retries",
	"http.debug",
	"http.retry_wait_ms",
	"report.formats",
	"report.dir",
	"telemetry.otlp_endpoint",
	"telemetry.insecure",
	"telemetry.sampling_ratio",
	"telemetry.service_name",
	"server.addr",
}

// Load reads configuration with the following priority (highest first):
//  1. Environment variables with the APIFLOW_ prefix (e.g. APIFLOW_BASE_URL)
//  2. The config file: path when given, otherwise ./apiflow.yaml if present
//  3. Built-in defaults
//
// String values of the form ${VAR} or ${VAR:default} are expanded after merging.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(constants.ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	return FromSettings(v.AllSettings())
}

// FromSettings builds a Config from a generic settings tree: env expansion, defaults,
// decoding and validation, in that order.
func FromSettings(settings map[string]any) (*Config, error) {
	expanded, err := ExpandValue(settings)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct rules on every section
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
