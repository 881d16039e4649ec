package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-block/internal/block/domain"
)

// AppConfig holds configuration values parsed from BLOCK_* environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// HTTPAddr is the host:port the control API listens on.
	HTTPAddr string `koanf:"http_addr" validate:"required,hostname_port"`

	// StateBackend selects the key-value store: "bolt" or "memory".
	StateBackend string `koanf:"state_backend" validate:"required,oneof=bolt memory"`

	// StateDB is the bbolt file used when StateBackend is "bolt".
	StateDB string `koanf:"state_db" validate:"required_if=StateBackend bolt"`

	// RulesCapacity is the size of the rule id range [1, N].
	RulesCapacity int `koanf:"rules_capacity" validate:"required,gte=1,lte=5000"`

	// RulesOverflow is what happens past RulesCapacity: "reject" or "truncate".
	RulesOverflow string `koanf:"rules_overflow" validate:"required,overflow_policy"`

	// RulesCacheSize bounds the match decision cache; 0 disables it.
	RulesCacheSize int `koanf:"rules_cache_size" validate:"gte=0"`

	// RulesFPRate is the target false-positive rate of the match prefilter.
	RulesFPRate float64 `koanf:"rules_fp_rate" validate:"gt=0,lt=1"`

	// RefreshScope selects which entries trigger tab reloads: "active" or "all".
	RefreshScope string `koanf:"refresh_scope" validate:"required,oneof=active all"`

	// RefreshWorkers bounds concurrent tab reloads.
	RefreshWorkers int `koanf:"refresh_workers" validate:"required,gte=1,lte=64"`

	// BrowserMode is "off", "remote" (connect to BrowserURL) or "launch".
	BrowserMode string `koanf:"browser_mode" validate:"required,oneof=off remote launch"`

	// BrowserURL is the DevTools endpoint used in "remote" mode, either a
	// ws:// URL or a host:port that serves /json/version.
	BrowserURL string `koanf:"browser_url" validate:"required_if=BrowserMode remote"`

	// ImportFile is an optional list file merged into the block list at startup.
	ImportFile string `koanf:"import_file" validate:"omitempty,file"`

	// ImportFormat is the layout of ImportFile: "plain" or "hosts".
	ImportFormat string `koanf:"import_format" validate:"required,oneof=plain hosts"`
}

// DEFAULT_APP_CONFIG is the configuration used when no overrides are set.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:            "prod",
	LogLevel:       "info",
	HTTPAddr:       "127.0.0.1:8053",
	StateBackend:   "bolt",
	StateDB:        "/var/lib/rr-block/state.db",
	RulesCapacity:  domain.DefaultRuleCapacity,
	RulesOverflow:  "reject",
	RulesCacheSize: 1000,
	RulesFPRate:    0.01,
	RefreshScope:   "active",
	RefreshWorkers: 4,
	BrowserMode:    "remote",
	BrowserURL:     "127.0.0.1:9222",
	ImportFormat:   "plain",
}

// Overflow returns the parsed RulesOverflow policy.
func (c *AppConfig) Overflow() domain.OverflowPolicy {
	p, err := domain.ParseOverflowPolicy(c.RulesOverflow)
	if err != nil {
		return domain.OverflowReject
	}
	return p
}

// validOverflowPolicy accepts anything domain.ParseOverflowPolicy does.
func validOverflowPolicy(fl validator.FieldLevel) bool {
	_, err := domain.ParseOverflowPolicy(fl.Field().String())
	return err == nil
}

// envLoader loads BLOCK_* variables, lowercasing keys and stripping the
// prefix. Every setting is a scalar, so values are taken whole: paths and
// URLs may contain spaces or commas. Replaceable in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "BLOCK_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "BLOCK_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("overflow_policy", validOverflowPolicy)
}

// Load builds an AppConfig from defaults and environment, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
