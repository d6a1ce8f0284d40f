// Package config binds Rain's runtime configuration the way the
// cobra+viper repos in the corpus do: defaults set on a *viper.Viper,
// flags bound with BindPFlag, environment variables layered on top via
// AutomaticEnv with a RAIN_ prefix.
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration for rain-server and
// rain-worker.
type Config struct {
	// Debug enables check_consistency after every public mutation
	// (spec.md §5/§7).
	Debug bool
	// TestMode disables jitter in the random scheduler's worker pick and
	// enables other deterministic test hooks (spec.md §4.3).
	TestMode bool

	// ListenAddr is the single RPC control endpoint (spec.md §6) that both
	// clients and workers dial; a connection's Bootstrap decides which
	// role it plays via register_as_client/register_as_worker.
	ListenAddr    string
	DashboardAddr string

	LogDir    string
	ReadyFile string
	WorkDir   string
	LogLevel  string

	// AcceptRatePerSecond and AcceptBurst throttle the RPC accept loop
	// (SPEC_FULL.md §B, golang.org/x/time/rate).
	AcceptRatePerSecond float64
	AcceptBurst         int
}

// New builds a *viper.Viper pre-loaded with Rain's defaults, ready to have
// flags bound onto it.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("RAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("debug", "RAIN_DEBUG_MODE")
	return v
}

// SetDefaults installs Rain's configuration defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("test_mode", false)
	v.SetDefault("listen_addr", "0.0.0.0:7210")
	v.SetDefault("dashboard_addr", "0.0.0.0:8080")
	v.SetDefault("logdir", "")
	v.SetDefault("ready_file", "")
	v.SetDefault("workdir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("accept_rate_per_second", 200.0)
	v.SetDefault("accept_burst", 50)
}

// BindFlags binds a cobra command's persistent flags onto v the way the
// corpus's cobra+viper repos do (viper.BindPFlag per flag). Viper keys are
// snake_case; flags are conventionally kebab-case, so each key's
// underscores are translated to dashes before the flag lookup.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{
		"debug", "test_mode", "listen_addr", "dashboard_addr",
		"logdir", "ready_file", "workdir", "log_level",
		"accept_rate_per_second", "accept_burst",
	} {
		flagName := strings.ReplaceAll(key, "_", "-")
		if flags.Lookup(flagName) == nil {
			continue
		}
		if err := v.BindPFlag(key, flags.Lookup(flagName)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the bound configuration into a Config value.
func Load(v *viper.Viper) *Config {
	return &Config{
		Debug:               v.GetBool("debug"),
		TestMode:            v.GetBool("test_mode"),
		ListenAddr:          v.GetString("listen_addr"),
		DashboardAddr:       v.GetString("dashboard_addr"),
		LogDir:              v.GetString("logdir"),
		ReadyFile:           v.GetString("ready_file"),
		WorkDir:             v.GetString("workdir"),
		LogLevel:            v.GetString("log_level"),
		AcceptRatePerSecond: v.GetFloat64("accept_rate_per_second"),
		AcceptBurst:         v.GetInt("accept_burst"),
	}
}
