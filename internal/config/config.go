// Package config loads federation-core tunables from the environment,
// flags, and an optional config file via viper, the way the teacher
// loads its own top-level Configuration struct.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable named explicitly in the spec: recursion
// budget, receive delay, staleness bound, worker counts, instance
// recheck interval, dead-instance threshold, allow/block lists, and
// the unauthenticated-lookup escape hatch.
type Config struct {
	// Host is this instance's own federation domain, used to decide
	// local vs. remote authority (§3 invariants).
	Host string `mapstructure:"host"`

	// Storage backend (internal/db/bundb): "postgres" or "sqlite".
	DBDialect string `mapstructure:"db_dialect"`
	DBDSN     string `mapstructure:"db_dsn"`

	// Actor resolver (§4.2).
	RecursionBudget     int           `mapstructure:"recursion_budget"`
	ActorStaleAfter     time.Duration `mapstructure:"actor_stale_after"`
	AllowedHosts        []string      `mapstructure:"allowed_hosts"`
	BlockedHosts        []string      `mapstructure:"blocked_hosts"`
	RequireHTTPS        bool          `mapstructure:"require_https"`
	AllowUnauthedLookup bool          `mapstructure:"allow_unauthenticated_object_lookup"`

	// Shared inbox / ordered receive queue (§4.3).
	ReceiveDelay        time.Duration `mapstructure:"receive_delay"`
	InboxHighWaterMark  int           `mapstructure:"inbox_high_water_mark"`
	InboxWorkerCount    int           `mapstructure:"inbox_worker_count"`
	InboxMaxBodyBytes   int64         `mapstructure:"inbox_max_body_bytes"`
	InboxRequestTimeout time.Duration `mapstructure:"inbox_request_timeout"`
	WorkerExitTimeout   time.Duration `mapstructure:"worker_exit_timeout"`

	// Signing / verification (§4.8).
	ClockSkew time.Duration `mapstructure:"clock_skew"`

	// Outbound send manager (§4.6, §4.7).
	InstanceRecheckInterval time.Duration `mapstructure:"instance_recheck_interval"`
	SendBatchSize           int           `mapstructure:"send_batch_size"`
	SendPerInstanceConcurrency int       `mapstructure:"send_per_instance_concurrency"`
	BackoffBase             time.Duration `mapstructure:"backoff_base"`
	BackoffCap              time.Duration `mapstructure:"backoff_cap"`
	DeadInstanceThreshold   time.Duration `mapstructure:"dead_instance_threshold"`
	HTTPClientTimeout       time.Duration `mapstructure:"http_client_timeout"`

	ProcessCount int `mapstructure:"process_count"`
	ProcessIndex int `mapstructure:"process_index"`

	// TLS for the external HTTP surface (shared inbox, actor/activity
	// GETs). When enabled, certificates for Host are obtained and
	// renewed automatically rather than read from disk.
	AutocertEnabled  bool   `mapstructure:"autocert_enabled"`
	AutocertCacheDir string `mapstructure:"autocert_cache_dir"`
}

// Default returns the configuration with every tunable set to the
// value named in the spec.
func Default() *Config {
	return &Config{
		DBDialect:           "sqlite",
		DBDSN:               "fedcore.db",

		RecursionBudget:     25,
		ActorStaleAfter:     24 * time.Hour,
		RequireHTTPS:        true,
		AllowUnauthedLookup: false,

		ReceiveDelay:        time.Second,
		InboxHighWaterMark:  5,
		InboxWorkerCount:    0, // 0 = GOMAXPROCS, resolved at startup
		InboxMaxBodyBytes:   5 << 20,
		InboxRequestTimeout: 30 * time.Second,
		WorkerExitTimeout:   30 * time.Second,

		ClockSkew: 10 * time.Minute,

		InstanceRecheckInterval:     60 * time.Second,
		SendBatchSize:               50,
		SendPerInstanceConcurrency:  1,
		BackoffBase:                 60 * time.Second,
		BackoffCap:                  time.Hour,
		DeadInstanceThreshold:       72 * time.Hour,
		HTTPClientTimeout:           10 * time.Second,

		ProcessCount: 1,
		ProcessIndex: 1,

		AutocertEnabled:  false,
		AutocertCacheDir: "/var/lib/fedcore/autocert",
	}
}

// Load reads configuration from (in ascending priority) defaults, a
// config file named "fedcore" on the given search paths, and
// FEDCORE_-prefixed environment variables, mirroring the teacher's
// viper-based load order.
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("fedcore")
	v.SetEnvPrefix("FEDCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	cfg := Default()
	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("db_dialect", cfg.DBDialect)
	v.SetDefault("db_dsn", cfg.DBDSN)
	v.SetDefault("recursion_budget", cfg.RecursionBudget)
	v.SetDefault("actor_stale_after", cfg.ActorStaleAfter)
	v.SetDefault("require_https", cfg.RequireHTTPS)
	v.SetDefault("allow_unauthenticated_object_lookup", cfg.AllowUnauthedLookup)
	v.SetDefault("receive_delay", cfg.ReceiveDelay)
	v.SetDefault("inbox_high_water_mark", cfg.InboxHighWaterMark)
	v.SetDefault("inbox_worker_count", cfg.InboxWorkerCount)
	v.SetDefault("inbox_max_body_bytes", cfg.InboxMaxBodyBytes)
	v.SetDefault("inbox_request_timeout", cfg.InboxRequestTimeout)
	v.SetDefault("worker_exit_timeout", cfg.WorkerExitTimeout)
	v.SetDefault("clock_skew", cfg.ClockSkew)
	v.SetDefault("instance_recheck_interval", cfg.InstanceRecheckInterval)
	v.SetDefault("send_batch_size", cfg.SendBatchSize)
	v.SetDefault("send_per_instance_concurrency", cfg.SendPerInstanceConcurrency)
	v.SetDefault("backoff_base", cfg.BackoffBase)
	v.SetDefault("backoff_cap", cfg.BackoffCap)
	v.SetDefault("dead_instance_threshold", cfg.DeadInstanceThreshold)
	v.SetDefault("http_client_timeout", cfg.HTTPClientTimeout)
	v.SetDefault("process_count", cfg.ProcessCount)
	v.SetDefault("process_index", cfg.ProcessIndex)
	v.SetDefault("autocert_enabled", cfg.AutocertEnabled)
	v.SetDefault("autocert_cache_dir", cfg.AutocertCacheDir)
}
