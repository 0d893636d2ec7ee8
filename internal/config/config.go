package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type TLS struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// Redis is the fan-out bus. An empty Addr runs a single process.
type Redis struct {
	Addr    string `mapstructure:"addr"`
	DB      int    `mapstructure:"db"`
	Channel string `mapstructure:"channel"`
}

type Recordings struct {
	Backend     string        `mapstructure:"backend"`
	PGURL       string        `mapstructure:"pg_url"`
	Table       string        `mapstructure:"table"`
	MaxConns    int32         `mapstructure:"max_conns"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxInflight int           `mapstructure:"max_inflight"`
}

type Limits struct {
	JoinBurst  int           `mapstructure:"join_burst"`
	JoinWindow time.Duration `mapstructure:"join_window"`
}

type Relay struct {
	RosterOnJoin bool `mapstructure:"roster_on_join"`
}

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	LogLevel      string        `mapstructure:"log_level"`
	StaticPath    string        `mapstructure:"static_path"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	LatencyPeriod time.Duration `mapstructure:"latency_period"`
	Secret        string        `mapstructure:"secret"`
	CORSAllow     []string      `mapstructure:"cors_allow"`

	TLS        TLS        `mapstructure:"tls"`
	Redis      Redis      `mapstructure:"redis"`
	Recordings Recordings `mapstructure:"recordings"`
	Limits     Limits     `mapstructure:"limits"`
	Relay      Relay      `mapstructure:"relay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("latency_period", "2s")
	v.SetDefault("secret", "dev-secret-change")
	v.SetDefault("cors_allow", []string{})

	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_file", "certs/cert.pem")
	v.SetDefault("tls.key_file", "certs/key.pem")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "jam:room:")

	v.SetDefault("recordings.backend", "none")
	v.SetDefault("recordings.pg_url", "")
	v.SetDefault("recordings.table", "recordings")
	v.SetDefault("recordings.max_conns", 10)
	v.SetDefault("recordings.timeout", "5s")
	v.SetDefault("recordings.max_inflight", 8)

	v.SetDefault("limits.join_burst", 10)
	v.SetDefault("limits.join_window", "10s")

	v.SetDefault("relay.roster_on_join", true)
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults. Any key can
// be overridden from the environment as JAM_<KEY>, e.g. JAM_REDIS_ADDR.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env))
}

func load(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("JAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("recordings", cfg.Recordings.Backend).
		Bool("fanout", cfg.Redis.Addr != "").
		Bool("tls", cfg.TLS.Enabled).
		Msg("config")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Recordings.Backend == "postgres" && c.Recordings.PGURL == "" {
		return fmt.Errorf("recordings backend postgres needs recordings.pg_url")
	}
	if c.Limits.JoinBurst < 0 {
		return fmt.Errorf("limits.join_burst must be >= 0, got %d", c.Limits.JoinBurst)
	}
	if c.Limits.JoinBurst > 0 && c.Limits.JoinWindow <= 0 {
		return fmt.Errorf("limits.join_window must be positive when join_burst is set")
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls enabled without cert_file/key_file")
	}
	return nil
}
