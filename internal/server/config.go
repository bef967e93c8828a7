package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dbpkg "github.com/benedict2310/storepulse/internal/db"
	"github.com/benedict2310/storepulse/internal/dedup"
)

const (
	DefaultBindAddr = "127.0.0.1"
	DefaultPort     = 9410
	DefaultDataDir  = "/var/lib/pulsed"
	DefaultLogLevel = "info"

	DefaultMaxBodyBytes     = 64 << 10
	DefaultRateLimit        = 120
	DefaultRateLimitWindow  = time.Minute
	DefaultDedupSweep       = time.Minute
	DefaultListLimit        = 500
	DefaultMaxListLimit     = 5000
	DefaultDBBusyTimeoutMS  = 5000
	DefaultDBMaxConnections = 5

	DedupBackendMemory = "memory"
	DedupBackendRedis  = "redis"
)

type Config struct {
	BindAddr      string          `yaml:"bind"`
	Port          int             `yaml:"port"`
	DataDir       string          `yaml:"dataDir"`
	LogLevel      string          `yaml:"logLevel"`
	AdminSecret   string          `yaml:"adminSecret,omitempty"`
	RetentionDays int             `yaml:"retentionDays"`
	// TrustProxy honors X-Forwarded-For / X-Real-IP. Enable only behind a
	// reverse proxy that overwrites those headers.
	TrustProxy    bool            `yaml:"trustProxy"`
	DB            DBConfig        `yaml:"db"`
	CORS          CORSConfig      `yaml:"cors"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`
	Ingest        IngestConfig    `yaml:"ingest"`
	Dedup         DedupConfig     `yaml:"dedup"`
	List          ListConfig      `yaml:"list"`
	Summary       SummaryConfig   `yaml:"summary"`
}

type DBConfig struct {
	Driver string `yaml:"driver"`
	// Path defaults to events.sqlite under DataDir.
	Path string `yaml:"path,omitempty"`
	URL  string `yaml:"url,omitempty"`
	WAL  bool   `yaml:"wal"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// RateLimitConfig bounds /collect per client IP. Requests <= 0 disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type IngestConfig struct {
	MaxBodyBytes int `yaml:"maxBodyBytes"`
}

type DedupConfig struct {
	Backend       string        `yaml:"backend"`
	Window        time.Duration `yaml:"window"`
	RedisURL      string        `yaml:"redisURL,omitempty"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type ListConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// SummaryConfig caps how many envelopes a summary reads; 0 means no cap.
type SummaryConfig struct {
	MaxRows int `yaml:"maxRows"`
}

func DefaultConfig() Config {
	return Config{
		BindAddr: DefaultBindAddr,
		Port:     DefaultPort,
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		DB: DBConfig{
			Driver: string(dbpkg.DialectSQLite),
			WAL:    true,
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: RateLimitConfig{
			Requests: DefaultRateLimit,
			Window:   DefaultRateLimitWindow,
		},
		Ingest: IngestConfig{MaxBodyBytes: DefaultMaxBodyBytes},
		Dedup: DedupConfig{
			Backend:       DedupBackendMemory,
			Window:        dedup.DefaultWindow,
			SweepInterval: DefaultDedupSweep,
		},
		List: ListConfig{
			DefaultLimit: DefaultListLimit,
			MaxLimit:     DefaultMaxListLimit,
		},
	}
}

func LoadConfig(configPath string) (Config, error) {
	cfg, err := ReadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadConfig layers the config file and PULSED_* environment over the
// defaults without validating, so callers can apply their own overrides first.
func ReadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()
	driverSet := false

	if strings.TrimSpace(configPath) != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
		var explicit struct {
			DB struct {
				Driver *string `yaml:"driver"`
			} `yaml:"db"`
		}
		if err := yaml.Unmarshal(b, &explicit); err == nil && explicit.DB.Driver != nil {
			driverSet = true
		}
	}

	if err := applyEnv(&cfg, driverSet); err != nil {
		return cfg, err
	}
	cfg.AdminSecret = strings.TrimSpace(cfg.AdminSecret)
	cfg.Dedup.Backend = strings.ToLower(strings.TrimSpace(cfg.Dedup.Backend))
	return cfg, nil
}

// applyEnv layers PULSED_* overrides onto cfg. A database URL from the
// environment selects postgres unless a driver was named explicitly.
func applyEnv(cfg *Config, driverSet bool) error {
	if v := envValue("PULSED_BIND"); v != "" {
		cfg.BindAddr = v
	}
	if v := envValue("PULSED_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PULSED_PORT=%q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := envValue("PULSED_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := envValue("PULSED_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := envValue("PULSED_ADMIN_SECRET"); v != "" {
		cfg.AdminSecret = v
	}
	if v := envValue("PULSED_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PULSED_RETENTION_DAYS=%q: %w", v, err)
		}
		cfg.RetentionDays = days
	}
	if v := envValue("PULSED_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
		driverSet = true
	}
	if v := envValue("PULSED_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	urlFromEnv := false
	if v := envValue("DATABASE_URL"); v != "" {
		cfg.DB.URL = v
		urlFromEnv = true
	}
	if v := envValue("PULSED_DB_URL"); v != "" {
		cfg.DB.URL = v
		urlFromEnv = true
	}
	if urlFromEnv && !driverSet {
		cfg.DB.Driver = string(dbpkg.DialectPostgres)
	}
	if v := envValue("PULSED_DB_WAL"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse PULSED_DB_WAL=%q: %w", v, err)
		}
		cfg.DB.WAL = parsed
	}
	if v := envValue("PULSED_TRUST_PROXY"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse PULSED_TRUST_PROXY=%q: %w", v, err)
		}
		cfg.TrustProxy = parsed
	}
	if v := envValue("PULSED_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitList(v)
	}
	if v := envValue("PULSED_DEDUP_BACKEND"); v != "" {
		cfg.Dedup.Backend = v
	}
	if v := envValue("PULSED_REDIS_URL"); v != "" {
		cfg.Dedup.RedisURL = v
	}
	return nil
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BindAddr) == "" {
		return fmt.Errorf("bind address is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in range 0..65535")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	dialect, err := dbpkg.ParseDialect(c.DB.Driver)
	if err != nil {
		return err
	}
	switch dialect {
	case dbpkg.DialectSQLite:
		if strings.TrimSpace(c.DB.Path) == "" && strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("db.path or dataDir is required for sqlite")
		}
	case dbpkg.DialectPostgres:
		if strings.TrimSpace(c.DB.URL) == "" {
			return fmt.Errorf("db.url is required for postgres")
		}
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retentionDays must be >= 0")
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rateLimit.window must be positive when rateLimit.requests is set")
	}
	if c.Ingest.MaxBodyBytes < 0 {
		return fmt.Errorf("ingest.maxBodyBytes must be >= 0")
	}
	switch c.Dedup.Backend {
	case "", DedupBackendMemory:
	case DedupBackendRedis:
		if strings.TrimSpace(c.Dedup.RedisURL) == "" {
			return fmt.Errorf("dedup.redisURL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported dedup backend %q (expected memory|redis)", c.Dedup.Backend)
	}
	if c.Dedup.Window < 0 || c.Dedup.SweepInterval < 0 {
		return fmt.Errorf("dedup durations must be >= 0")
	}
	if c.List.DefaultLimit < 0 || c.List.MaxLimit < 0 {
		return fmt.Errorf("list limits must be >= 0")
	}
	if c.Summary.MaxRows < 0 {
		return fmt.Errorf("summary.maxRows must be >= 0")
	}
	return nil
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// DBOptions resolves the store connection settings. Validate must pass first.
func (c Config) DBOptions() dbpkg.Options {
	dialect, _ := dbpkg.ParseDialect(c.DB.Driver)
	path := strings.TrimSpace(c.DB.Path)
	if path == "" && dialect == dbpkg.DialectSQLite {
		path = filepath.Join(c.DataDir, "events.sqlite")
	}
	return dbpkg.Options{
		Dialect:       dialect,
		Path:          path,
		URL:           strings.TrimSpace(c.DB.URL),
		EnableWAL:     c.DB.WAL,
		BusyTimeoutMS: DefaultDBBusyTimeoutMS,
		MaxOpenConns:  DefaultDBMaxConnections,
		MaxIdleConns:  DefaultDBMaxConnections,
	}
}

func (c Config) maxBodyBytes() int64 {
	// 0 means "use server default", not "unlimited".
	if c.Ingest.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return int64(c.Ingest.MaxBodyBytes)
}

func (c Config) listLimits() (defaultLimit, maxLimit int) {
	defaultLimit, maxLimit = c.List.DefaultLimit, c.List.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxListLimit
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = min(DefaultListLimit, maxLimit)
	}
	return defaultLimit, maxLimit
}
