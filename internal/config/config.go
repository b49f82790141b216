// Package config loads service settings from an optional YAML file and from
// environment variables, which take precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sbowman/dotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Environment variables understood by Load.
const (
	envDBURL    = "DB_URL"
	envPort     = "PORT"
	envRedisURL = "REDIS_URL"
)

var ErrUnknownStorage = errors.New("unknown storage")

type Config struct {
	Env               string `yaml:"env"`
	Storage           string `yaml:"storage"`
	ShortCodeStrategy string `yaml:"short_code_strategy"`
	HTTPServer        `yaml:"http_server"`
	Postgres          `yaml:"postgres"`
	Redis             `yaml:"redis"`
	Validation        `yaml:"validation"`
	Static            `yaml:"static"`
	Log               `yaml:"log"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           3000,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// Postgres holds connection settings. URL, when set, is used verbatim and the
// individual fields are ignored.
type Postgres struct {
	URL             string        `yaml:"url"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	DB:              "url_shortener",
	SSLMode:         "disable",
	ConnectTimeout:  10 * time.Second,
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis configures the short code lookup cache. The cache is off while URL is empty.
type Redis struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

var defaultRedis = Redis{
	CacheTTL: time.Hour,
}

func (r *Redis) Enabled() bool {
	return r.URL != ""
}

type Validation struct {
	// LookupTimeout bounds DNS lookups of submitted URLs; zero waits indefinitely.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

type Static struct {
	ViewsDir  string `yaml:"views_dir"`
	PublicDir string `yaml:"public_dir"`
	DocsFile  string `yaml:"docs_file"`
}

var defaultStatic = Static{
	ViewsDir:  "./views",
	PublicDir: "./public",
	DocsFile:  "./docs/swagger.yml",
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

var defaultLog = Log{
	Level: "info",
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and finally the environment, including a .env file in
// the working directory.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	dotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch cfg.Storage {
	case StorageMemory, StoragePostgres:
	default:
		return nil, fmt.Errorf("%s: %q: %w", op, cfg.Storage, ErrUnknownStorage)
	}

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if v := dotenv.GetString(envDBURL); v != "" {
		cfg.Postgres.URL = v
	}

	if v := dotenv.GetString(envPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envPort, v, err)
		}
		cfg.HTTPServer.Port = port
	}

	if v := dotenv.GetString(envRedisURL); v != "" {
		cfg.Redis.URL = v
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.Storage = StoragePostgres
	cfg.ShortCodeStrategy = "count"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Static = defaultStatic
	cfg.Log = defaultLog
}
