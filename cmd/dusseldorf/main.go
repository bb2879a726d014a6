package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/dusseldorf/internal/api"
	"github.com/org/dusseldorf/internal/listener"
	"github.com/org/dusseldorf/internal/listener/dnssrv"
	"github.com/org/dusseldorf/internal/listener/smtpsrv"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr           string `yaml:"listen_addr"`
	TLSCertFile          string `yaml:"tls_cert"`
	TLSKeyFile           string `yaml:"tls_key"`
	DBUrl                string `yaml:"db_url"`
	MigrationsDir        string `yaml:"migrations_dir"`
	SessionExpireMinutes int    `yaml:"session_expire_minutes"`
	LogLevel             string `yaml:"log_level"`

	DNS struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"dns"`

	SMTP struct {
		Enabled     bool     `yaml:"enabled"`
		Hostname    string   `yaml:"hostname"`
		Addrs       []string `yaml:"addrs"`
		TLSAddr     string   `yaml:"tls_addr"`
		TLSCertFile string   `yaml:"tls_cert"`
		TLSKeyFile  string   `yaml:"tls_key"`
	} `yaml:"smtp"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("DSSLDRF_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:           ":8080",
		MigrationsDir:        "migrations",
		SessionExpireMinutes: 60,
		LogLevel:             "info",
	}
	cfg.DNS.Enabled = true
	cfg.DNS.Addr = ":53"
	cfg.SMTP.Enabled = true
	cfg.SMTP.Hostname = "dusseldorf"
	cfg.SMTP.Addrs = []string{":25", ":587"}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("DSSLDRF_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DSSLDRF_CONNSTR"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("DSSLDRF_TLS_CRT_FILE"); v != "" {
		cfg.SMTP.TLSCertFile = v
	}
	if v := os.Getenv("DSSLDRF_TLS_KEY_FILE"); v != "" {
		cfg.SMTP.TLSKeyFile = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DBUrl == "" {
		log.Fatal().Msg("db_url must be configured (or DSSLDRF_CONNSTR env var)")
	}

	ctx := context.Background()

	// Connect to database
	store, err := storage.NewPostgresBackend(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	// Run migrations
	if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	srv := api.NewServer(store, api.Config{
		ListenAddr:  cfg.ListenAddr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
		SessionTTL:  time.Duration(cfg.SessionExpireMinutes) * time.Minute,
	})

	recorder := listener.NewRecorder(store)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, runCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && runCtx.Err() == nil {
			return err
		}
		return nil
	})

	if cfg.DNS.Enabled {
		dnsServer := dnssrv.NewServer(store, recorder, cfg.DNS.Addr)
		g.Go(func() error { return dnsServer.Run(runCtx) })
	}

	if cfg.SMTP.Enabled {
		smtpServer := smtpsrv.NewServer(store, recorder, smtpsrv.Config{
			Hostname:       cfg.SMTP.Hostname,
			Addrs:          cfg.SMTP.Addrs,
			TLSAddr:        cfg.SMTP.TLSAddr,
			TLSCertFile:    cfg.SMTP.TLSCertFile,
			TLSKeyFile:     cfg.SMTP.TLSKeyFile,
			MaxMessageSize: 10 << 20,
		})
		g.Go(func() error { return smtpServer.Run(runCtx) })
	}

	log.Info().Str("addr", cfg.ListenAddr).Msg("dusseldorf started")

	<-runCtx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("listener error")
	}
	log.Info().Msg("stopped")
}
