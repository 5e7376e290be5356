// Package config loads the environment configuration of both binaries.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var validate = validator.New()

// Server configures cmd/wsserver. With S3_BUCKET_NAME set, report
// screenshots are uploaded by the server and only their key goes over NATS.
type Server struct {
	Environment       string        `envconfig:"ENVIRONMENT" default:"production" validate:"oneof=development production"`
	Port              int           `envconfig:"PORT" default:"8080" validate:"min=1024,max=65535"`
	AllowedOrigins    []string      `envconfig:"ALLOWED_ORIGINS"`
	WorkerPoolSize    int           `envconfig:"WORKER_POOL_SIZE" default:"256" validate:"min=1"`
	MaxConnections    int           `envconfig:"MAX_CONNECTIONS" default:"10000" validate:"min=1"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"gt=0"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s" validate:"gt=0"`
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required,hostname_port"`
	NATSURL           string        `envconfig:"NATS_URL" default:"nats://localhost:4222" validate:"required,url"`
	ReportTimeout     time.Duration `envconfig:"REPORT_TIMEOUT" default:"10s" validate:"gt=0"`
	IdentityField     string        `envconfig:"IDENTITY_FIELD" default:"uid" validate:"required"`
	ConnectRate       float64       `envconfig:"CONNECT_RATE" default:"1" validate:"gt=0"`
	ConnectBurst      int           `envconfig:"CONNECT_BURST" default:"5" validate:"min=1"`
	S3BucketName      string        `envconfig:"S3_BUCKET_NAME"`
	S3Endpoint        string        `envconfig:"S3_ENDPOINT" validate:"omitempty,url"`
	S3Region          string        `envconfig:"S3_REGION" default:"auto"`
	S3AccessKeyID     string        `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `envconfig:"S3_SECRET_ACCESS_KEY"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Server) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Addr is the listen address.
func (c *Server) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// OriginAllowed reports whether a browser Origin header may connect.
// Development accepts any origin; otherwise the origin must be listed.
func (c *Server) OriginAllowed(origin string) bool {
	if c.IsDevelopment() {
		return true
	}
	return lo.Contains(c.AllowedOrigins, strings.TrimRight(origin, "/"))
}

// LoadServer reads and validates the server configuration.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if !cfg.IsDevelopment() && len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("config: ALLOWED_ORIGINS is required in %s", cfg.Environment)
	}
	return &cfg, nil
}

// Reporter configures cmd/reporter. Screenshots go to S3 only when
// S3_BUCKET_NAME is set.
type Reporter struct {
	Environment       string   `envconfig:"ENVIRONMENT" default:"production" validate:"oneof=development production"`
	NATSURL           string   `envconfig:"NATS_URL" default:"nats://localhost:4222" validate:"required,url"`
	RedisAddr         string   `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required,hostname_port"`
	DatabaseURL       string   `envconfig:"DATABASE_URL" validate:"required"`
	S3BucketName      string   `envconfig:"S3_BUCKET_NAME"`
	S3Endpoint        string   `envconfig:"S3_ENDPOINT" validate:"omitempty,url"`
	S3Region          string   `envconfig:"S3_REGION" default:"auto"`
	S3AccessKeyID     string   `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string   `envconfig:"S3_SECRET_ACCESS_KEY"`
	FlagTerms         []string `envconfig:"FLAG_TERMS"` // blocklist for report triage
}

// IsDevelopment reports whether the reporter runs in development mode.
func (c *Reporter) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// LoadReporter reads and validates the reporter configuration.
func LoadReporter() (*Reporter, error) {
	var cfg Reporter
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func normalizeOrigins(origins []string) []string {
	return lo.Uniq(lo.FilterMap(origins, func(o string, _ int) (string, bool) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		return o, o != ""
	}))
}
