// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package main is the entry point for the Clerk FDW API server.
//
// The server hosts a catalog of Clerk foreign servers and foreign tables,
// answers scans over HTTP and runs scheduled exports to the configured
// sinks.
//
// Usage:
//
//	./clerkfdw
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	CLERKFDW_CONFIG - YAML catalog file, watched for changes (optional)
//	DATABASE_URL - PostgreSQL catalog storage (optional, in-memory otherwise)
//	JWT_SECRET - enables HS256 bearer auth on /api/v1 (optional)
//	REDIS_URL - shared rate limiter for every server without redis_url (optional)
//	SECRETS_BACKEND - env, local or aws (default: env)
//	AWS_REGION - region for the aws secrets backend (default: us-east-1)
//	CORS_ORIGINS - comma separated allowed origins (default: *)
//	MAX_SCAN_ROWS - row cap for the scan endpoint (default: unlimited)
//	ALLOW_PRIVATE_API_URLS - permit api_url on private addresses (default: false)
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/config"
	"github.com/tembo-io/clerk-fdw/connectors/registry"
	"github.com/tembo-io/clerk-fdw/connectors/scheduler"
	"github.com/tembo-io/clerk-fdw/server"

	_ "github.com/tembo-io/clerk-fdw/connectors/azureblob"
	_ "github.com/tembo-io/clerk-fdw/connectors/cassandra"
	_ "github.com/tembo-io/clerk-fdw/connectors/gcs"
	_ "github.com/tembo-io/clerk-fdw/connectors/mongodb"
	_ "github.com/tembo-io/clerk-fdw/connectors/mysql"
	_ "github.com/tembo-io/clerk-fdw/connectors/postgres"
	_ "github.com/tembo-io/clerk-fdw/connectors/s3"
)

const catalogReloadInterval = time.Minute

type settings struct {
	Port           string
	CatalogFile    string
	DatabaseURL    string
	JWTSecret      string
	RedisURL       string
	SecretsBackend string
	AWSRegion      string
	AllowedOrigins []string
	MaxScanRows    int
	AllowPrivate   bool
}

func loadSettings(getenv func(string) string) (*settings, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	s := &settings{
		Port:           env("PORT", "8080"),
		CatalogFile:    env("CLERKFDW_CONFIG", ""),
		DatabaseURL:    env("DATABASE_URL", ""),
		JWTSecret:      env("JWT_SECRET", ""),
		RedisURL:       env("REDIS_URL", ""),
		SecretsBackend: env("SECRETS_BACKEND", config.SecretsBackendEnv),
		AWSRegion:      env("AWS_REGION", "us-east-1"),
	}
	if _, err := strconv.Atoi(s.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT %q", s.Port)
	}
	if origins := env("CORS_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				s.AllowedOrigins = append(s.AllowedOrigins, o)
			}
		}
	}
	if v := env("MAX_SCAN_ROWS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MAX_SCAN_ROWS %q", v)
		}
		s.MaxScanRows = n
	}
	if v := env("ALLOW_PRIVATE_API_URLS", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ALLOW_PRIVATE_API_URLS %q", v)
		}
		s.AllowPrivate = b
	}
	return s, nil
}

func main() {
	logger := log.New(os.Stdout, "[MCP_CLERKFDW] ", log.LstdFlags)

	s, err := loadSettings(os.Getenv)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, s, logger); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, s *settings, logger *log.Logger) error {
	catalog, err := openCatalog(ctx, s, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := catalog.Close(closeCtx); err != nil {
			logger.Printf("Catalog close: %v", err)
		}
	}()

	secrets, err := config.NewSecretsManager(ctx, s.SecretsBackend, s.AWSRegion, logger)
	if err != nil {
		return fmt.Errorf("secrets backend: %w", err)
	}
	catalog.SetSecretsManager(secrets)
	policy := base.DefaultURLValidationOptions()
	policy.AllowPrivateIPs = s.AllowPrivate
	catalog.SetURLPolicy(policy)
	if s.RedisURL != "" {
		catalog.SetServerDefaults(map[string]string{clerk.OptRedisURL: s.RedisURL})
	}

	sched := scheduler.New(catalog)
	if s.CatalogFile != "" {
		cf, err := catalog.LoadFile(ctx, s.CatalogFile)
		if err != nil {
			return fmt.Errorf("catalog file: %w", err)
		}
		if err := sched.Apply(cf); err != nil {
			return fmt.Errorf("schedules: %w", err)
		}

		watcher, err := scheduler.NewWatcher(s.CatalogFile, func(ctx context.Context, cf *config.CatalogFile) error {
			if err := catalog.Apply(ctx, cf); err != nil {
				return err
			}
			return sched.Apply(cf)
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Printf("Catalog hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	srv := server.New(catalog, sched, server.Options{
		JWTSecret:      s.JWTSecret,
		AllowedOrigins: s.AllowedOrigins,
		MaxScanRows:    s.MaxScanRows,
	})
	if s.JWTSecret == "" {
		logger.Println("JWT_SECRET not set - /api/v1 is unauthenticated")
	}
	return srv.Run(ctx, ":"+s.Port)
}

func openCatalog(ctx context.Context, s *settings, logger *log.Logger) (*registry.Catalog, error) {
	if s.DatabaseURL == "" {
		logger.Println("DATABASE_URL not set - catalog is in-memory only")
		return registry.NewCatalog(), nil
	}

	storage, err := registry.NewPostgreSQLStorage(s.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog storage: %w", err)
	}
	catalog, err := registry.NewCatalogWithStorage(ctx, storage)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	catalog.StartPeriodicReload(ctx, catalogReloadInterval)
	return catalog, nil
}
