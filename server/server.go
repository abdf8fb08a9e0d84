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


package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/tembo-io/clerk-fdw/connectors/registry"
	"github.com/tembo-io/clerk-fdw/connectors/scheduler"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// Version is reported by /health.
const Version = "0.3.0"

// Options configures the HTTP API.
type Options struct {
	// JWTSecret enables HS256 bearer auth on /api/v1 when non-empty.
	JWTSecret string
	// AllowedOrigins defaults to "*".
	AllowedOrigins []string
	// MaxScanRows caps the rows returned by the scan endpoint. Zero means
	// unlimited.
	MaxScanRows int
}

// Server exposes the catalog over HTTP.
type Server struct {
	catalog   *registry.Catalog
	scheduler *scheduler.Scheduler
	opts      Options
	router    *mux.Router
	logger    *log.Logger
	reqLog    *logger.Logger
	started   time.Time
}

// New builds the router. sched may be nil, which disables export endpoints.
func New(catalog *registry.Catalog, sched *scheduler.Scheduler, opts Options) *Server {
	s := &Server{
		catalog:   catalog,
		scheduler: sched,
		opts:      opts,
		router:    mux.NewRouter(),
		logger:    log.New(os.Stdout, "[MCP_SERVER] ", log.LstdFlags),
		reqLog:    logger.New("clerkfdw-server"),
		started:   time.Now(),
	}
	s.routes()
	return s
}

// SetLogger replaces the plumbing and request loggers.
func (s *Server) SetLogger(l *log.Logger, reqLog *logger.Logger) {
	s.logger = l
	s.reqLog = reqLog
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.opts.JWTSecret != "" {
		api.Use(jwtAuth([]byte(s.opts.JWTSecret)))
	}
	api.HandleFunc("/resources", s.resourcesHandler).Methods("GET")
	api.HandleFunc("/resources/{object}", s.resourceHandler).Methods("GET")
	api.HandleFunc("/tables", s.listTablesHandler).Methods("GET")
	api.HandleFunc("/tables", s.createTableHandler).Methods("POST")
	api.HandleFunc("/tables/{name}", s.getTableHandler).Methods("GET")
	api.HandleFunc("/tables/{name}", s.dropTableHandler).Methods("DELETE")
	api.HandleFunc("/tables/{name}/scan", s.scanHandler).Methods("POST")
	api.HandleFunc("/tables/{name}/export", s.exportHandler).Methods("POST")
	api.HandleFunc("/validate", s.validateHandler).Methods("POST")
	api.HandleFunc("/schedules", s.listSchedulesHandler).Methods("GET")
	api.HandleFunc("/schedules/{name}/run", s.runScheduleHandler).Methods("POST")
}

// Handler returns the router wrapped in CORS.
func (s *Server) Handler() http.Handler {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Clerk FDW API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Printf("Shutting down API server")
	return srv.Shutdown(shutdownCtx)
}
