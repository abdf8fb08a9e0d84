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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/registry"
	"github.com/tembo-io/clerk-fdw/connectors/scheduler"
	"github.com/tembo-io/clerk-fdw/connectors/sdk"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// CreateTableRequest declares a foreign table.
type CreateTableRequest struct {
	Name    string            `json:"name"`
	Server  string            `json:"server"`
	Options map[string]string `json:"options"`
	Columns []string          `json:"columns,omitempty"`
}

// ScanRequest selects columns and predicates for a scan.
type ScanRequest struct {
	Columns    []string          `json:"columns,omitempty"`
	Predicates []clerk.Predicate `json:"predicates,omitempty"`
}

// ScanResponse carries a fully materialized scan.
type ScanResponse struct {
	ScanID      string             `json:"scan_id"`
	Table       string             `json:"table"`
	Object      string             `json:"object"`
	Columns     []string           `json:"columns"`
	Rows        []clerk.Row        `json:"rows"`
	RowCount    int                `json:"row_count"`
	Truncated   bool               `json:"truncated,omitempty"`
	Pages       int                `json:"pages"`
	Diagnostics []clerk.Diagnostic `json:"diagnostics"`
	DurationMs  int64              `json:"duration_ms"`
}

// ExportRequest names the declared sink to write to.
type ExportRequest struct {
	Sink    string   `json:"sink"`
	Columns []string `json:"columns,omitempty"`
}

// ValidateRequest mirrors ValidateOptions.
type ValidateRequest struct {
	Options      map[string]string `json:"options"`
	ForeignTable bool              `json:"foreign_table"`
}

// ValidateResponse reports the verdict.
type ValidateResponse struct {
	Valid  bool   `json:"valid"`
	Option string `json:"option,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "healthy",
		"service": "clerk-fdw",
		"version": Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"servers": len(s.catalog.Servers()),
		"tables":  len(s.catalog.Tables()),
	}
	status := http.StatusOK
	if r.URL.Query().Get("deep") == "true" {
		checks := s.catalog.HealthCheck(r.Context())
		for _, h := range checks {
			if !h.Healthy {
				resp["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		resp["checks"] = checks
	}
	sendJSON(w, status, resp)
}

func (s *Server) resourcesHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{"resources": clerk.DescribeAll()})
}

func (s *Server) resourceHandler(w http.ResponseWriter, r *http.Request) {
	info, err := clerk.Describe(mux.Vars(r)["object"])
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	sendJSON(w, http.StatusOK, info)
}

func (s *Server) listTablesHandler(w http.ResponseWriter, r *http.Request) {
	tables := s.catalog.Tables()
	if tenantID := sdk.GetTenantID(r.Context()); tenantID != "" {
		tables = s.catalog.TablesForTenant(tenantID)
	}
	if tables == nil {
		tables = []*registry.ForeignTable{}
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"tables": tables, "count": len(tables)})
}

func (s *Server) getTableHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.authorizeTable(w, r, name) {
		return
	}
	t, err := s.catalog.Table(name)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	sendJSON(w, http.StatusOK, t)
}

func (s *Server) createTableHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.catalog.CreateForeignTable(r.Context(), registry.ForeignTable{
		Name:    req.Name,
		Server:  req.Server,
		Options: req.Options,
		Columns: req.Columns,
	})
	if err != nil {
		var verr *clerk.ValidationError
		switch {
		case errors.As(err, &verr):
			sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, registry.ErrNotFound):
			sendErrorResponse(w, err.Error(), http.StatusNotFound)
		default:
			sendErrorResponse(w, err.Error(), http.StatusConflict)
		}
		return
	}

	t, err := s.catalog.Table(req.Name)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusCreated, t)
}

func (s *Server) dropTableHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.authorizeTable(w, r, name) {
		return
	}
	if err := s.catalog.DropForeignTable(r.Context(), name); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := mux.Vars(r)["name"]
	if !s.authorizeTable(w, r, name) {
		return
	}

	var req ScanRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	t, err := s.catalog.Table(name)
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}

	ctx, requestID := s.requestContext(r)
	scan, err := s.catalog.OpenScan(ctx, name, req.Columns, req.Predicates)
	if err != nil {
		s.reqLog.ErrorWithCode(sdk.GetTenantID(ctx), requestID, "scan failed", scanStatus(err), err, logger.Fields{"table": name})
		sendErrorResponse(w, err.Error(), scanStatus(err))
		return
	}
	defer scan.EndScan()

	resp := ScanResponse{
		ScanID:  scan.ID,
		Table:   name,
		Object:  t.Object(),
		Columns: scan.Columns(),
		Rows:    []clerk.Row{},
	}
	for row, ok := scan.NextRow(); ok; row, ok = scan.NextRow() {
		if s.opts.MaxScanRows > 0 && len(resp.Rows) >= s.opts.MaxScanRows {
			resp.Truncated = true
			break
		}
		resp.Rows = append(resp.Rows, row)
	}
	resp.RowCount = len(resp.Rows)
	resp.Pages = scan.Pages()
	resp.Diagnostics = scan.Diagnostics()
	if resp.Diagnostics == nil {
		resp.Diagnostics = []clerk.Diagnostic{}
	}
	resp.DurationMs = time.Since(start).Milliseconds()

	s.reqLog.InfoWithDuration(sdk.GetTenantID(ctx), requestID, "scan served", time.Since(start), logger.Fields{
		"table":       name,
		"scan_id":     scan.ID,
		"rows":        resp.RowCount,
		"diagnostics": len(resp.Diagnostics),
	})
	sendJSON(w, http.StatusOK, resp)
}

// scanStatus maps OpenScan failures: missing credentials are a server-side
// setup problem, a cancelled request is the client's.
func scanStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case clerk.IsSetupError(err):
		return http.StatusFailedDependency
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		sendErrorResponse(w, "exports are not configured", http.StatusServiceUnavailable)
		return
	}
	name := mux.Vars(r)["name"]
	if !s.authorizeTable(w, r, name) {
		return
	}

	var req ExportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sink == "" {
		sendErrorResponse(w, "sink is required", http.StatusBadRequest)
		return
	}

	ctx, _ := s.requestContext(r)
	res, err := s.scheduler.ExportTable(ctx, name, req.Sink, req.Columns)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrUnknownSink) || errors.Is(err, registry.ErrNotFound) {
			status = http.StatusNotFound
		}
		sendErrorResponse(w, err.Error(), status)
		return
	}
	sendJSON(w, http.StatusOK, res)
}

func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp := ValidateResponse{Valid: true}
	if err := clerk.ValidateOptions(req.Options, req.ForeignTable); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
		var verr *clerk.ValidationError
		if errors.As(err, &verr) {
			resp.Option = verr.Option
		}
	}
	sendJSON(w, http.StatusOK, resp)
}

func (s *Server) listSchedulesHandler(w http.ResponseWriter, r *http.Request) {
	schedules := []scheduler.Status{}
	if s.scheduler != nil {
		schedules = s.scheduler.Schedules()
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

func (s *Server) runScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		sendErrorResponse(w, "exports are not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, _ := s.requestContext(r)
	res, err := s.scheduler.RunSchedule(ctx, mux.Vars(r)["name"])
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, res)
}

// authorizeTable enforces tenant isolation when the request is
// authenticated.
func (s *Server) authorizeTable(w http.ResponseWriter, r *http.Request, table string) bool {
	tenantID := sdk.GetTenantID(r.Context())
	if tenantID == "" {
		return true
	}
	if err := s.catalog.ValidateTenantAccess(table, tenantID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			sendErrorResponse(w, err.Error(), http.StatusNotFound)
		} else {
			sendErrorResponse(w, err.Error(), http.StatusForbidden)
		}
		return false
	}
	return true
}

func (s *Server) requestContext(r *http.Request) (context.Context, string) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return sdk.WithRequestID(r.Context(), requestID), requestID
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		sendErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	sendJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
