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


package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tembo-io/clerk-fdw/connectors/config"
	"github.com/tembo-io/clerk-fdw/connectors/export"
	"github.com/tembo-io/clerk-fdw/connectors/registry"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// DefaultRunTimeout bounds one scheduled export.
const DefaultRunTimeout = 30 * time.Minute

// ErrUnknownSink is returned when an export names a sink the catalog file
// does not declare.
var ErrUnknownSink = errors.New("unknown sink")

// Status reports one schedule.
type Status struct {
	Name      string         `json:"name"`
	Cron      string         `json:"cron"`
	Table     string         `json:"table"`
	Sink      string         `json:"sink"`
	Next      time.Time      `json:"next,omitempty"`
	Prev      time.Time      `json:"prev,omitempty"`
	LastRun   *export.Result `json:"last_run,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

type entry struct {
	id       cron.EntryID
	schedule config.ScheduleFileConfig
	last     *export.Result
	lastErr  string
}

// Scheduler owns the declared sinks and runs exports, on demand or on cron
// schedules. Overlapping runs of one schedule are skipped.
type Scheduler struct {
	catalog    *registry.Catalog
	cron       *cron.Cron
	runTimeout time.Duration
	logger     *log.Logger
	exportLog  *logger.Logger

	mu      sync.Mutex
	sinks   map[string]config.SinkFileConfig
	entries map[string]*entry
}

// New creates a stopped scheduler over catalog.
func New(catalog *registry.Catalog) *Scheduler {
	return &Scheduler{
		catalog: catalog,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		runTimeout: DefaultRunTimeout,
		logger:     log.New(os.Stdout, "[MCP_SCHEDULER] ", log.LstdFlags),
		exportLog:  logger.New("clerk-export"),
		sinks:      make(map[string]config.SinkFileConfig),
		entries:    make(map[string]*entry),
	}
}

// SetLogger replaces the plumbing and export loggers.
func (s *Scheduler) SetLogger(l *log.Logger, exportLog *logger.Logger) {
	s.logger = l
	s.exportLog = exportLog
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Printf("Scheduler started (%d schedules)", len(s.Schedules()))
}

// Stop halts the cron loop and waits for running exports or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Apply replaces the sinks and schedules with those in cf. Schedules with an
// invalid cron expression are skipped and reported in the returned error;
// the rest are installed.
func (s *Scheduler) Apply(cf *config.CatalogFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, e := range s.entries {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
	s.sinks = make(map[string]config.SinkFileConfig, len(cf.Sinks))
	for name, sink := range cf.Sinks {
		s.sinks[name] = sink
	}

	var errs []error
	for _, name := range cf.ScheduleNames() {
		sched := cf.Schedules[name]
		if !sched.IsEnabled() {
			continue
		}
		if _, err := cron.ParseStandard(sched.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: invalid cron %q: %w", name, sched.Cron, err))
			continue
		}
		scheduleName := name
		id, err := s.cron.AddFunc(sched.Cron, func() { s.runScheduled(scheduleName) })
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", name, err))
			continue
		}
		s.entries[name] = &entry{id: id, schedule: sched}
	}

	s.logger.Printf("Applied %d sinks and %d schedules", len(s.sinks), len(s.entries))
	return errors.Join(errs...)
}

// Sinks returns the declared sink names, sorted.
func (s *Scheduler) Sinks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sinks))
	for name := range s.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schedules reports every installed schedule, sorted by name.
func (s *Scheduler) Schedules() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.entries))
	for name, e := range s.entries {
		st := Status{
			Name:      name,
			Cron:      e.schedule.Cron,
			Table:     e.schedule.Table,
			Sink:      e.schedule.Sink,
			LastRun:   e.last,
			LastError: e.lastErr,
		}
		if ce := s.cron.Entry(e.id); ce.Valid() {
			st.Next = ce.Next
			st.Prev = ce.Prev
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunSchedule runs a schedule immediately.
func (s *Scheduler) RunSchedule(ctx context.Context, name string) (*export.Result, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("schedule %q not found", name)
	}

	res, err := s.ExportTable(ctx, e.schedule.Table, e.schedule.Sink, e.schedule.Columns)

	s.mu.Lock()
	if cur, ok := s.entries[name]; ok && cur == e {
		e.last = res
		e.lastErr = ""
		if err != nil {
			e.lastErr = err.Error()
		}
	}
	s.mu.Unlock()
	return res, err
}

func (s *Scheduler) runScheduled(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	s.logger.Printf("Running schedule %s", name)
	if _, err := s.RunSchedule(ctx, name); err != nil {
		s.logger.Printf("Schedule %s failed: %v", name, err)
	}
}

// ExportTable scans a foreign table and writes it to a declared sink.
// Empty columns select the table's declared columns.
func (s *Scheduler) ExportTable(ctx context.Context, table, sinkName string, columns []string) (*export.Result, error) {
	s.mu.Lock()
	sinkCfg, ok := s.sinks[sinkName]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSink, sinkName)
	}

	t, err := s.catalog.Table(table)
	if err != nil {
		return nil, err
	}

	sink, err := export.NewSink(ctx, sinkCfg.Type, sinkCfg.Options)
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", sinkName, err)
	}
	defer func() {
		if err := sink.Close(ctx); err != nil {
			s.logger.Printf("Failed to close sink %s: %v", sinkName, err)
		}
	}()

	scan, err := s.catalog.OpenScan(ctx, table, columns, nil)
	if err != nil {
		return nil, err
	}
	return export.Export(ctx, scan, sink, table, t.Object(), s.exportLog)
}
