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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/config"
	"github.com/tembo-io/clerk-fdw/connectors/registry"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

const catalogYAML = `
version: "1.0"
servers:
  clerk:
    type: clerk
    options:
      api_key: sk_test_sched
      courtesy_delay: "0"
foreign_tables:
  clerk_users:
    server: clerk
    options:
      object: users
    columns: [user_id, first_name]
sinks:
  local:
    type: file
    options:
      dir: ${EXPORT_DIR}
schedules:
  nightly:
    cron: "0 2 * * *"
    table: clerk_users
    sink: local
  paused:
    cron: "*/5 * * * *"
    table: clerk_users
    sink: local
    enabled: false
`

var usersAPI = clerk.PageFetcherFunc(func(ctx context.Context, req clerk.PageRequest) ([]byte, error) {
	users := []map[string]interface{}{}
	if req.Path == "/users" && req.Offset == 0 {
		users = append(users,
			map[string]interface{}{"id": "user_1", "first_name": "Ada"},
			map[string]interface{}{"id": "user_2", "first_name": "Grace"},
		)
	}
	return json.Marshal(map[string]interface{}{"data": users})
})

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func setup(t *testing.T) (*Scheduler, *config.CatalogFile, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("EXPORT_DIR", dir)

	cf, err := config.ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	catalog := registry.NewCatalog()
	catalog.SetLogger(quiet())
	catalog.SetFactory(func(cfg *base.ConnectorConfig) (*clerk.Connector, error) {
		conn := clerk.NewConnector()
		conn.SetScanLogger(logger.Discard("sched-test"))
		conn.SetFetcher(usersAPI)
		return conn, nil
	})
	t.Cleanup(func() { _ = catalog.Close(context.Background()) })
	require.NoError(t, catalog.Apply(context.Background(), cf))

	s := New(catalog)
	s.SetLogger(quiet(), logger.Discard("sched-test"))
	require.NoError(t, s.Apply(cf))
	return s, cf, dir
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestScheduler_Apply(t *testing.T) {
	s, _, _ := setup(t)

	assert.Equal(t, []string{"local"}, s.Sinks())
	schedules := s.Schedules()
	require.Len(t, schedules, 1, "disabled schedules are not installed")
	assert.Equal(t, "nightly", schedules[0].Name)
	assert.Equal(t, "clerk_users", schedules[0].Table)
}

func TestScheduler_ApplyInvalidCron(t *testing.T) {
	s, cf, _ := setup(t)

	cf.Schedules["broken"] = config.ScheduleFileConfig{Cron: "every tuesday", Table: "clerk_users", Sink: "local"}
	err := s.Apply(cf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	names := []string{}
	for _, st := range s.Schedules() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"nightly"}, names)
}

func TestScheduler_NextRunAfterStart(t *testing.T) {
	s, _, _ := setup(t)
	s.Start()
	defer s.Stop(context.Background())

	st := s.Schedules()[0]
	assert.False(t, st.Next.IsZero())
	assert.Equal(t, 2, st.Next.Hour())
}

func TestScheduler_ExportTable(t *testing.T) {
	s, _, dir := setup(t)

	res, err := s.ExportTable(context.Background(), "clerk_users", "local", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "file", res.Sink)
	assert.True(t, strings.HasPrefix(res.Location, dir), res.Location)

	lines := readLines(t, res.Location)
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"user_id":"user_1","first_name":"Ada"}`, lines[0])
}

func TestScheduler_ExportTableErrors(t *testing.T) {
	s, _, _ := setup(t)

	_, err := s.ExportTable(context.Background(), "clerk_users", "nowhere", nil)
	assert.True(t, errors.Is(err, ErrUnknownSink))

	_, err = s.ExportTable(context.Background(), "missing_table", "local", nil)
	assert.Error(t, err)
}

func TestScheduler_RunSchedule(t *testing.T) {
	s, _, _ := setup(t)

	res, err := s.RunSchedule(context.Background(), "nightly")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)

	st := s.Schedules()[0]
	require.NotNil(t, st.LastRun)
	assert.Equal(t, res.ScanID, st.LastRun.ScanID)
	assert.Empty(t, st.LastError)

	_, err = s.RunSchedule(context.Background(), "paused")
	assert.Error(t, err)
}

func TestScheduler_StopHonorsContext(t *testing.T) {
	s, _, _ := setup(t)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
