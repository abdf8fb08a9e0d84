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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/clerk-fdw/connectors/config"
)

const minimalCatalog = "version: \"1.0\"\n"

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalCatalog), 0o644))

	var mu sync.Mutex
	var versions []string
	w, err := NewWatcher(path, func(ctx context.Context, cf *config.CatalogFile) error {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, cf.Version)
		return nil
	})
	require.NoError(t, err)
	w.SetLogger(quiet())
	w.SetDebounce(20 * time.Millisecond)

	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("version: \"2.0\"\n"), 0o644))

	require.Eventually(t, func() bool { return w.Reloads() >= 1 }, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "2.0", versions[len(versions)-1])
}

func TestWatcher_KeepsCatalogOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalCatalog), 0o644))

	applied := make(chan struct{}, 10)
	w, err := NewWatcher(path, func(ctx context.Context, cf *config.CatalogFile) error {
		applied <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	w.SetLogger(quiet())
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("servers: [not, a, map"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, w.Reloads())
	assert.Len(t, applied, 0)
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalCatalog), 0o644))

	w, err := NewWatcher(path, func(ctx context.Context, cf *config.CatalogFile) error { return nil })
	require.NoError(t, err)
	w.SetLogger(quiet())
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(minimalCatalog), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, w.Reloads())
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "catalog.yaml"), nil)
	require.NoError(t, err)
	w.SetLogger(quiet())
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Close())
}
