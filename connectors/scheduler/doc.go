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


// Package scheduler runs exports of foreign tables into declared sinks,
// either on demand or on the cron schedules from a catalog file, and keeps
// the catalog in sync with that file as it changes on disk.
//
//	sched := scheduler.New(catalog)
//	_ = sched.Apply(cf)
//	sched.Start()
//	defer sched.Stop(ctx)
//
// Cron expressions use the standard five-field syntax.
package scheduler
