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

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// Fields carries structured key/value context for a log entry
type Fields map[string]interface{}

// Logger writes structured JSON log lines for one component
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	out io.Writer
	mu  sync.Mutex
}

// LogEntry is a single structured log line
type LogEntry struct {
	Timestamp  string   `json:"timestamp"`
	Level      LogLevel `json:"level"`
	Component  string   `json:"component"`
	InstanceID string   `json:"instance_id"`
	Container  string   `json:"container"`
	TenantID   string   `json:"tenant_id,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
	Message    string   `json:"message"`
	Fields     Fields   `json:"fields,omitempty"`
}

// New creates a Logger for the specified component writing to stdout
func New(component string) *Logger {
	return NewWithWriter(component, os.Stdout)
}

// NewWithWriter creates a Logger writing to w
func NewWithWriter(component string, w io.Writer) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	if w == nil {
		w = io.Discard
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		out:        w,
	}
}

// Discard returns a Logger that drops every entry
func Discard(component string) *Logger {
	return NewWithWriter(component, io.Discard)
}

// Log writes one structured entry
func (l *Logger) Log(level LogLevel, tenantID, requestID, message string, fields Fields) {
	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		TenantID:   tenantID,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		line = []byte(fmt.Sprintf(`{"level":"ERROR","component":%q,"message":"failed to marshal log entry: %s"}`,
			l.Component, err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(line, '\n'))
}

// Info logs an informational message
func (l *Logger) Info(tenantID, requestID, message string, fields Fields) {
	l.Log(INFO, tenantID, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(tenantID, requestID, message string, fields Fields) {
	l.Log(WARN, tenantID, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(tenantID, requestID, message string, fields Fields) {
	l.Log(ERROR, tenantID, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(tenantID, requestID, message string, fields Fields) {
	l.Log(DEBUG, tenantID, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field
func (l *Logger) InfoWithDuration(tenantID, requestID, message string, d time.Duration, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["duration_ms"] = float64(d.Microseconds()) / 1000
	l.Info(tenantID, requestID, message, fields)
}

// ErrorWithCode logs an error with a status code and the error text
func (l *Logger) ErrorWithCode(tenantID, requestID, message string, statusCode int, err error, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(tenantID, requestID, message, fields)
}
