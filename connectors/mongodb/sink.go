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


package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/export"
)

const (
	DefaultCollection     = "clerk_export_rows"
	DefaultConnectTimeout = 10 * time.Second
)

func init() {
	export.RegisterSink("mongodb", func(ctx context.Context, options map[string]string) (export.Sink, error) {
		return New(ctx, options)
	})
}

// Inserter is the slice of mongo.Collection the sink needs.
type Inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// Sink stores each exported row as a document. Timestamps stay BSON dates
// and JSON columns become embedded documents.
type Sink struct {
	client     *mongo.Client
	collection Inserter
	name       string
	logger     *log.Logger
}

// New connects to uri and writes into database.collection.
func New(ctx context.Context, opts map[string]string) (*Sink, error) {
	uri, err := export.RequireOption(opts, "uri")
	if err != nil {
		return nil, err
	}
	database, err := export.RequireOption(opts, "database")
	if err != nil {
		return nil, err
	}
	collection := export.OptionOr(opts, "collection", DefaultCollection)

	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("clerk-fdw-export").
		SetConnectTimeout(DefaultConnectTimeout)
	if v, err := strconv.ParseUint(opts["max_pool_size"], 10, 64); err == nil && v > 0 {
		clientOpts.SetMaxPoolSize(v)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := NewWithCollection(client.Database(database).Collection(collection), database+"."+collection)
	s.client = client
	return s, nil
}

// NewWithCollection builds a sink over an existing collection. name is used
// in result locations.
func NewWithCollection(coll Inserter, name string) *Sink {
	return &Sink{
		collection: coll,
		name:       name,
		logger:     log.New(os.Stdout, "[MCP_EXPORT_MONGODB] ", log.LstdFlags),
	}
}

// Type returns "mongodb".
func (s *Sink) Type() string { return "mongodb" }

// Write inserts one document per row. Document IDs are <scan-id>:<index>,
// so duplicates from a repeated write are rejected by the server and
// reported as an error.
func (s *Sink) Write(ctx context.Context, batch *export.Batch) (*export.WriteResult, error) {
	if len(batch.Rows) == 0 {
		return &export.WriteResult{Location: s.location(batch)}, nil
	}

	docs := make([]interface{}, 0, len(batch.Rows))
	for i, row := range batch.Rows {
		record, err := rowDocument(row)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		docs = append(docs, bson.D{
			{Key: "_id", Value: batch.ScanID + ":" + strconv.Itoa(i)},
			{Key: "scan_id", Value: batch.ScanID},
			{Key: "object", Value: batch.Object},
			{Key: "row_index", Value: i},
			{Key: "record", Value: record},
			{Key: "exported_at", Value: batch.ExportedAt},
		})
	}

	res, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", s.name, err)
	}

	s.logger.Printf("Exported %d documents of scan %s into %s", len(res.InsertedIDs), batch.ScanID, s.name)
	return &export.WriteResult{Location: s.location(batch), Rows: len(res.InsertedIDs)}, nil
}

func (s *Sink) location(batch *export.Batch) string {
	return "mongodb:" + s.name + "?scan_id=" + batch.ScanID
}

// rowDocument keeps column order and expands JSON cells.
func rowDocument(row clerk.Row) (bson.D, error) {
	doc := make(bson.D, 0, row.Len())
	for i, col := range row.Columns {
		value := row.Cells[i]
		if raw, ok := value.(json.RawMessage); ok {
			var decoded interface{}
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			value = decoded
		}
		doc = append(doc, bson.E{Key: col, Value: value})
	}
	return doc, nil
}

// Close disconnects the client.
func (s *Sink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
