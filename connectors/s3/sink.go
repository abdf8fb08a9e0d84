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


package s3

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tembo-io/clerk-fdw/connectors/export"
	"github.com/tembo-io/clerk-fdw/connectors/sdk"
)

const contentType = "application/x-ndjson"

func init() {
	export.RegisterSink("s3", func(ctx context.Context, options map[string]string) (export.Sink, error) {
		return New(ctx, options)
	})
}

// PutObjectAPI is the slice of the S3 client the sink needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sink uploads each batch as one NDJSON object.
type Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
	retry  *sdk.RetryConfig
}

// New builds an S3 sink. Options:
//
//	bucket             required
//	prefix             key prefix
//	region             default us-east-1
//	endpoint           S3-compatible endpoint (MinIO, R2)
//	force_path_style   "true" for path-style addressing
//	access_key_id, secret_access_key, session_token
//
// Without static keys the default AWS credential chain is used.
func New(ctx context.Context, options map[string]string) (*Sink, error) {
	bucket, err := export.RequireOption(options, "bucket")
	if err != nil {
		return nil, err
	}

	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(export.OptionOr(options, "region", "us-east-1")),
	}
	if id, secret := options["access_key_id"], options["secret_access_key"]; id != "" && secret != "" {
		creds := credentials.NewStaticCredentialsProvider(id, secret, options["session_token"])
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if endpoint := options["endpoint"]; endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if pathStyle, _ := strconv.ParseBool(options["force_path_style"]); pathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), bucket, options["prefix"]), nil
}

// NewWithClient builds a sink over an existing client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *Sink {
	return &Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		retry:  sdk.DefaultRetryConfig(),
	}
}

// Type returns "s3".
func (s *Sink) Type() string { return "s3" }

// Write uploads the batch to s3://<bucket>/<object key>.
func (s *Sink) Write(ctx context.Context, batch *export.Batch) (*export.WriteResult, error) {
	data, err := batch.NDJSON()
	if err != nil {
		return nil, err
	}
	key := batch.ObjectKey(s.prefix)

	err = sdk.RetryVoid(ctx, s.retry, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
			Metadata: map[string]string{
				"scan-id": batch.ScanID,
				"object":  batch.Object,
				"rows":    strconv.Itoa(len(batch.Rows)),
			},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}

	return &export.WriteResult{
		Location: "s3://" + s.bucket + "/" + strings.TrimPrefix(key, "/"),
		Rows:     len(batch.Rows),
		Bytes:    len(data),
	}, nil
}

// Close is a no-op.
func (s *Sink) Close(ctx context.Context) error { return nil }
