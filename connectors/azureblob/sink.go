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


package azureblob

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/tembo-io/clerk-fdw/connectors/export"
)

func init() {
	export.RegisterSink("azureblob", func(ctx context.Context, options map[string]string) (export.Sink, error) {
		return New(options)
	})
}

// Uploader is the slice of azblob.Client the sink needs.
type Uploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// Sink uploads each batch as one block blob.
type Sink struct {
	client    Uploader
	account   string
	container string
	prefix    string
}

// New builds an Azure Blob sink. container is required. Authentication is,
// in order: connection_string, account_name with account_key, or
// account_name with use_managed_identity=true.
func New(options map[string]string) (*Sink, error) {
	containerName, err := export.RequireOption(options, "container")
	if err != nil {
		return nil, err
	}
	account := options["account_name"]
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	managed, _ := strconv.ParseBool(options["use_managed_identity"])

	var client *azblob.Client
	switch {
	case options["connection_string"] != "":
		client, err = azblob.NewClientFromConnectionString(options["connection_string"], nil)
	case account != "" && options["account_key"] != "":
		cred, credErr := azblob.NewSharedKeyCredential(account, options["account_key"])
		if credErr != nil {
			return nil, fmt.Errorf("create shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	case account != "" && managed:
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("create Azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
	default:
		return nil, fmt.Errorf("azureblob sink: no authentication method provided")
	}
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return NewWithClient(client, account, containerName, options["prefix"]), nil
}

// NewWithClient builds a sink over an existing client.
func NewWithClient(client Uploader, account, containerName, prefix string) *Sink {
	return &Sink{client: client, account: account, container: containerName, prefix: prefix}
}

// Type returns "azureblob".
func (s *Sink) Type() string { return "azureblob" }

// Write uploads the batch to <container>/<object key>.
func (s *Sink) Write(ctx context.Context, batch *export.Batch) (*export.WriteResult, error) {
	data, err := batch.NDJSON()
	if err != nil {
		return nil, err
	}
	key := batch.ObjectKey(s.prefix)

	contentType := "application/x-ndjson"
	scanID, object, rows := batch.ScanID, batch.Object, strconv.Itoa(len(batch.Rows))
	_, err = s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata: map[string]*string{
			"scanid": &scanID,
			"object": &object,
			"rows":   &rows,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload blob %s/%s: %w", s.container, key, err)
	}

	return &export.WriteResult{
		Location: s.location(key),
		Rows:     len(batch.Rows),
		Bytes:    len(data),
	}, nil
}

func (s *Sink) location(key string) string {
	if s.account == "" {
		return s.container + "/" + key
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.account, s.container, key)
}

// Close is a no-op.
func (s *Sink) Close(ctx context.Context) error { return nil }
