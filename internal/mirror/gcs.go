// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mirror copies downloaded documents to a Google Cloud Storage bucket.
// Objects are written with a does-not-exist precondition, so re-running a
// download never overwrites a mirrored copy.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCS uploads files under Prefix in one bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	logger *slog.Logger
}

// NewGCS connects to bucket. credentialsJSON is a service-account key; when
// empty, application default credentials are used. Extra client options are
// appended after the credentials option.
func NewGCS(ctx context.Context, bucket, prefix, credentialsJSON string, logger *slog.Logger, opts ...option.ClientOption) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("mirror: bucket name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var all []option.ClientOption
	if credentialsJSON != "" {
		all = append(all, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	all = append(all, opts...)

	client, err := storage.NewClient(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: prefix,
		logger: logger,
	}, nil
}

// Put uploads localPath as prefix/objectName. An object that already exists
// is left untouched and Put returns nil.
func (g *GCS) Put(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	name := path.Join(g.prefix, objectName)
	w := g.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/pdf"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		if exists(err) {
			g.logger.Debug("mirror object exists", "object", name)
			return nil
		}
		return fmt.Errorf("writing gs object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		if exists(err) {
			g.logger.Debug("mirror object exists", "object", name)
			return nil
		}
		return fmt.Errorf("finalizing gs object %s: %w", name, err)
	}
	g.logger.Info("mirrored", "object", name)
	return nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// exists reports whether err is a failed does-not-exist precondition.
func exists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
