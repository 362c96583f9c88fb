package blob

import (
	"context"
	"io"

	"cloud.google.com/go/storage"

	"github.com/vibely/account-service/pkg/helpers"
)

// GCSUploader uploads image objects to a Google Cloud Storage bucket. The
// storage client's token source fetches a fresh credential per request;
// credential failures surface from the writer and are classified by the
// caller as upload errors.
type GCSUploader struct {
	Client *storage.Client
	Bucket string
}

func NewGCSUploader(client *storage.Client, bucket string) *GCSUploader {
	return &GCSUploader{Client: client, Bucket: bucket}
}

func (g *GCSUploader) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	return helpers.UploadObject(ctx, g.Client, g.Bucket, objectPath, contentType, r)
}
