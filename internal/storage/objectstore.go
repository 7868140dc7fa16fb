package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"manifest/internal/infra"
)

// Publisher uploads a finished artifact and returns a URL clients can fetch
// it from.
type Publisher interface {
	Publish(ctx context.Context, jobID, localPath string) (string, error)
}

type ObjectStoreOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	PresignExpiry time.Duration
	Logger        *infra.Logger
}

// ObjectPublisher stores artifacts in an S3-compatible bucket.
type ObjectPublisher struct {
	client        *minio.Client
	bucket        string
	region        string
	publicBaseURL string
	presignExpiry time.Duration
	logger        *infra.Logger
}

const defaultPresignExpiry = 24 * time.Hour

func NewObjectPublisher(opts ObjectStoreOptions) (*ObjectPublisher, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, errors.New("storage: object store endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 client: %w", err)
	}
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &ObjectPublisher{
		client:        client,
		bucket:        opts.Bucket,
		region:        opts.Region,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		presignExpiry: expiry,
		logger:        infra.OrNop(opts.Logger),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *ObjectPublisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
		return fmt.Errorf("storage: make bucket: %w", err)
	}
	p.logger.Info().Str("bucket", p.bucket).Msg("storage: bucket created")
	return nil
}

// Publish implements Publisher.
func (p *ObjectPublisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	key := ObjectKey(jobID, localPath)
	info, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	p.logger.Debug().
		Str("job_id", jobID).
		Str("key", key).
		Int64("size", info.Size).
		Msg("storage: artifact uploaded")
	return p.URL(ctx, key)
}

// URL returns the public URL for key, or a presigned one when no public base
// URL is configured.
func (p *ObjectPublisher) URL(ctx context.Context, key string) (string, error) {
	if p.publicBaseURL != "" {
		return p.publicBaseURL + "/" + key, nil
	}
	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("storage: presign object: %w", err)
	}
	return u.String(), nil
}

// ObjectKey names the remote object for a job artifact.
func ObjectKey(jobID, localPath string) string {
	return path.Join(jobsDir, jobID, path.Base(strings.ReplaceAll(localPath, "\\", "/")))
}

var _ Publisher = (*ObjectPublisher)(nil)
