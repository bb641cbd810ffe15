package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	awstrace "github.com/DataDog/dd-trace-go/contrib/aws/aws-sdk-go/v2/aws"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

const dateLayout = "2006-01-02"

// S3Uploader stores snapshot documents in an S3-compatible bucket under
// <prefix>/<date>/<name>.jsonl
type S3Uploader struct {
	client *s3.S3
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Uploader creates an uploader for config
func NewS3Uploader(config *Config) (*S3Uploader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.ForcePathStyle),
		DisableSSL:       aws.Bool(config.DisableSSL),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sess = awstrace.WrapSession(sess, awstrace.WithService("cooldb-snapshot"))

	return &S3Uploader{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: strings.Trim(config.Prefix, "/"),
		now:    time.Now,
	}, nil
}

// ObjectKey returns where a snapshot named name taken at t is stored
func (u *S3Uploader) ObjectKey(name string, t time.Time) string {
	return path.Join(u.prefix, t.UTC().Format(dateLayout), name+".jsonl")
}

// Upload stores a snapshot document and returns its object key
func (u *S3Uploader) Upload(ctx context.Context, name string, data io.Reader) (string, error) {
	now := u.now()
	key := u.ObjectKey(name, now)

	// PutObject needs an io.ReadSeeker
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}

	_, err := u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
		Metadata: map[string]*string{
			"Snapshot-Name": aws.String(name),
			"Snapshot-Time": aws.String(now.UTC().Format(time.RFC3339)),
		},
		ContentType: aws.String("application/x-jsonlines"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	return key, nil
}

// Download opens a stored snapshot. The caller closes the reader.
func (u *S3Uploader) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := u.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return result.Body, nil
}

// List returns the object keys of snapshots taken on date
func (u *S3Uploader) List(ctx context.Context, date time.Time) ([]string, error) {
	prefix := path.Join(u.prefix, date.UTC().Format(dateLayout)) + "/"

	var keys []string
	err := u.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return keys, nil
}

// Delete removes a stored snapshot
func (u *S3Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	return nil
}
