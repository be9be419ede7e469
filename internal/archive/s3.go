package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the mirror uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror copies daily archive files to an S3 bucket. A nil Mirror or an
// empty bucket disables mirroring.
type Mirror struct {
	client S3API
	bucket string
	prefix string
}

// NewMirror creates a Mirror writing under prefix in bucket.
func NewMirror(client S3API, bucket, prefix string) *Mirror {
	return &Mirror{client: client, bucket: bucket, prefix: prefix}
}

// Enabled reports whether the mirror is configured.
func (m *Mirror) Enabled() bool {
	return m != nil && m.client != nil && m.bucket != ""
}

// Put uploads one archive file's content under its file name.
func (m *Mirror) Put(ctx context.Context, name, content string) error {
	key := path.Join(m.prefix, name)
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return nil
}
