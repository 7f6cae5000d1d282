package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Publisher uploads artifacts to an S3 bucket. Object keys mirror the
// artifact's path under the local output directory, below Prefix.
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
	root   string
}

// NewS3Publisher loads AWS credentials from the default chain.
func NewS3Publisher(ctx context.Context, region, bucket, prefix, root string) (*S3Publisher, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return &S3Publisher{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		root:   root,
	}, nil
}

// Publish implements Publisher.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("error opening file to upload to S3: %v", err)
	}
	defer file.Close()

	key := ObjectKey(p.prefix, p.root, localPath)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("error uploading %s to S3: %v", localPath, err)
	}
	return "s3://" + p.bucket + "/" + key, nil
}

// ObjectKey derives a slash-separated object key for localPath. Files
// outside root are keyed by base name only.
func ObjectKey(prefix, root, localPath string) string {
	rel, err := filepath.Rel(root, localPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(localPath)
	}
	return strings.TrimPrefix(path.Join(prefix, filepath.ToSlash(rel)), "/")
}
