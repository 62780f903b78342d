package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"shelf-scan/api/internal/config"
	"shelf-scan/api/internal/util"
)

const keyPrefix = "detections/"

// S3 складывает исходные снимки в бакет (S3, R2, MinIO).
type S3 struct {
	client  *s3.Client
	bucket  string
	baseURL string
	newID   func() string
}

// New builds an archive from cfg. Extra s3 option funcs are applied last.
func New(ctx context.Context, cfg config.ArchiveConfig, optFns ...func(*s3.Options)) (*S3, error) {
	if !cfg.Enabled() {
		return nil, errors.New("archive: bucket is not configured")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, append([]func(*s3.Options){func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			// MinIO и прочие self-hosted не умеют virtual-host адресацию
			o.UsePathStyle = true
		}
	}}, optFns...)...)

	baseURL := cfg.PublicBaseURL
	if baseURL == "" && endpoint != "" {
		baseURL = endpoint + "/" + cfg.Bucket
	}
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		newID:   uuid.NewString,
	}, nil
}

// Key returns the object key for an uploaded image name.
func (a *S3) Key(name string) string {
	return keyPrefix + a.newID() + "-" + util.SafeName(name)
}

// Put uploads data and returns its public URL.
func (a *S3) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := a.Key(name)
	if contentType == "" {
		contentType = util.PickMIME("", data)
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}
	return a.baseURL + "/" + key, nil
}
