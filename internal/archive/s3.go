// Package archive keeps a copy of every accepted upload file in S3 so a
// campaign can be audited or re-imported later.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/campaign-ingest/internal/domain"
)

// s3API is the subset of *s3.Client the archiver uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Archiver writes raw uploads to
// <prefix>/<kind>/<yyyy>/<mm>/<dd>/<report id>/<file name>.
type S3Archiver struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Archiver loads the default AWS credential chain for region.
func NewS3Archiver(ctx context.Context, bucket, region, prefix string) (*S3Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for upload archive: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// New wraps an existing client.
func New(client s3API, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key returns the object key for an upload.
func (a *S3Archiver) Key(report *domain.CampaignReport, fileName string) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(strings.ReplaceAll(fileName, `\`, "/")), "_")
	if name == "" || name == "." || name == "_" {
		name = "upload.csv"
	}
	parts := []string{
		string(report.Kind),
		report.UploadedAt.UTC().Format("2006/01/02"),
		report.ReportID,
		name,
	}
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// Archive uploads body and returns its key.
func (a *S3Archiver) Archive(ctx context.Context, report *domain.CampaignReport, fileName string, body []byte) (string, error) {
	key := a.Key(report, fileName)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/csv"),
		Metadata: map[string]string{
			"report-id": report.ReportID,
			"campaign":  report.CampaignName,
		},
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject %s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}

// Ping checks that the bucket is reachable.
func (a *S3Archiver) Ping(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return err
}
