// -------------------------------------------------------------------------------
// S3 Object Backend
//
// Author: Alex Freidah
//
// ObjectBackend implementation over an S3-compatible store. Objects live in a
// single bucket keyed "{account}/{container}/{object}". Conditional headers
// map onto S3's conditional get parameters; a precondition response (304) is
// surfaced as a result rather than an error. Every call is bounded by the
// configured backend timeout and recorded in the backend metrics.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/afreidah/origin-gateway/internal/config"
	"github.com/afreidah/origin-gateway/internal/telemetry"
)

// S3Backend implements ObjectBackend on an S3-compatible endpoint.
type S3Backend struct {
	client  *s3.Client
	bucket  string
	timeout time.Duration
}

// NewS3Backend builds an S3 client from the backend configuration.
func NewS3Backend(cfg *config.BackendConfig, timeout time.Duration) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backend bucket is required")
	}
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.ForcePathStyle,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	return &S3Backend{
		client:  s3.New(opts),
		bucket:  cfg.Bucket,
		timeout: timeout,
	}, nil
}

// objectKey builds the backend key for an object.
func objectKey(account, container, object string) string {
	return account + "/" + container + "/" + object
}

// Fetch retrieves an object or its headers.
func (b *S3Backend) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	key := objectKey(req.Account, req.Container, req.Object)

	if req.Head {
		defer cancel()
		return b.head(ctx, key)
	}

	start := time.Now()
	in := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}
	if req.Range != "" {
		in.Range = aws.String(req.Range)
	}
	if req.IfMatch != "" {
		in.IfMatch = aws.String(req.IfMatch)
	}
	if t, err := time.Parse(time.RFC1123, req.IfModifiedSince); err == nil {
		in.IfModifiedSince = aws.Time(t)
	}

	out, err := b.client.GetObject(ctx, in)
	telemetry.BackendDuration.WithLabelValues("GetObject").Observe(time.Since(start).Seconds())
	if err != nil {
		cancel()
		status, pass, mapped := mapS3Error(err)
		if mapped != nil {
			telemetry.BackendRequestsTotal.WithLabelValues("GetObject", status).Inc()
			return nil, mapped
		}
		if pass != 0 {
			telemetry.BackendRequestsTotal.WithLabelValues("GetObject", status).Inc()
			return &FetchResult{StatusCode: pass}, nil
		}
		telemetry.BackendRequestsTotal.WithLabelValues("GetObject", "error").Inc()
		return nil, fmt.Errorf("backend get: %w", err)
	}
	telemetry.BackendRequestsTotal.WithLabelValues("GetObject", "ok").Inc()

	res := &FetchResult{
		StatusCode:    200,
		Body:          &cancelOnClose{ReadCloser: out.Body, cancel: cancel},
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
		ETag:          aws.ToString(out.ETag),
		LastModified:  aws.ToTime(out.LastModified),
	}
	if out.ContentRange != nil {
		res.StatusCode = 206
		res.ContentRange = aws.ToString(out.ContentRange)
	}
	if out.ContentEncoding != nil {
		res.ContentEncoding = aws.ToString(out.ContentEncoding)
	}
	if out.ContentDisposition != nil {
		res.ContentDisposition = aws.ToString(out.ContentDisposition)
	}
	return res, nil
}

// head issues a HeadObject and maps the response headers.
func (b *S3Backend) head(ctx context.Context, key string) (*FetchResult, error) {
	start := time.Now()
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	telemetry.BackendDuration.WithLabelValues("HeadObject").Observe(time.Since(start).Seconds())
	if err != nil {
		if status, _, mapped := mapS3Error(err); mapped != nil {
			telemetry.BackendRequestsTotal.WithLabelValues("HeadObject", status).Inc()
			return nil, mapped
		}
		telemetry.BackendRequestsTotal.WithLabelValues("HeadObject", "error").Inc()
		return nil, fmt.Errorf("backend head: %w", err)
	}
	telemetry.BackendRequestsTotal.WithLabelValues("HeadObject", "ok").Inc()
	return &FetchResult{
		StatusCode:    200,
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
		ETag:          aws.ToString(out.ETag),
		LastModified:  aws.ToTime(out.LastModified),
	}, nil
}

// ListObjects returns object names in a container, ordered, after marker.
func (b *S3Backend) ListObjects(ctx context.Context, account, container, marker string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	prefix := account + "/" + container + "/"
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	}
	if marker != "" {
		in.StartAfter = aws.String(prefix + marker)
	}
	if limit > 0 {
		in.MaxKeys = aws.Int32(int32(limit))
	}

	start := time.Now()
	out, err := b.client.ListObjectsV2(ctx, in)
	telemetry.BackendDuration.WithLabelValues("ListObjectsV2").Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.BackendRequestsTotal.WithLabelValues("ListObjectsV2", "error").Inc()
		return nil, fmt.Errorf("backend list: %w", err)
	}
	telemetry.BackendRequestsTotal.WithLabelValues("ListObjectsV2", "ok").Inc()

	names := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		names = append(names, aws.ToString(obj.Key)[len(prefix):])
	}
	return names, nil
}

// mapS3Error classifies an S3 error. Missing objects map to ErrObjectNotFound;
// conditional, redirect, and range responses (304, 301, 416) map to a
// pass-through status the handler forwards verbatim. Anything else returns
// ("", 0, nil) so the caller wraps it generically.
func mapS3Error(err error) (label string, passStatus int, mapped error) {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return "not_found", 0, ErrObjectNotFound
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case 404:
			return "not_found", 0, ErrObjectNotFound
		case 304:
			return "not_modified", 304, nil
		case 301:
			return "moved", 301, nil
		case 416:
			return "bad_range", 416, nil
		}
	}
	return "", 0, nil
}

// cancelOnClose ties a fetch's timeout context to the response body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

var _ ObjectBackend = (*S3Backend)(nil)
