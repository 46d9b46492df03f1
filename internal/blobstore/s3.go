package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"audioindex/internal/audio"
	"audioindex/internal/config"
)

// S3Options configures an S3 store.
type S3Options struct {
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	CacheControl  string
}

// S3 stores blobs in a bucket through any S3 compatible API.
type S3 struct {
	api  s3iface.S3API
	opts S3Options
}

// NewS3 wraps an existing client. Tests pass a stub implementing s3iface.S3API.
func NewS3(api s3iface.S3API, opts S3Options) *S3 {
	opts.Prefix = strings.Trim(opts.Prefix, "/")
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &S3{api: api, opts: opts}
}

// NewS3FromConfig builds a session from the [storage] section.
func NewS3FromConfig(cfg config.Storage) (*S3, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" || cfg.SecretKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, audio.Wrap(audio.ErrStorage, "blobstore", "open", "create s3 session", err)
	}
	return NewS3(s3.New(sess), S3Options{
		Bucket:        cfg.Bucket,
		Prefix:        cfg.Prefix,
		Region:        cfg.Region,
		Endpoint:      cfg.Endpoint,
		PublicBaseURL: cfg.PublicBaseURL,
		CacheControl:  "public, max-age=31536000, immutable",
	}), nil
}

// Put uploads body to <prefix>/<key>.
func (s *S3) Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) (Object, error) {
	size, err := contentLength(body)
	if err != nil {
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", "measure payload", err)
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if s.opts.CacheControl != "" {
		input.CacheControl = aws.String(s.opts.CacheControl)
	}
	if _, err := s.api.PutObjectWithContext(ctx, input); err != nil {
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", fmt.Sprintf("upload %s", key), err)
	}
	return Object{Key: key, URL: s.ResolveURL(key), Size: size}, nil
}

// Remove deletes the object. S3 reports success for missing keys; NoSuchKey
// from stricter implementations is treated the same way.
func (s *S3) Remove(ctx context.Context, keyOrURL string) error {
	key := s.keyFrom(keyOrURL)
	if key == "" {
		return nil
	}
	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil
		}
		return audio.Wrap(audio.ErrStorage, "blobstore", "remove", fmt.Sprintf("delete %s", key), err)
	}
	return nil
}

// Ping checks that the bucket exists and the credentials can reach it.
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)})
	if err != nil {
		return audio.Wrap(audio.ErrStorage, "blobstore", "ping", "head bucket "+s.opts.Bucket, err)
	}
	return nil
}

// ResolveURL prefers the configured public base URL, then a path-style URL
// on the custom endpoint, then the virtual-hosted AWS URL.
func (s *S3) ResolveURL(key string) string {
	objectKey := s.objectKey(key)
	switch {
	case s.opts.PublicBaseURL != "":
		return s.opts.PublicBaseURL + "/" + escapeKey(objectKey)
	case s.opts.Endpoint != "":
		return s.opts.Endpoint + "/" + s.opts.Bucket + "/" + escapeKey(objectKey)
	default:
		region := s.opts.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, region, escapeKey(objectKey))
	}
}

func (s *S3) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.opts.Prefix == "" {
		return key
	}
	return s.opts.Prefix + "/" + key
}

// keyFrom accepts either a storage key or a URL produced by ResolveURL.
func (s *S3) keyFrom(keyOrURL string) string {
	value := strings.TrimSpace(keyOrURL)
	if !strings.Contains(value, "://") {
		return strings.TrimLeft(value, "/")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return ""
	}
	objectKey := strings.TrimLeft(parsed.Path, "/")
	if s.opts.PublicBaseURL == "" && s.opts.Endpoint != "" {
		objectKey = strings.TrimPrefix(objectKey, s.opts.Bucket+"/")
	} else if base, err := url.Parse(s.opts.PublicBaseURL); err == nil && base.Path != "" {
		objectKey = strings.TrimPrefix(objectKey, strings.Trim(base.Path, "/")+"/")
	}
	if s.opts.Prefix != "" {
		objectKey = strings.TrimPrefix(objectKey, s.opts.Prefix+"/")
	}
	return objectKey
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
