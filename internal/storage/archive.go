// Package storage copies generated policy documents into S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/domain"
)

// maxDocumentSize caps a single archived document.
const maxDocumentSize = 32 << 20

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// DocumentArchive stores documents under policies/{environment}/{policyId}/.
type DocumentArchive struct {
	bucket  string
	objects objectAPI
	presign presignAPI
}

// NewDocumentArchive builds an S3 client from cfg. Returns nil when archiving is disabled.
func NewDocumentArchive(ctx context.Context, cfg config.StorageConfig) (*DocumentArchive, error) {
	if !cfg.ArchiveEnabled() {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &DocumentArchive{bucket: cfg.Bucket, objects: client, presign: s3.NewPresignClient(client)}, nil
}

// Key returns the object key of a document.
func Key(env domain.Environment, policyID string, doc domain.Document) string {
	name := sanitize(doc.Code)
	if exts, _ := mime.ExtensionsByType(doc.MimeType); len(exts) > 0 && path.Ext(name) == "" {
		name += exts[0]
	}
	return path.Join("policies", strings.ToLower(string(env)), sanitize(policyID), name)
}

// Put uploads one document body under key.
func (a *DocumentArchive) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(body, maxDocumentSize+1))
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if len(raw) > maxDocumentSize {
		return fmt.Errorf("document %s exceeds %d bytes", key, maxDocumentSize)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(raw),
		ContentLength: aws.Int64(int64(len(raw))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := a.objects.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL.
func (a *DocumentArchive) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
