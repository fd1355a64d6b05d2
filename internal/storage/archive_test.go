package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/domain"
)

type recordingObjects struct {
	in   *s3.PutObjectInput
	body string
}

func (r *recordingObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	r.in = in
	raw, _ := io.ReadAll(in.Body)
	r.body = string(raw)
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	doc := domain.Document{Code: "OWU/GAP 1", MimeType: "application/pdf"}
	assert.Equal(t, "policies/production/P-1/OWU_GAP_1.pdf", Key(domain.EnvironmentProduction, "P-1", doc))

	doc.MimeType = ""
	assert.Equal(t, "policies/test/P-1/OWU_GAP_1", Key(domain.EnvironmentTest, "P-1", doc))
}

func TestPut(t *testing.T) {
	objects := &recordingObjects{}
	archive := &DocumentArchive{bucket: "policies", objects: objects}

	err := archive.Put(context.Background(), "policies/test/P-1/doc.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "policies", aws.ToString(objects.in.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(objects.in.ContentType))
	assert.EqualValues(t, 8, aws.ToInt64(objects.in.ContentLength))
	assert.Equal(t, "%PDF-1.7", objects.body)
}

func TestNewDocumentArchive(t *testing.T) {
	archive, err := NewDocumentArchive(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, archive)

	archive, err = NewDocumentArchive(context.Background(), config.StorageConfig{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "eu-central-1",
		Bucket:    "policies",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	require.NotNil(t, archive)

	url, err := archive.PresignGet(context.Background(), "policies/test/P-1/doc.pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:9000/policies/policies/test/P-1/doc.pdf?"))
	assert.Contains(t, url, "X-Amz-Expires=300")
}
