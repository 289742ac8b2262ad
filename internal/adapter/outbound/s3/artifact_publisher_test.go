package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/imagegen/internal/model"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestArtifactPublisher_Publish(t *testing.T) {
	artifact := &model.Artifact{Data: []byte("png-bytes"), MimeType: "image/png", Public: true}

	t.Run("uploads with content type", func(t *testing.T) {
		putter := &fakePutter{}
		p := NewArtifactPublisher(putter, Config{
			Bucket:        "images",
			PublicBaseURL: "https://cdn.example.com/",
		})

		url, err := p.Publish(context.Background(), "task-1", artifact)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/generations/task-1.png", url)

		assert.Equal(t, "images", aws.ToString(putter.input.Bucket))
		assert.Equal(t, "generations/task-1.png", aws.ToString(putter.input.Key))
		assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))
		assert.Equal(t, int64(9), aws.ToInt64(putter.input.ContentLength))
		assert.Equal(t, []byte("png-bytes"), putter.body)
	})

	t.Run("falls back to endpoint url", func(t *testing.T) {
		p := NewArtifactPublisher(&fakePutter{}, Config{
			Endpoint: "http://localhost:9000",
			Bucket:   "images",
			Prefix:   "public/",
		})

		url, err := p.Publish(context.Background(), "t2", artifact)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000/images/public/t2.png", url)
	})

	t.Run("s3 url without endpoint", func(t *testing.T) {
		p := NewArtifactPublisher(&fakePutter{}, Config{Bucket: "images"})

		url, err := p.Publish(context.Background(), "t3", artifact)
		require.NoError(t, err)
		assert.Equal(t, "s3://images/generations/t3.png", url)
	})

	t.Run("upload failure", func(t *testing.T) {
		p := NewArtifactPublisher(&fakePutter{err: errors.New("access denied")}, Config{Bucket: "images"})

		_, err := p.Publish(context.Background(), "t4", artifact)
		assert.ErrorContains(t, err, "access denied")
	})

	t.Run("nil artifact", func(t *testing.T) {
		_, err := NewArtifactPublisher(&fakePutter{}, Config{Bucket: "images"}).Publish(context.Background(), "t5", nil)
		assert.Error(t, err)
	})
}

func TestNewClient(t *testing.T) {
	t.Run("incomplete config", func(t *testing.T) {
		_, err := NewClient(context.Background(), Config{Bucket: "images"})
		assert.Error(t, err)
	})

	t.Run("builds client", func(t *testing.T) {
		client, err := NewClient(context.Background(), Config{
			Endpoint:        "http://localhost:9000",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			Bucket:          "images",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestArtifactPublisher_AgainstEndpoint(t *testing.T) {
	var (
		mu        sync.Mutex
		gotMethod string
		gotPath   string
		gotType   string
		gotBody   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := Config{
		Endpoint:        server.URL,
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "images",
	}
	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)

	artifact := &model.Artifact{Data: []byte("png-bytes"), MimeType: "image/png", Public: true}
	url, err := NewArtifactPublisher(client, cfg).Publish(context.Background(), "task-9", artifact)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/images/generations/task-9.png", url)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/images/generations/task-9.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Contains(t, string(gotBody), "png-bytes")
}
