package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeObjects()
	s := &S3Store{Client: fake, Bucket: "reports", Prefix: "crypto"}

	_, err := s.Get(ctx, "crypto_portfolio.xlsx")
	require.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, s.Put(ctx, "crypto_portfolio.xlsx", []byte("book")))
	assert.Contains(t, fake.objects, "reports/crypto/crypto_portfolio.xlsx")
	assert.Contains(t, fake.types["reports/crypto/crypto_portfolio.xlsx"], "spreadsheetml")

	got, err := s.Get(ctx, "crypto_portfolio.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "book", string(got))
	assert.Equal(t, "s3://reports/crypto", s.Name())
}

func TestS3StoreNoPrefix(t *testing.T) {
	fake := newFakeObjects()
	s := &S3Store{Client: fake, Bucket: "reports"}
	require.NoError(t, s.Put(context.Background(), "history.parquet", []byte("p")))
	assert.Contains(t, fake.objects, "reports/history.parquet")
	assert.Equal(t, "application/octet-stream", fake.types["reports/history.parquet"])
}
