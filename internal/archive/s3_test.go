package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePut struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePut) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Archive(t *testing.T) {
	fake := &fakePut{}
	a := NewS3WithClient(fake, "ledger-bucket", "ap-northeast-2", "ledger-uploads")

	loc, err := a.Archive(context.Background(), "run-1/ledger.xlsx", "", []byte("data"))
	require.NoError(t, err)

	assert.Equal(t, "ledger-uploads/run-1/ledger.xlsx", aws.ToString(fake.in.Key))
	assert.Equal(t, "ledger-bucket", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "application/octet-stream", aws.ToString(fake.in.ContentType))
	assert.Equal(t, []byte("data"), fake.body)
	assert.Equal(t, "https://ledger-bucket.s3.ap-northeast-2.amazonaws.com/ledger-uploads/run-1/ledger.xlsx", loc)
}

func TestS3_ArchiveError(t *testing.T) {
	a := NewS3WithClient(&fakePut{err: errors.New("access denied")}, "b", "r", "")

	_, err := a.Archive(context.Background(), "k", "text/csv", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), "", "ap-northeast-2", "")
	assert.Error(t, err)
}
