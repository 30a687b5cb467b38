package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3(t *testing.T, private bool) *S3 {
	t.Helper()
	s, err := NewS3(context.Background(), S3Config{
		Region:          "us-east-1",
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "test-secret",
		CreativesBucket: "room-creatives",
		PrivateBucket:   private,
	}, nil)
	require.NoError(t, err)
	return s
}

func TestResolveCreativeURL_PublicBucket(t *testing.T) {
	s := newTestS3(t, false)
	url, err := s.ResolveCreativeURL(context.Background(), "creatives/ad-1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://room-creatives.s3.us-east-1.amazonaws.com/creatives/ad-1.png", url)
}

func TestResolveCreativeURL_PrivateBucketPresigns(t *testing.T) {
	s := newTestS3(t, true)
	url, err := s.ResolveCreativeURL(context.Background(), "creatives/ad-1.png")
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "X-Amz-Signature="), "expected a pre-signed URL, got %s", url)
	assert.True(t, strings.Contains(url, "creatives/ad-1.png"))
}
