package objstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Store_ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad config")
	}
	defer func() { loadDefaultAWSConfig = orig }()

	_, err := NewS3Store(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws config error")
}

func TestNewS3Store_ClientOptions(t *testing.T) {
	var gotEndpoint string
	var gotPathStyle bool

	origLoad := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	origNew := newS3ClientFromConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		o := &s3.Options{}
		for _, fn := range optFns {
			fn(o)
		}
		if o.BaseEndpoint != nil {
			gotEndpoint = *o.BaseEndpoint
		}
		gotPathStyle = o.UsePathStyle
		return s3.NewFromConfig(cfg, optFns...)
	}
	defer func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	}()

	store, err := NewS3Store(context.Background(), Options{
		Bucket:       "journal",
		Region:       "us-east-1",
		BaseEndpoint: "http://127.0.0.1:9000/",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/", gotEndpoint)
	assert.True(t, gotPathStyle)
	assert.Equal(t, "http://127.0.0.1:9000", store.baseURL)
}

func TestPublicURL_PureJoin(t *testing.T) {
	store := &S3Store{bucket: "journal", baseURL: "http://127.0.0.1:9000"}
	assert.Equal(t,
		"http://127.0.0.1:9000/journal/u1/1735257599000-ab12.png",
		store.PublicURL("u1/1735257599000-ab12.png"))
}
