package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func stubClock(t *testing.T) {
	t.Helper()
	orig := now
	now = func() time.Time { return time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestStorageKey(t *testing.T) {
	stubClock(t)
	key := StorageKey("/tmp/Avatar.PNG")
	assert.Regexp(t, regexp.MustCompile(`^profiles/2025/03/07/[0-9a-f-]{36}\.png$`), key)
	assert.NotEqual(t, key, StorageKey("/tmp/Avatar.PNG"))
}

func TestUpload_PutsObjectAndReturnsURL(t *testing.T) {
	stubClock(t)
	fp := &fakePutter{}
	u := &S3Uploader{client: fp, bucket: "avatars", endpoint: "http://minio:9000"}

	path := writeFile(t, "me.png", []byte("\x89PNG\r\n\x1a\nrest"))
	url, err := u.Upload(context.Background(), path)
	require.NoError(t, err)

	require.NotNil(t, fp.in)
	assert.Equal(t, "avatars", aws.ToString(fp.in.Bucket))
	assert.Equal(t, "image/png", aws.ToString(fp.in.ContentType))
	assert.EqualValues(t, 12, aws.ToInt64(fp.in.ContentLength))
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nrest"), fp.body)
	assert.Equal(t, "http://minio:9000/avatars/"+aws.ToString(fp.in.Key), url)
}

func TestUpload_SniffsUnknownExtension(t *testing.T) {
	fp := &fakePutter{}
	u := &S3Uploader{client: fp, bucket: "b", endpoint: "http://e"}

	data := []byte("GIF89a......")
	path := writeFile(t, "upload.bin-unknown", data)
	_, err := u.Upload(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "image/gif", aws.ToString(fp.in.ContentType))
	assert.Equal(t, data, fp.body, "body must be rewound after sniffing")
}

func TestUpload_Errors(t *testing.T) {
	u := &S3Uploader{client: &fakePutter{err: errors.New("access denied")}, bucket: "b", endpoint: "http://e"}

	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	path := writeFile(t, "a.jpg", []byte("x"))
	_, err = u.Upload(context.Background(), path)
	require.ErrorContains(t, err, "access denied")
}

func TestNewS3Uploader_ConfiguresClient(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		var lo config.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user", creds.AccessKeyID)
		assert.Equal(t, "pass", creds.SecretAccessKey)
		return aws.Config{}, nil
	}
	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &fakePutter{}
	}

	u, err := NewS3Uploader(context.Background(), Settings{
		User: "user", Password: "pass", Bucket: "avatars", Region: "eu-central-1", BaseEndpoint: "http://minio:9000/",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", u.endpoint)
	assert.Equal(t, "http://minio:9000/", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Uploader_Errors(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), Settings{})
	require.Error(t, err)

	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Uploader(context.Background(), Settings{Bucket: "b"})
	require.ErrorContains(t, err, "no config")
}
