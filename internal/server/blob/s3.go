// Package blob uploads profile images to S3-compatible object storage.
package blob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Uploader stores a local file and returns a URL the file can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectPutter {
		return s3.NewFromConfig(cfg, optFns...)
	}

	now = time.Now
)

type Settings struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string
}

type S3Uploader struct {
	client   objectPutter
	bucket   string
	endpoint string
}

// NewS3Uploader builds a client for a MinIO-style endpoint (static
// credentials, path-style addressing).
func NewS3Uploader(ctx context.Context, s Settings) (*S3Uploader, error) {
	if s.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.User,     // MINIO_ROOT_USER
			s.Password, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Uploader{
		client:   client,
		bucket:   s.Bucket,
		endpoint: strings.TrimRight(s.BaseEndpoint, "/"),
	}, nil
}

// StorageKey returns profiles/YYYY/MM/DD/<uuid><ext> for the given file name.
func StorageKey(fileName string) string {
	d := now().UTC()
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("profiles/%04d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("s3: open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("s3: stat %s: %w", localPath, err)
	}

	contentType, err := detectContentType(f, localPath)
	if err != nil {
		return "", err
	}

	key := StorageKey(localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}

	return u.endpoint + "/" + u.bucket + "/" + key, nil
}

// detectContentType prefers the extension and falls back to sniffing. f is
// rewound before returning.
func detectContentType(f *os.File, name string) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("s3: read %s: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("s3: rewind %s: %w", name, err)
	}
	return http.DetectContentType(head[:n]), nil
}
