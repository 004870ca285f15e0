package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

func (c Config) validate() error {
	var errs []error
	if c.Bucket == "" {
		errs = append(errs, errors.New("s3 bucket is required"))
	}
	if c.Region == "" {
		errs = append(errs, errors.New("s3 region is required"))
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		errs = append(errs, errors.New("s3 credentials are required"))
	}
	if c.PublicBaseURL == "" {
		errs = append(errs, errors.New("s3 public base url is required"))
	}
	return errors.Join(errs...)
}

// maxDownloadBytes caps provider images copied into the bucket.
const maxDownloadBytes = 25 << 20

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/webp": ".webp",
}

// Uploader copies generated artwork into S3-compatible object storage.
// Objects are public and keyed by prefix/yyyy/mm/dd/uuid.ext.
type Uploader struct {
	cfg        Config
	client     *s3.Client
	httpClient *http.Client
	now        func() time.Time
}

func NewUploader(cfg Config) (*Uploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "generations"
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Uploader{
		cfg:        cfg,
		client:     client,
		httpClient: &http.Client{Timeout: time.Minute},
		now:        time.Now,
	}, nil
}

// Upload stores data under a fresh key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("no data to upload")
	}
	if contentType == "" {
		contentType = "image/png"
	}

	key := objectKey(u.cfg.Prefix, u.now().UTC(), uuid.NewString(), contentType)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPublicRead,
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return u.publicURL(key), nil
}

// UploadFromURL downloads sourceURL and re-hosts it in the bucket.
func (u *Uploader) UploadFromURL(ctx context.Context, sourceURL string) (string, error) {
	data, contentType, err := u.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	return u.Upload(ctx, data, contentType)
}

func (u *Uploader) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download image: status=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	switch {
	case err != nil:
		return nil, "", fmt.Errorf("read image: %w", err)
	case len(data) > maxDownloadBytes:
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxDownloadBytes)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		mediaType = http.DetectContentType(data)
	}
	return data, mediaType, nil
}

func (u *Uploader) publicURL(key string) string {
	return strings.TrimRight(u.cfg.PublicBaseURL, "/") + "/" + key
}

func objectKey(prefix string, now time.Time, id, contentType string) string {
	day := now.Format("2006/01/02")
	return path.Join(strings.Trim(prefix, "/"), day, id+extensionFromContentType(contentType))
}

func extensionFromContentType(contentType string) string {
	if ext, ok := extensions[strings.ToLower(contentType)]; ok {
		return ext
	}
	return ".bin"
}
