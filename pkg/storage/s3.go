package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// MaxAdFileSize caps ad creative uploads at 50MB.
	MaxAdFileSize = 50 * 1024 * 1024
	// FolderAds is the S3 prefix for ad objects.
	FolderAds = "ads"

	uploadPartSize = 5 * 1024 * 1024
)

// creativeFormats lists the image and video types an ad creative may use. Aliases map onto one stored type.
var creativeFormats = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AdsBucket            string
	PresignExpireMinutes int
	CDNHost              string
}

// S3 stores ad creatives in a public-read bucket and hands out pre-signed upload URLs.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client. Without static keys it falls back to the default credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	logger.Info("creative storage ready",
		zap.String("region", cfg.Region),
		zap.String("bucket", cfg.AdsBucket),
		zap.Bool("static_credentials", cfg.AccessKeyID != ""),
	)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) { u.PartSize = uploadPartSize }),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// CreativeContentType resolves the MIME type an upload is stored with. A recognised declared type
// wins, otherwise the extension decides. ok is false when neither names an image or video creative.
func CreativeContentType(declared, filename string) (string, bool) {
	declared, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(declared)), ";")
	declared = strings.TrimSpace(declared)
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	for _, ct := range creativeFormats {
		if ct == declared {
			return ct, true
		}
	}
	ct, ok := creativeFormats[strings.ToLower(path.Ext(filename))]
	return ct, ok
}

// AdKey returns the S3 object key for an ad creative: ads/{ref}/{filename}.
func AdKey(ref, filename string) string {
	return path.Join(FolderAds, path.Base(ref), path.Base(filename))
}

// BucketHost returns the virtual-hosted S3 host of a bucket.
func BucketHost(bucket, region string) string {
	return fmt.Sprintf("%s.s3.%s.amazonaws.com", bucket, region)
}

// MediaHosts returns the hosts that serve ad creatives directly (bucket host and optional CDN).
func (s *S3) MediaHosts() []string {
	hosts := []string{BucketHost(s.cfg.AdsBucket, s.cfg.Region)}
	if s.cfg.CDNHost != "" {
		hosts = append(hosts, s.cfg.CDNHost)
	}
	return hosts
}

// GeneratePresignedUploadURL returns a pre-signed PUT URL for direct upload to the ads bucket.
func (s *S3) GeneratePresignedUploadURL(ctx context.Context, key, contentType string) (string, time.Duration, error) {
	expires := s.PresignExpire()
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AdsBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", 0, fmt.Errorf("presign put: %w", err)
	}
	return req.URL, expires, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PublicObjectURL returns the public URL for an ad object, preferring the CDN host.
func (s *S3) PublicObjectURL(key string) string {
	if s.cfg.CDNHost != "" {
		return fmt.Sprintf("https://%s/%s", s.cfg.CDNHost, key)
	}
	return fmt.Sprintf("https://%s/%s", BucketHost(s.cfg.AdsBucket, s.cfg.Region), key)
}

// UploadAd streams an ad creative to the ads bucket with a public-read ACL and returns its public URL.
func (s *S3) UploadAd(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error) {
	var contentLengthPtr *int64
	if contentLength > 0 {
		contentLengthPtr = &contentLength
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.AdsBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: contentLengthPtr,
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.PublicObjectURL(key), nil
}

// DeleteAd removes an ad object from the ads bucket.
func (s *S3) DeleteAd(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AdsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
