package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FolderLogos is the S3 prefix for sponsor logo objects.
const FolderLogos = "sponsors"

// AllowedLogoTypes maps accepted logo MIME types to the stored extension.
var AllowedLogoTypes = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	LogosBucket          string
	PresignExpireMinutes int
}

// S3 issues pre-signed logo uploads and removes replaced logos.
type S3 struct {
	client *s3.Client
	cfg    S3Config
	logger *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("logos_bucket", cfg.LogosBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(awsCfg), cfg: cfg, logger: logger}, nil
}

// LogoExtension returns the stored extension for contentType, or false if the type is not accepted.
func LogoExtension(contentType string) (string, bool) {
	ext, ok := AllowedLogoTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// LogoKey returns sponsors/{user_id}/{random}{ext}. A fresh name per upload keeps
// the previous logo addressable until the cleanup job removes it.
func LogoKey(userID uuid.UUID, ext string) string {
	return path.Join(FolderLogos, userID.String(), uuid.NewString()+ext)
}

// PresignLogoUpload returns a pre-signed PUT URL for key and the public URL the object will have.
func (s *S3) PresignLogoUpload(ctx context.Context, key, contentType string) (uploadURL, publicURL string, err error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.LogosBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, s.PublicObjectURL(key), nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PublicObjectURL returns the public URL for an object in the logos bucket.
func (s *S3) PublicObjectURL(key string) string {
	return publicURL(s.cfg.LogosBucket, s.cfg.Region, key)
}

// KeyFromURL extracts the object key from a public logos-bucket URL. Logos
// hosted anywhere else are reported as not ours.
func (s *S3) KeyFromURL(rawURL string) (string, bool) {
	return keyFromURL(s.cfg.LogosBucket, s.cfg.Region, rawURL)
}

// DeleteLogo removes a logo by its public URL. Foreign URLs are ignored.
func (s *S3) DeleteLogo(ctx context.Context, logoURL string) error {
	key, ok := s.KeyFromURL(logoURL)
	if !ok {
		s.logger.Debug("skip delete of foreign logo", zap.String("logo_url", logoURL))
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.LogosBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	s.logger.Info("logo deleted", zap.String("key", key))
	return nil
}

func publicURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

func keyFromURL(bucket, region, rawURL string) (string, bool) {
	prefix := publicURL(bucket, region, "")
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, prefix)
	if key == "" || !strings.HasPrefix(key, FolderLogos+"/") {
		return "", false
	}
	return key, true
}
