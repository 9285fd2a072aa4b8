// internal/common/storage/s3.go
// Presigned S3 uploads for room media

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// Upload describes where a client should PUT a media file and where it will be served from
type Upload struct {
	UploadURL string    `json:"uploadUrl"`
	MediaURL  string    `json:"mediaUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Presigner issues upload URLs
type Presigner interface {
	PresignUpload(ctx context.Context, prefix, contentType string) (*Upload, error)
}

// S3Config holds bucket settings
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	CDNURL          string
	URLExpiry       time.Duration
}

type s3Presigner struct {
	client *s3.S3
	bucket string
	cdnURL string
	expiry time.Duration
	now    func() time.Time
}

var extensions = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/aac":  ".aac",
	"audio/ogg":  ".ogg",
	"audio/wav":  ".wav",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// AllowedContentType reports whether contentType can be uploaded
func AllowedContentType(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}

// NewS3Presigner creates a presigner backed by an AWS session
func NewS3Presigner(config *S3Config) (Presigner, error) {
	awsConfig := &aws.Config{Region: aws.String(config.Region)}
	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	expiry := config.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	cdnURL := config.CDNURL
	if cdnURL == "" {
		cdnURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", config.Bucket, config.Region)
	}

	return &s3Presigner{
		client: s3.New(sess),
		bucket: config.Bucket,
		cdnURL: cdnURL,
		expiry: expiry,
		now:    time.Now,
	}, nil
}

func (p *s3Presigner) PresignUpload(ctx context.Context, prefix, contentType string) (*Upload, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("content type %s not allowed", contentType)
	}

	now := p.now().UTC()
	key := fmt.Sprintf("%s/%s/%s%s", prefix, now.Format("2006/01/02"), uuid.New().String(), ext)

	req, _ := p.client.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	req.SetContext(ctx)

	url, err := req.Presign(p.expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &Upload{
		UploadURL: url,
		MediaURL:  fmt.Sprintf("%s/%s", p.cdnURL, key),
		Key:       key,
		ExpiresAt: now.Add(p.expiry),
	}, nil
}
