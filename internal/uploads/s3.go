package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const filenameMetaKey = "filename"

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// PresignAPI signs GET requests for stored objects.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps images as objects in one bucket and hands out presigned
// URLs so the generation service can fetch them without inline bytes.
type S3Store struct {
	client  S3API
	presign PresignAPI
	bucket  string
	prefix  string
	expires time.Duration
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket  string
	Prefix  string
	Expires time.Duration
}

func NewS3Store(client S3API, presign PresignAPI, opts S3Options) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("uploads: s3 client is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("uploads: s3 bucket is required")
	}
	expires := opts.Expires
	if expires <= 0 {
		expires = time.Hour
	}
	prefix := strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	if prefix == "" {
		prefix = "uploads"
	}
	return &S3Store{client: client, presign: presign, bucket: bucket, prefix: prefix, expires: expires}, nil
}

func (s *S3Store) Put(ctx context.Context, key Key, img Image) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	img = prepare(img)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.MIMEType),
		Metadata:    map[string]string{filenameMetaKey: img.Filename},
	})
	if err != nil {
		return fmt.Errorf("uploads: s3 put %s: %w", objectKey, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key Key) (*Image, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("uploads: s3 get %s: %w", objectKey, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("uploads: s3 read %s: %w", objectKey, err)
	}
	img := &Image{
		Data:     data,
		MIMEType: aws.ToString(out.ContentType),
		Filename: out.Metadata[filenameMetaKey],
	}
	if out.LastModified != nil {
		img.StoredAt = out.LastModified.UTC()
	}
	return img, nil
}

// URL returns a presigned GET URL for the stored object. A HEAD request
// confirms the object exists, so a missing upload yields ErrNotFound.
func (s *S3Store) URL(ctx context.Context, key Key) (string, error) {
	if s.presign == nil {
		return "", errors.New("uploads: s3 presign client not configured")
	}
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var (
			notFound *types.NotFound
			noKey    *types.NoSuchKey
		)
		if errors.As(err, &notFound) || errors.As(err, &noKey) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("uploads: s3 head %s: %w", objectKey, err)
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		return "", fmt.Errorf("uploads: presign %s: %w", objectKey, err)
	}
	return req.URL, nil
}

func (s *S3Store) objectKey(key Key) (string, error) {
	p, err := key.Path()
	if err != nil {
		return "", err
	}
	return s.prefix + "/" + p, nil
}
