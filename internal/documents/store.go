package documents

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"autoquote/internal/config"
)

// LocalStore writes documents under a directory and returns their path.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Put(_ context.Context, name string, content []byte, _ string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filepath.Base(name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads documents under the quotes/ prefix of a bucket.
type S3Store struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
}

func NewS3Store(ctx context.Context, cfg config.Config) (*S3Store, error) {
	if err := cfg.Require("S3_BUCKET", cfg.S3Bucket); err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	base := cfg.S3PublicBaseURL
	if base == "" {
		if cfg.S3Endpoint != "" {
			base = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
		}
	}
	return &S3Store{client: client, bucket: cfg.S3Bucket, publicBaseURL: strings.TrimRight(base, "/")}, nil
}

func (s *S3Store) Put(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	key := "quotes/" + filepath.Base(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	log.Debug().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(content)).Msg("document uploaded")
	return s.publicBaseURL + "/" + key, nil
}

// Store is satisfied by both back ends.
type Store interface {
	Put(ctx context.Context, name string, content []byte, contentType string) (string, error)
}

// New picks the back end named by DOCUMENT_STORE ("local" or "s3").
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DocumentStore)) {
	case "", "local":
		return NewLocalStore(filepath.Join(cfg.OutputDir, "quotes")), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown DOCUMENT_STORE %q", cfg.DocumentStore)
	}
}
