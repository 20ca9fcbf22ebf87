package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/fragstream/iox"
)

// ContentType is the media type recorded on archived journals.
const ContentType = "application/vnd.fragstream.journal+msgpack"

// Archiver uploads a finished journal file.
type Archiver interface {
	// Archive uploads the journal at localPath for sessionID and returns
	// the object key it was stored under.
	Archive(ctx context.Context, localPath, sessionID string) (string, error)
}

// S3Config holds configuration for the S3 archiver.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(strings.TrimPrefix(p, "s3://"), "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix
}

// putObjectAPI is the subset of the S3 client the archiver needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads journals to <bucket>/<prefix>/<session>.journal.
type S3Archiver struct {
	client putObjectAPI
	cfg    S3Config
}

// NewS3Archiver creates an archiver using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3Archiver(s3.NewFromConfig(awsConfig, s3Opts...), cfg), nil
}

func newS3Archiver(client putObjectAPI, cfg S3Config) *S3Archiver {
	return &S3Archiver{client: client, cfg: cfg}
}

// Key returns the object key for sessionID.
func (a *S3Archiver) Key(sessionID string) string {
	return path.Join(a.cfg.Prefix, sessionID+".journal")
}

// Archive implements Archiver.
func (a *S3Archiver) Archive(ctx context.Context, localPath, sessionID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open journal for archive: %w", err)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat journal: %w", err)
	}

	key := a.Key(sessionID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ContentType),
		Metadata:      map[string]string{"session-id": sessionID},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.cfg.Bucket, key, err)
	}
	return key, nil
}

// StubArchiver records Archive calls for testing.
type StubArchiver struct {
	mu    sync.Mutex
	Calls []StubArchiveCall
	Err   error
}

// StubArchiveCall is a recorded Archive call.
type StubArchiveCall struct {
	LocalPath string
	SessionID string
}

// Archive implements Archiver by recording the call.
func (s *StubArchiver) Archive(_ context.Context, localPath, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, StubArchiveCall{LocalPath: localPath, SessionID: sessionID})
	if s.Err != nil {
		return "", s.Err
	}
	return sessionID + ".journal", nil
}

var (
	_ Archiver = (*S3Archiver)(nil)
	_ Archiver = (*StubArchiver)(nil)
)
