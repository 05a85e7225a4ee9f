// Package audio stores generated text-to-speech objects in an S3-compatible
// (R2) bucket, keeping the server stateless across restarts and deploys.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MaxAudioSize caps a single generated audio object.
const MaxAudioSize = 50 << 20 // 50 MB

// ContentTypes maps the audio extensions we serve to their MIME types.
var ContentTypes = map[string]string{
	"mp3": "audio/mpeg",
	"wav": "audio/wav",
	"ogg": "audio/ogg",
	"m4a": "audio/mp4",
}

// Object describes a stored audio stream.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time
}

// Store wraps the bucket that holds generated audio.
type Store struct {
	client *s3.Client
	bucket string
}

// NewStore initializes the R2 client using static credentials and a custom
// endpoint.
func NewStore(accessKey, secretKey, accountID, bucketName, region string) (*Store, error) {
	if accessKey == "" || secretKey == "" || accountID == "" {
		return nil, errors.New("audio: R2 credentials not configured")
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	cfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		Region:      region,
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	log.Println("Successfully initialized audio bucket client")

	return &Store{client: client, bucket: bucketName}, nil
}

// Put uploads an audio object. length may be -1 when unknown.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("audio: put %s: %w", key, err)
	}
	return nil
}

// Get opens an audio object for streaming. The caller owns Body.
func (s *Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("audio: get %s: %w", key, err)
	}
	obj := &Object{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}
	if out.ContentLength != nil {
		obj.ContentLength = *out.ContentLength
	}
	if out.LastModified != nil {
		obj.LastModified = *out.LastModified
	}
	return obj, nil
}

// Exists checks whether a given object key exists in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns object keys under a prefix, used by the debug endpoint.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("audio: list %s: %w", prefix, err)
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return keys, nil
}

// ErrNotFound marks a missing audio object.
var ErrNotFound = errors.New("audio: object not found")

var objectNameChars = regexp.MustCompile(`[^a-z0-9_.-]`)
var underscoreRuns = regexp.MustCompile(`_+`)

// ObjectName builds the stored name for a generated audio file. The fileId
// is embedded so ownership can be re-verified from the name alone.
func ObjectName(wallet, fileID, originalFilename string, now time.Time) string {
	base := originalFilename
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	name := fmt.Sprintf("%s_%s_%s_audio_%d.mp3", wallet, fileID, base, now.UnixMilli())
	name = objectNameChars.ReplaceAllString(strings.ToLower(name), "_")
	return underscoreRuns.ReplaceAllString(name, "_")
}

// FileIDFromName recovers the embedded fileId from a generated object name.
func FileIDFromName(name string) (string, error) {
	m := fileIDPattern.FindString(name)
	if m == "" {
		return "", fmt.Errorf("audio: no file id in %q", name)
	}
	return m, nil
}

var fileIDPattern = regexp.MustCompile(`file_\d{13}_[0-9a-f]{8}`)
