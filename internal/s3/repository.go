package s3

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"
)

type Option func(*Repository)

func WithRegion(region string) Option {
	return func(r *Repository) {
		r.Region = region
	}
}

func WithBucket(bucket string) Option {
	return func(r *Repository) {
		r.Bucket = bucket
	}
}

func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.Prefix = prefix
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

func WithForcePathStyle(forcePathStyle bool) Option {
	return func(r *Repository) {
		r.ForcePathStyle = forcePathStyle
	}
}

func WithEndpoint(endpoint string) Option {
	return func(r *Repository) {
		r.Endpoint = endpoint
	}
}

// WithPublicURL overrides the URL base the stored objects are served from,
// for buckets fronted by a CDN or reverse proxy.
func WithPublicURL(url string) Option {
	return func(r *Repository) {
		r.PublicURL = strings.TrimSuffix(url, "/")
	}
}

// Repository stores archives and metadata documents in a public S3 bucket.
type Repository struct {
	logger   *zap.Logger
	client   *awss3.S3
	uploader *s3manager.Uploader

	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	PublicURL      string
	ForcePathStyle bool
}

func New(opts ...Option) *Repository {
	r := &Repository{
		logger: zap.NewNop(),
	}

	for _, o := range opts {
		o(r)
	}

	awsConfig := &aws.Config{
		Region:           aws.String(r.Region),
		S3ForcePathStyle: aws.Bool(r.ForcePathStyle),
	}

	if r.Endpoint != "" {
		awsConfig.Endpoint = aws.String(r.Endpoint)
	}

	sess, _ := session.NewSession(awsConfig)
	r.client = awss3.New(sess)
	r.uploader = s3manager.NewUploader(sess)

	return r
}

func (r *Repository) Store(ctx context.Context, key string, reader io.Reader) (string, error) {
	objPath := path.Join(r.Prefix, key)

	r.logger.Debug(
		"s3 store",
		zap.String("key", key),
		zap.String("object_path", objPath),
		zap.String("bucket", r.Bucket),
	)

	_, err := r.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(objPath),
		Body:   bufio.NewReader(reader),
	})
	if err != nil {
		return "", err
	}
	return r.URL(key), nil
}

func (r *Repository) URL(key string) string {
	objPath := path.Join(r.Prefix, key)
	if r.PublicURL != "" {
		return r.PublicURL + "/" + objPath
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", r.Bucket, r.Region, objPath)
}

func (r *Repository) Exists(ctx context.Context, key string) (bool, error) {
	objPath := path.Join(r.Prefix, key)
	_, err := r.client.HeadObjectWithContext(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(r.Bucket),
		Key:    aws.String(objPath),
	})
	if err != nil {
		if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == 404 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
