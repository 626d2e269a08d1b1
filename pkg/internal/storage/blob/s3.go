package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/errs"
	s3c "github.com/yeisme/papervault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/papervault/pkg/log"
)

// S3Store 基于 aws-sdk-go-v2 的对象存储.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      configs.S3Config
	prefix   string
}

// NewS3Store 创建 AWS S3（或兼容服务）对象存储，必要时创建存储桶并设置公开读策略.
func NewS3Store(ctx context.Context, cfg *configs.S3Config) (*S3Store, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.GetEndpointURL()
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	st := &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      *cfg,
		prefix:   normalizePrefix(cfg.KeyPrefix),
	}

	if err := st.ensureBucket(ctx, region); err != nil {
		return nil, err
	}

	if cfg.PublicRead {
		policy, err := s3c.PublicReadPolicy(cfg.BucketName, st.prefix)
		if err != nil {
			return nil, err
		}

		if _, err := client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(cfg.BucketName),
			Policy: aws.String(policy),
		}); err != nil {
			return nil, fmt.Errorf("set public read policy on %s: %w", cfg.BucketName, err)
		}
	}

	nlog.Logger().Info().Str("bucket", cfg.BucketName).Str("region", region).Msg("aws s3 connected")

	return st, nil
}

func (s *S3Store) ensureBucket(ctx context.Context, region string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.BucketName)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) && !strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("check bucket %s: %w", s.cfg.BucketName, err)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.cfg.BucketName)}
	if region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}

		return fmt.Errorf("create bucket %s: %w", s.cfg.BucketName, err)
	}

	return nil
}

func (s *S3Store) Upload(ctx context.Context, data []byte, proposedName, mimeType string) (*ObjectRef, error) {
	key := NewKey(s.prefix, proposedName)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, errs.Storage("blob.upload", fmt.Errorf("put object %s: %w", key, err))
	}

	meta, err := s.head(ctx, key)
	if err != nil {
		return nil, errs.Storage("blob.upload", fmt.Errorf("confirm object %s: %w", key, err))
	}

	return &ObjectRef{
		Key:         key,
		URL:         s.cfg.PublicURL(key),
		Size:        meta.Size,
		ContentType: meta.ContentType,
		ETag:        meta.ETag,
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil && !isAWSNotFound(err) {
		return errs.Storage("blob.delete", fmt.Errorf("delete object %s: %w", key, err))
	}

	return nil
}

func (s *S3Store) FetchMetadata(ctx context.Context, key string) (*ObjectMetadata, error) {
	meta, err := s.head(ctx, key)
	if err != nil {
		if isAWSNotFound(err) {
			return nil, errs.NotFound("blob.fetch_metadata", fmt.Errorf("object %s: %w", key, errs.ErrNotFound))
		}

		return nil, errs.Storage("blob.fetch_metadata", fmt.Errorf("head object %s: %w", key, err))
	}

	return meta, nil
}

func (s *S3Store) head(ctx context.Context, key string) (*ObjectMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}

	return &ObjectMetadata{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), "\""),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectMetadata, error) {
	out := make([]ObjectMetadata, 0)

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.BucketName),
		Prefix: aws.String(prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errs.Storage("blob.list", fmt.Errorf("list objects %s: %w", prefix, err))
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}

			out = append(out, ObjectMetadata{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), "\""),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return out, nil
}

func (s *S3Store) Prefix() string { return s.prefix }

func (s *S3Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.BucketName)}); err != nil {
		return errs.Storage("blob.health", err)
	}

	return nil
}

func isAWSNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}

	return false
}
