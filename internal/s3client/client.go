package s3client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	appConfig "s3keyfinder/config"
	"s3keyfinder/internal/models"
)

// S3API is the subset of the S3 client used here, so tests can substitute it.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

type Client struct {
	s3Client S3API
}

func New(ctx context.Context, cfg *appConfig.Config) (*Client, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return NewWithAPI(s3Client), nil
}

func NewWithAPI(api S3API) *Client {
	return &Client{s3Client: api}
}

// ListPage fetches one page of the bucket listing starting at continuationToken.
func (c *Client) ListPage(ctx context.Context, bucket, continuationToken string) (*models.ObjectPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if continuationToken != "" {
		input.ContinuationToken = aws.String(continuationToken)
	}

	resp, err := c.s3Client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	page := &models.ObjectPage{
		Objects: make([]models.ObjectSummary, 0, len(resp.Contents)),
	}
	for _, obj := range resp.Contents {
		page.Objects = append(page.Objects, models.ObjectSummary{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
		})
	}

	if aws.ToBool(resp.IsTruncated) {
		page.HasMore = true
		page.NextToken = aws.ToString(resp.NextContinuationToken)
	}

	return page, nil
}

// BulkDelete removes keys with a single DeleteObjects request.
func (c *Client) BulkDelete(ctx context.Context, bucket string, keys []string) (*models.BulkDeleteResult, error) {
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	resp, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete objects batch: %w", err)
	}

	result := &models.BulkDeleteResult{
		DeletedKeys: make([]string, 0, len(resp.Deleted)),
	}
	for _, deleted := range resp.Deleted {
		result.DeletedKeys = append(result.DeletedKeys, aws.ToString(deleted.Key))
	}
	for _, e := range resp.Errors {
		result.Errors = append(result.Errors, models.KeyError{
			Key:     aws.ToString(e.Key),
			Code:    aws.ToString(e.Code),
			Message: aws.ToString(e.Message),
		})
	}

	return result, nil
}

// CopyObject performs a server-side copy and reports the HTTP status of the response.
// On failure the status of the error response is returned alongside the error when known.
func (c *Client) CopyObject(ctx context.Context, bucket, srcKey, destBucket, destKey string) (*models.CopyResult, error) {
	resp, err := c.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(destBucket),
		Key:        aws.String(destKey),
		CopySource: aws.String(copySource(bucket, srcKey)),
	})
	if err != nil {
		result := &models.CopyResult{}
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			result.StatusCode = respErr.HTTPStatusCode()
		}
		return result, fmt.Errorf("failed to copy %s to %s: %w", srcKey, destKey, err)
	}

	return &models.CopyResult{StatusCode: statusCode(resp.ResultMetadata)}, nil
}

// copySource builds the URL-encoded "bucket/key" value S3 expects.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// statusCode falls back to 200 when the raw response is unavailable, since the
// SDK only returns an output for successful responses.
func statusCode(metadata middleware.Metadata) int {
	if raw, ok := awsmiddleware.GetRawResponse(metadata).(*smithyhttp.Response); ok && raw != nil {
		return raw.StatusCode
	}
	return http.StatusOK
}
