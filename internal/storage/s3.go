package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"memoji/internal/utils/logger"
)

// S3Provider stores blobs in an S3 or S3-compatible bucket.
type S3Provider struct {
	client     *s3.Client
	bucketName string
	endpoint   string
	region     string
	log        *logger.Logger
}

func NewS3Provider(bucketName, endpoint, region, accessKey, secretKey string) (*S3Provider, error) {
	log := logger.New("s3_storage")

	if accessKey == "" || secretKey == "" {
		return nil, log.Error("S3 credentials are empty ❌", fmt.Errorf("accessKey or secretKey is empty"))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"", // Session token (not needed for basic auth)
		)),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, log.Error("Unable to load SDK config ❌", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.%s", region, endpoint))
		}
	})

	// Verify credentials by making a test API call
	_, err = client.ListObjectsV2(context.TODO(), &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		return nil, log.Error("Failed to verify S3 credentials ❌", err)
	}

	log.Success("S3 storage initialized successfully ✅")

	return &S3Provider{
		client:     client,
		bucketName: bucketName,
		endpoint:   endpoint,
		region:     region,
		log:        log,
	}, nil
}

func (p *S3Provider) Store(ctx context.Context, url, name string) (string, error) {
	data, err := download(ctx, url)
	if err != nil {
		return "", p.log.Error("Failed to download image for %s", err, name)
	}

	fileName := objectKey(url)
	contentType := http.DetectContentType(data)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucketName),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(data),
		ACL:         types.ObjectCannedACLPrivate,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", p.log.Error("Failed to upload image to storage ❌", err)
	}

	p.log.Info("Stored %s (%d bytes) as %s", name, len(data), fileName)
	return fileName, nil
}

func (p *S3Provider) Fetch(ctx context.Context, fileName string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return nil, p.log.Error("Failed to fetch image %s from storage", err, fileName)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, p.log.Error("Failed to read image %s body", err, fileName)
	}
	return buf.Bytes(), nil
}

func (p *S3Provider) Remove(ctx context.Context, fileName string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return p.log.Error("Failed to delete image %s from storage", err, fileName)
	}
	return nil
}

// PublicURL returns a pre-signed GET URL the gateway can fetch
func (p *S3Provider) PublicURL(ctx context.Context, fileName string) (string, error) {
	presignClient := s3.NewPresignClient(p.client)

	presignedURL, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucketName),
		Key:    aws.String(fileName),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", p.log.Error("Failed to generate pre-signed URL ❌", err)
	}
	return presignedURL.URL, nil
}
