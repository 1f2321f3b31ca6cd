package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"law_ledger_app_go/config"
	"law_ledger_app_go/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ReportStore archives generated verification reports
type ReportStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Name() string
}

// StoredObject describes an archived report
type StoredObject struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	URL         string `json:"url,omitempty"`
}

// NewReportStore returns R2 storage when fully configured and reachable, local storage otherwise
func NewReportStore(cfg *config.Config) ReportStore {
	log := logger.WithComponent("storage")

	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		log.WithField("path", cfg.ReportDir).Info("Report storage: local filesystem")
		return NewLocalReportStore(cfg.ReportDir)
	}

	r2, err := NewR2ReportStore(cfg)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize R2 storage, falling back to local storage")
		return NewLocalReportStore(cfg.ReportDir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r2.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.R2BucketName)}); err != nil {
		log.WithError(err).Warn("R2 bucket connection test failed, falling back to local storage")
		return NewLocalReportStore(cfg.ReportDir)
	}

	log.WithField("bucket", cfg.R2BucketName).Info("Report storage: Cloudflare R2")
	return r2
}

// R2ReportStore stores reports in a Cloudflare R2 bucket through the S3 API
type R2ReportStore struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewR2ReportStore(cfg *config.Config) (*R2ReportStore, error) {
	// R2 endpoint format: https://<account_id>.r2.cloudflarestorage.com
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)

	creds := credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2ReportStore{
		client:    client,
		bucket:    cfg.R2BucketName,
		publicURL: cfg.R2PublicURL,
	}, nil
}

func (r *R2ReportStore) Name() string { return "r2" }

// Put uploads data under key
func (r *R2ReportStore) Put(ctx context.Context, key string, data []byte, contentType string) (*StoredObject, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to R2: %w", err)
	}

	obj := &StoredObject{Key: key, Size: int64(len(data)), ContentType: contentType}
	if r.publicURL != "" {
		obj.URL = fmt.Sprintf("%s/%s", strings.TrimSuffix(r.publicURL, "/"), key)
	}
	return obj, nil
}

// Get downloads the object stored under key
func (r *R2ReportStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, "", notFound("report %s", key)
		}
		return nil, "", fmt.Errorf("failed to get object from R2: %w", err)
	}

	contentType := "application/octet-stream"
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	return result.Body, contentType, nil
}

// LocalReportStore keeps reports under a directory on disk
type LocalReportStore struct {
	baseDir string
}

func NewLocalReportStore(baseDir string) *LocalReportStore {
	return &LocalReportStore{baseDir: baseDir}
}

func (l *LocalReportStore) Name() string { return "local" }

// Put writes data to baseDir/key
func (l *LocalReportStore) Put(ctx context.Context, key string, data []byte, contentType string) (*StoredObject, error) {
	fullPath, err := l.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	return &StoredObject{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

// Get opens baseDir/key
func (l *LocalReportStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	fullPath, err := l.path(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", notFound("report %s", key)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType := "application/octet-stream"
	if strings.EqualFold(filepath.Ext(key), ".xlsx") {
		contentType = XLSXContentType
	}
	return file, contentType, nil
}

// path resolves key inside baseDir, refusing keys that escape it
func (l *LocalReportStore) path(key string) (string, error) {
	fullPath := filepath.Join(l.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.baseDir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", validationError("invalid storage key %q", key)
	}
	return fullPath, nil
}

const reportStampLayout = "20060102T150405Z"

// ReportStamp names one export of a case report
func ReportStamp(at time.Time) string {
	return at.UTC().Format(reportStampLayout)
}

// ReportKey builds the archive key of a case verification report
func ReportKey(caseID string, at time.Time) string {
	return fmt.Sprintf("cases/%s/verification/%s.xlsx", caseID, ReportStamp(at))
}

// ParseReportStamp is the inverse of ReportStamp
func ParseReportStamp(stamp string) (time.Time, error) {
	at, err := time.Parse(reportStampLayout, stamp)
	if err != nil {
		return time.Time{}, validationError("invalid report stamp %q", stamp)
	}
	return at, nil
}
