package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/maheshrc27/autoreel/configs"
)

// StorageService owns the local media directory and the R2 archive
// mirror. Downloaded reels live locally until the retention sweep
// removes them; the archive copy is best-effort.
type StorageService struct {
	config config.Config
}

func NewStorageService(cfg config.Config) *StorageService {
	return &StorageService{config: cfg}
}

// MediaPath allocates a local path for a reel's media file. The nanoid
// suffix keeps re-downloads of the same code from clobbering a file a
// concurrent worker is reading.
func (s *StorageService) MediaPath(code string) (string, error) {
	if err := os.MkdirAll(s.config.MediaDir, 0o755); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	suffix, err := gonanoid.New(8)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return filepath.Join(s.config.MediaDir, fmt.Sprintf("%s_%s.mp4", code, suffix)), nil
}

func (s *StorageService) RemoveLocal(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *StorageService) r2Client() (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.config.R2.AccessKey, s.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.config.R2.AccountID))
	}), nil
}

// ArchiveToR2 mirrors a downloaded media file into the R2 bucket under
// the given key. Skipped when R2 is not configured.
func (s *StorageService) ArchiveToR2(ctx context.Context, key, path string) error {
	if s.config.R2.BucketName == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	contentType := "video/mp4"
	if kind, err := filetype.Match(data); err == nil && kind.MIME.Value != "" {
		contentType = kind.MIME.Value
	}

	client, err := s.r2Client()
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}

	log.Printf("Archived %s to R2 as %s", path, key)
	return nil
}
