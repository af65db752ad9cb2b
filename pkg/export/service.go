// Package export generates Excel reports of the credit ledger for offline
// reconciliation, optionally uploading them to S3.
package export

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jordanlanch/couponly/pkg/store"
	"github.com/xuri/excelize/v2"
)

// Config holds export configuration. S3 settings are optional; when S3Bucket
// is empty, reports stay on local disk only.
type Config struct {
	StoragePath        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3Bucket           string
}

// Service generates ledger reports
type Service struct {
	store       store.Store
	s3Client    *s3.Client
	bucket      string
	storagePath string
}

// NewService creates a new export service
func NewService(st store.Store, cfg Config) (*Service, error) {
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	s := &Service{
		store:       st,
		storagePath: cfg.StoragePath,
	}

	if cfg.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.AWSRegion),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKeyID,
				cfg.AWSSecretAccessKey,
				"",
			)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s.s3Client = s3.NewFromConfig(awsCfg)
		s.bucket = cfg.S3Bucket
	}

	return s, nil
}

// Result contains export operation results
type Result struct {
	Filename     string    `json:"filename"`
	Rows         int       `json:"rows"`
	FileSize     int64     `json:"file_size"`
	S3Key        string    `json:"s3_key,omitempty"`
	UploadedToS3 bool      `json:"uploaded_to_s3"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// ExportLedger writes every ledger entry to a timestamped Excel file and
// uploads it to S3 when a bucket is configured.
func (s *Service) ExportLedger(ctx context.Context) (*Result, error) {
	var entries []*store.LedgerEntry
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		entries, err = tx.Ledger().All()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	filename := fmt.Sprintf("ledger-%s.xlsx", timestamp)
	localPath := filepath.Join(s.storagePath, filename)

	if err := s.generateExcel(localPath, entries); err != nil {
		return nil, err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat export file: %w", err)
	}

	result := &Result{
		Filename:    filename,
		Rows:        len(entries),
		FileSize:    info.Size(),
		GeneratedAt: time.Now().UTC(),
	}

	if s.s3Client != nil {
		key := fmt.Sprintf("ledger-exports/%s", filename)
		if err := s.uploadToS3(ctx, localPath, key); err != nil {
			// The local file is still usable; report the upload failure
			// without failing the export.
			log.Printf("⚠️ Failed to upload ledger export to S3: %v", err)
		} else {
			result.S3Key = key
			result.UploadedToS3 = true
			log.Printf("✅ Ledger export uploaded to s3://%s/%s", s.bucket, key)
		}
	}

	log.Printf("📊 Ledger export generated: %s (%d rows)", filename, len(entries))
	return result, nil
}

// generateExcel generates an Excel file from ledger entries
func (s *Service) generateExcel(path string, entries []*store.LedgerEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Ledger"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	headers := []string{"ID", "Account ID", "Kind", "Amount", "Ref Type", "Ref ID", "Created At"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, e := range entries {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), e.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), e.AccountID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(e.Kind))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), e.Amount)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), e.RefType)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), e.RefID)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), e.CreatedAt.Format(time.RFC3339))
	}

	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save excel file: %w", err)
	}
	return nil
}

// uploadToS3 uploads the generated report to S3
func (s *Service) uploadToS3(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}
