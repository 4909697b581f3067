package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"velora/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectPutter is the part of the S3 client the exporter uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReportExporter writes daily cost rollups to object storage.
type ReportExporter interface {
	ExportDay(ctx context.Context, day time.Time) (string, error)
}

type reportExporter struct {
	reports CostReportService
	s3      ObjectPutter
	bucket  string
	loc     *time.Location
	logger  zerolog.Logger
}

func NewReportExporter(reports CostReportService, s3Client ObjectPutter, bucket string, loc *time.Location, logger zerolog.Logger) ReportExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &reportExporter{
		reports: reports,
		s3:      s3Client,
		bucket:  bucket,
		loc:     loc,
		logger:  logger.With().Str("service", "ReportExporter").Logger(),
	}
}

// ReportKey is the object key of a day's report.
func ReportKey(dayKey string) string {
	return fmt.Sprintf("reports/costs/%s.json", dayKey)
}

// ExportDay uploads the report for the local day containing day and returns
// its object key.
func (e *reportExporter) ExportDay(ctx context.Context, day time.Time) (string, error) {
	dayKey := model.DayKey(day, e.loc)
	report, err := e.reports.GetDayReport(ctx, dayKey)
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding cost report %s: %w", dayKey, err)
	}

	key := ReportKey(dayKey)
	_, err = e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		e.logger.Error().Err(err).Str("key", key).Msg("Failed to upload cost report")
		return "", fmt.Errorf("uploading cost report %s: %w", key, err)
	}
	e.logger.Info().Str("key", key).Int("users", report.UserCount).Float64("total_cost_usd", report.Totals.TotalCostUSD).Msg("Cost report exported")
	return key, nil
}
