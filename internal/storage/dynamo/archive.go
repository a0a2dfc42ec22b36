package dynamo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ignite/email-validator/internal/domain"
)

// ObjectPutter is the subset of the S3 client used by Archive.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// BatchReport is the archived form of one batch validation request.
type BatchReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Source      string           `json:"source"`
	Count       int              `json:"count"`
	Summary     map[string]int   `json:"summary"`
	Results     []domain.Verdict `json:"results"`
}

// Archive writes batch reports to an S3 bucket.
type Archive struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

// NewArchive returns an archive writing to bucket.
func NewArchive(client ObjectPutter, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket, now: time.Now}
}

// SaveReport stores verdicts under reports/YYYY/MM/DD/<uuid>.json and
// returns the object key.
func (a *Archive) SaveReport(ctx context.Context, source string, verdicts []domain.Verdict) (string, error) {
	now := a.now().UTC()
	report := BatchReport{
		GeneratedAt: now,
		Source:      source,
		Count:       len(verdicts),
		Summary:     make(map[string]int),
		Results:     verdicts,
	}
	for _, v := range verdicts {
		report.Summary[string(v.Status)]++
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	key := fmt.Sprintf("reports/%s/%s.json", now.Format("2006/01/02"), uuid.NewString())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return key, nil
}
