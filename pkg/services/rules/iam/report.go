package iam

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/rs/zerolog"
)

const (
	rootUser = "<root_account>"

	// Values the credential report uses when a timestamp is unknown.
	notApplicable = "N/A"
	noInformation = "no_information"
)

// Polling controls how long to wait for IAM to generate the credential report.
type Polling struct {
	Attempts int
	Interval time.Duration
}

var DefaultPolling = Polling{Attempts: 10, Interval: 2 * time.Second}

var errReportUnavailable = errors.New("no credential report available")

// RootCredentials is the root account row of the credential report.
type RootCredentials struct {
	PasswordLastUsed   string
	AccessKey1Active   bool
	AccessKey1LastUsed string
	AccessKey2Active   bool
	AccessKey2LastUsed string
}

// LastUsed returns every credential timestamp the report carries for root.
func (r RootCredentials) LastUsed() map[string]string {
	return map[string]string{
		"password_last_used":          r.PasswordLastUsed,
		"access_key_1_last_used_date": r.AccessKey1LastUsed,
		"access_key_2_last_used_date": r.AccessKey2LastUsed,
	}
}

// FetchRootCredentials generates the credential report and extracts the root row.
func FetchRootCredentials(ctx context.Context, api API, polling Polling) (*RootCredentials, error) {
	if err := waitForReport(ctx, api, polling); err != nil {
		return nil, err
	}
	out, err := api.GetCredentialReport(ctx, &iam.GetCredentialReportInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get credential report: %w", err)
	}
	return parseRootCredentials(out.Content)
}

func waitForReport(ctx context.Context, api API, polling Polling) error {
	logger := zerolog.Ctx(ctx)
	for attempt := 0; ; attempt++ {
		out, err := api.GenerateCredentialReport(ctx, &iam.GenerateCredentialReportInput{})
		if err != nil {
			return fmt.Errorf("failed to generate credential report: %w", err)
		}
		if out.State == iamtypes.ReportStateTypeComplete {
			return nil
		}
		if attempt >= polling.Attempts {
			return errReportUnavailable
		}
		logger.Debug().Str("state", string(out.State)).Msg("credential report not ready")

		timer := time.NewTimer(polling.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func parseRootCredentials(content []byte) (*RootCredentials, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read credential report header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return notApplicable
		}
		return row[i]
	}

	var first []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read credential report: %w", err)
		}
		if first == nil {
			first = row
		}
		if field(row, "user") == rootUser {
			first = row
			break
		}
	}
	if first == nil {
		return nil, fmt.Errorf("credential report has no root account row")
	}

	return &RootCredentials{
		PasswordLastUsed:   field(first, "password_last_used"),
		AccessKey1Active:   field(first, "access_key_1_active") == "true",
		AccessKey1LastUsed: field(first, "access_key_1_last_used_date"),
		AccessKey2Active:   field(first, "access_key_2_active") == "true",
		AccessKey2LastUsed: field(first, "access_key_2_last_used_date"),
	}, nil
}

// usedWithin reports whether value is a timestamp inside (now-window, now].
// Unknown timestamps mean there is no usage to report.
func usedWithin(value string, now time.Time, window time.Duration) (bool, error) {
	switch value {
	case "", notApplicable, noInformation:
		return false, nil
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return false, fmt.Errorf("unexpected credential report timestamp %q: %w", value, err)
	}
	elapsed := now.Sub(at)
	return elapsed > 0 && elapsed < window, nil
}
