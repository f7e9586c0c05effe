package config

import (
	"github.com/pkg/errors"
)

const (
	// DefaultWorkers is the worker count used when none is configured.
	DefaultWorkers = 4
	// MaxWorkers bounds the configured worker count.
	MaxWorkers = 32
	// DefaultRetryLimit is the per-file attempt limit used when none is configured.
	DefaultRetryLimit = 3
	// DefaultRetryDelay is the fixed delay between failed attempts.
	DefaultRetryDelay = "30s"
	// DefaultProgressInterval is the progress sampling interval.
	DefaultProgressInterval = "30s"
	// DefaultConnectTimeout bounds connection establishment per request.
	DefaultConnectTimeout = "30s"
	// DefaultTransportRetries is the connection-level retry count.
	DefaultTransportRetries = 3
	// DefaultTransportRetryWait is the delay between connection-level retries.
	DefaultTransportRetryWait = "2s"
	// DefaultReportPath is where the aggregate report is written when no
	// path is configured.
	DefaultReportPath = "upload-report.tsv"
)

// Validate checks the loaded configuration and applies defaults. It is the
// single place a run can fail for configuration reasons, and it runs before
// any task starts.
func Validate(c *Config) error {
	if c.Manifest == nil || c.Manifest.Path == "" {
		return errors.New("missing manifest path in configuration")
	}
	if c.Discovery == nil || c.Discovery.Root == "" {
		return errors.New("missing discovery root in configuration")
	}
	if c.Archive == nil {
		return errors.New("missing archive configuration")
	}
	if c.Upload == nil {
		c.Upload = &UploadConfig{}
	}
	if c.Report == nil {
		c.Report = &ReportConfig{}
	}

	switch c.Archive.Backend {
	case "", "http":
		c.Archive.Backend = "http"
		if c.Archive.Endpoint == "" {
			return errors.New("missing archive endpoint in configuration")
		}
		if c.Archive.TokenFile == "" {
			return errors.New("missing archive token file in configuration")
		}
	case "s3":
		if c.Archive.S3 == nil {
			return errors.New("missing bucket configuration for the s3 backend")
		}
		if err := ValidateBucketConfig(*c.Archive.S3); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown archive backend '%s'", c.Archive.Backend)
	}

	if c.Archive.ConnectTimeout == "" {
		c.Archive.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Archive.TransportRetries <= 0 {
		c.Archive.TransportRetries = DefaultTransportRetries
	}
	if c.Archive.TransportRetryWait == "" {
		c.Archive.TransportRetryWait = DefaultTransportRetryWait
	}

	if c.Upload.Workers == 0 {
		c.Upload.Workers = DefaultWorkers
	}
	if c.Upload.Workers < 1 || c.Upload.Workers > MaxWorkers {
		return errors.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, c.Upload.Workers)
	}
	if c.Upload.RetryLimit == 0 {
		c.Upload.RetryLimit = DefaultRetryLimit
	}
	if c.Upload.RetryLimit < 1 {
		return errors.Errorf("retry limit must be at least 1, got %d", c.Upload.RetryLimit)
	}
	if c.Upload.RetryDelay == "" {
		c.Upload.RetryDelay = DefaultRetryDelay
	}
	if c.Upload.ProgressInterval == "" {
		c.Upload.ProgressInterval = DefaultProgressInterval
	}
	if c.Report.Path == "" {
		c.Report.Path = DefaultReportPath
	}

	return nil
}

// ValidateBucketConfig validates the S3 bucket configuration.
//
// Parameters:
//   - bucketConfig: The configuration to validate.
//
// Returns:
//   - An error if any required field is missing, otherwise nil.
func ValidateBucketConfig(bucketConfig BucketConfig) error {
	if bucketConfig.AccessKey == "" {
		return errors.New("missing AccessKey in configuration")
	}
	if bucketConfig.SecretKey == "" {
		return errors.New("missing SecretKey in configuration")
	}
	if bucketConfig.Bucket == "" {
		return errors.New("missing Bucket in configuration")
	}
	if bucketConfig.Region == "" {
		return errors.New("missing Region in configuration")
	}
	if bucketConfig.Endpoint == "" {
		return errors.New("missing Endpoint in configuration")
	}
	return nil
}
