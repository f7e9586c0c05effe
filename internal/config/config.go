package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/seqarc/tern/pkg/logx"
)

// Config holds the global configuration for the application.
type Config struct {
	// Log contains logging-related configuration.
	Log *logx.LoggingConfig
	// Manifest contains the metadata manifest configuration.
	Manifest *ManifestConfig
	// Discovery contains the file discovery configuration.
	Discovery *DiscoveryConfig
	// Archive contains the archive backend configuration.
	Archive *ArchiveConfig
	// Upload contains the upload orchestration configuration.
	Upload *UploadConfig
	// Report contains the report output configuration.
	Report *ReportConfig
}

// ManifestConfig holds the configuration for the metadata manifest.
type ManifestConfig struct {
	// Path is the path to the JSON manifest document.
	Path string
}

// DiscoveryConfig holds the configuration for local file discovery.
type DiscoveryConfig struct {
	// Root is the base directory searched for files.
	Root string
	// Subdirs are the well-known subdirectories probed before the root.
	// When empty, the locator's defaults apply.
	Subdirs []string
}

// ArchiveConfig holds the configuration for the remote archive.
type ArchiveConfig struct {
	// Backend selects the archive backend ("http" or "s3").
	Backend string
	// Endpoint is the archive base URL (http backend).
	Endpoint string
	// TokenFile is the path to the plain-text credential file.
	TokenFile string
	// ConnectTimeout bounds connection establishment (e.g. "30s"). The
	// total request time is deliberately unbounded.
	ConnectTimeout string
	// TransportRetries is the connection-level retry count beneath each
	// upload attempt.
	TransportRetries int
	// TransportRetryWait is the delay between connection-level retries.
	TransportRetryWait string
	// S3 is the bucket configuration (s3 backend).
	S3 *BucketConfig
}

// UploadConfig holds the configuration for upload orchestration.
type UploadConfig struct {
	// Workers is the number of concurrent upload workers (1-32).
	Workers int
	// RetryLimit is the maximum number of attempts per file.
	RetryLimit int
	// RetryDelay is the fixed delay between failed attempts (e.g. "30s").
	RetryDelay string
	// ProgressInterval is the progress sampling interval (e.g. "30s").
	ProgressInterval string
}

// ReportConfig holds the configuration for the upload report.
type ReportConfig struct {
	// Path is where the tab-separated report is written.
	Path string
}

// BucketConfig holds the configuration for an S3-compatible bucket.
type BucketConfig struct {
	// Bucket is the name of the bucket.
	Bucket string
	// Region is the region of the bucket.
	Region string
	// Prefix is the prefix for objects in the bucket.
	Prefix string
	// Endpoint is the endpoint for the bucket.
	Endpoint string
	// AccessKey names the environment variable holding the access key.
	AccessKey string
	// SecretKey names the environment variable holding the secret key.
	SecretKey string
	// UseSSL enables SSL for the bucket connection.
	UseSSL bool
}

var config = Config{
	Log: &logx.LoggingConfig{
		Level:          "Info",
		ConsoleLogging: true,
		FileLogging:    false,
	},
}

// Initialize loads the configuration from the specified file.
//
// Parameters:
//   - path: The path to the configuration file.
//
// Returns:
//   - An error if the configuration cannot be loaded.
func Initialize(path string) error {
	viper.Reset()
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("tern")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	initializeNestedStructs()
	overrideWithEnvVars()

	return nil
}

// initializeNestedStructs ensures all nested structs are initialized.
func initializeNestedStructs() {
	if config.Log == nil {
		config.Log = &logx.LoggingConfig{Level: "Info", ConsoleLogging: true}
	}
	if config.Manifest == nil {
		config.Manifest = &ManifestConfig{}
	}
	if config.Discovery == nil {
		config.Discovery = &DiscoveryConfig{}
	}
	if config.Archive == nil {
		config.Archive = &ArchiveConfig{}
	}
	if config.Archive.S3 == nil {
		config.Archive.S3 = &BucketConfig{}
	}
	if config.Upload == nil {
		config.Upload = &UploadConfig{}
	}
	if config.Report == nil {
		config.Report = &ReportConfig{}
	}
}

// overrideWithEnvVars resolves credential fields that name environment variables.
func overrideWithEnvVars() {
	if config.Archive.S3.AccessKey != "" {
		config.Archive.S3.AccessKey = os.Getenv(config.Archive.S3.AccessKey)
	}
	if config.Archive.S3.SecretKey != "" {
		config.Archive.S3.SecretKey = os.Getenv(config.Archive.S3.SecretKey)
	}
}

// Get returns the loaded configuration.
func Get() Config {
	return config
}
