package common

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/util"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

type S3Credentials struct {
	Host      string `json:"host"`
	KeyID     string `json:"-"`
	SecretKey string `json:"-"`
}

type Config struct {
	ArchivalBuckets         []*ArchivalBucket
	BaseWorkingDir          string
	ConfigName              string
	LogDir                  string
	LogLevel                logging.Level
	MaxDaysSinceFixityCheck int
	MaxFileSize             int64
	MaxFixityItemsPerRun    int
	NsqLookupd              string
	NsqURL                  string
	PidDir                  string
	QueueFixityInterval     time.Duration
	RecordsAPIKey           string
	RecordsAPIUser          string
	RecordsAPIVersion       string
	RecordsURL              string
	RecordSaveRetries       int
	RecordSaveRetryInterval time.Duration
	RedisDefaultDB          int
	RedisPassword           string
	RedisURL                string
	S3Credentials           map[string]S3Credentials
	StagingDir              string
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// NewConfig returns a new config based on env vars ESPEROJ_CONFIG_DIR
// and ESPEROJ_ENV. The latter names the .env file to load, so
// ESPEROJ_ENV=test loads .env.test from the config dir.
func NewConfig() *Config {
	config := loadConfig()
	config.expandPaths()
	config.sanityCheck()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir, envName := getEnvVars()
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	config := &Config{
		BaseWorkingDir:          v.GetString("BASE_WORKING_DIR"),
		ConfigName:              envName,
		LogDir:                  v.GetString("LOG_DIR"),
		LogLevel:                logLevels[v.GetString("LOG_LEVEL")],
		MaxDaysSinceFixityCheck: v.GetInt("MAX_DAYS_SINCE_LAST_FIXITY"),
		MaxFileSize:             v.GetInt64("MAX_FILE_SIZE"),
		MaxFixityItemsPerRun:    v.GetInt("MAX_FIXITY_ITEMS_PER_RUN"),
		NsqLookupd:              v.GetString("NSQ_LOOKUPD"),
		NsqURL:                  v.GetString("NSQ_URL"),
		PidDir:                  v.GetString("PID_DIR"),
		QueueFixityInterval:     v.GetDuration("QUEUE_FIXITY_INTERVAL"),
		RecordsAPIKey:           v.GetString("RECORDS_API_KEY"),
		RecordsAPIUser:          v.GetString("RECORDS_API_USER"),
		RecordsAPIVersion:       v.GetString("RECORDS_API_VERSION"),
		RecordsURL:              v.GetString("RECORDS_URL"),
		RecordSaveRetries:       v.GetInt("RECORD_SAVE_RETRIES"),
		RecordSaveRetryInterval: v.GetDuration("RECORD_SAVE_RETRY_INTERVAL"),
		RedisDefaultDB:          v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:           v.GetString("REDIS_PASSWORD"),
		RedisURL:                v.GetString("REDIS_URL"),
		StagingDir:              v.GetString("STAGING_DIR"),
		S3Credentials: map[string]S3Credentials{
			constants.StorageProviderAWS: {
				Host:      v.GetString("S3_AWS_HOST"),
				KeyID:     v.GetString("S3_AWS_KEY"),
				SecretKey: v.GetString("S3_AWS_SECRET"),
			},
			constants.StorageProviderLocal: {
				Host:      v.GetString("S3_LOCAL_HOST"),
				KeyID:     v.GetString("S3_LOCAL_KEY"),
				SecretKey: v.GetString("S3_LOCAL_SECRET"),
			},
			constants.StorageProviderWasabi: {
				Host:      v.GetString("S3_WASABI_HOST"),
				KeyID:     v.GetString("S3_WASABI_KEY"),
				SecretKey: v.GetString("S3_WASABI_SECRET"),
			},
		},
	}
	config.ArchivalBuckets = loadArchivalBuckets(v, config)
	return config
}

// loadArchivalBuckets reads the ARCHIVAL_BUCKETS setting, which lists
// provider/bucket pairs in priority order. For example:
//
//	ARCHIVAL_BUCKETS="AWS:esperoj-archive,Wasabi:esperoj-backup"
//
// The first entry is the primary; the rest hold backup copies.
func loadArchivalBuckets(v *viper.Viper, config *Config) []*ArchivalBucket {
	buckets := make([]*ArchivalBucket, 0)
	for _, entry := range strings.Split(v.GetString("ARCHIVAL_BUCKETS"), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			panic(fmt.Sprintf("Malformed ARCHIVAL_BUCKETS entry %q", entry))
		}
		provider, bucketName := parts[0], parts[1]
		creds, ok := config.S3Credentials[provider]
		if !ok {
			panic(fmt.Sprintf("ARCHIVAL_BUCKETS names unknown provider %q", provider))
		}
		buckets = append(buckets, &ArchivalBucket{
			Bucket:   bucketName,
			Host:     creds.Host,
			Provider: provider,
			Region:   v.GetString("S3_" + strings.ToUpper(provider) + "_REGION"),
		})
	}
	return buckets
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("ESPEROJ_CONFIG_DIR")
	envName := getRequiredEnvVar("ESPEROJ_ENV")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// PrimaryBucket returns the bucket that receives new uploads and
// serves as the source for fixity checks.
func (c *Config) PrimaryBucket() *ArchivalBucket {
	if len(c.ArchivalBuckets) == 0 {
		return nil
	}
	return c.ArchivalBuckets[0]
}

// BackupBuckets returns the buckets holding backup copies, which may
// be empty.
func (c *Config) BackupBuckets() []*ArchivalBucket {
	if len(c.ArchivalBuckets) < 2 {
		return nil
	}
	return c.ArchivalBuckets[1:]
}

// BucketFor returns the archival bucket for the given provider, or nil.
func (c *Config) BucketFor(provider string) *ArchivalBucket {
	for _, bucket := range c.ArchivalBuckets {
		if bucket.Provider == provider {
			return bucket
		}
	}
	return nil
}

// ToJSON serializes the config for logging at startup, omitting
// credentials.
func (c *Config) ToJSON() string {
	redacted := *c
	if redacted.RecordsAPIKey != "" {
		redacted.RecordsAPIKey = "[redacted]"
	}
	if redacted.RedisPassword != "" {
		redacted.RedisPassword = "[redacted]"
	}
	data, _ := json.Marshal(redacted)
	return string(data)
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() {
	c.BaseWorkingDir = expandPath(c.BaseWorkingDir)
	c.LogDir = expandPath(c.LogDir)
	c.PidDir = expandPath(c.PidDir)
	c.StagingDir = expandPath(c.StagingDir)
}

func expandPath(dirName string) string {
	dir, err := util.ExpandTilde(dirName)
	if err != nil {
		panic(err)
	}
	return dir
}

// If this is a dev or test env, don't let the config point to any
// external services. This prevents a dev/test installation from
// touching data in demo and prod systems.
func (c *Config) sanityCheck() {
	if c.ConfigName != "dev" && c.ConfigName != "test" {
		return
	}
	hosts := []string{c.RecordsURL, c.RedisURL, c.NsqURL}
	for _, creds := range c.S3Credentials {
		hosts = append(hosts, creds.Host)
	}
	for _, host := range hosts {
		if host == "" {
			continue
		}
		if !strings.Contains(host, "localhost") && !strings.Contains(host, "127.0.0.1") {
			panic(fmt.Sprintf("Config %s points to non-local service %s", c.ConfigName, host))
		}
	}
}

func (c *Config) makeDirs() {
	dirs := []string{
		c.LogDir,
		c.PidDir,
		c.StagingDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			panic(err)
		}
	}
}
