package common_test

import (
	"os"
	"strings"
	"testing"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T) *common.Config {
	wd, err := os.Getwd()
	require.Nil(t, err)
	t.Setenv("ESPEROJ_CONFIG_DIR", wd+"/testdata")
	t.Setenv("ESPEROJ_ENV", "test")
	return common.NewConfig()
}

func TestNewConfig(t *testing.T) {
	config := loadTestConfig(t)
	assert.Equal(t, "test", config.ConfigName)
	assert.Equal(t, 90, config.MaxDaysSinceFixityCheck)
	assert.Equal(t, int64(5497558138880), config.MaxFileSize)
	assert.Equal(t, 2500, config.MaxFixityItemsPerRun)
	assert.Equal(t, "http://localhost:8080", config.RecordsURL)
	assert.Equal(t, "v1", config.RecordsAPIVersion)
	assert.Equal(t, 3, config.RecordSaveRetries)
	assert.EqualValues(t, 250, config.RecordSaveRetryInterval.Milliseconds())
	assert.Equal(t, "localhost:6379", config.RedisURL)

	// Tilde paths are expanded and the dirs exist.
	assert.False(t, strings.HasPrefix(config.LogDir, "~"))
	stat, err := os.Stat(config.StagingDir)
	require.Nil(t, err)
	assert.True(t, stat.IsDir())
}

func TestConfigArchivalBuckets(t *testing.T) {
	config := loadTestConfig(t)
	require.Equal(t, 2, len(config.ArchivalBuckets))

	primary := config.PrimaryBucket()
	require.NotNil(t, primary)
	assert.Equal(t, constants.StorageProviderLocal, primary.Provider)
	assert.Equal(t, "archive", primary.Bucket)

	backups := config.BackupBuckets()
	require.Equal(t, 1, len(backups))
	assert.Equal(t, constants.StorageProviderWasabi, backups[0].Provider)
	assert.Equal(t, "archive-backup", backups[0].Bucket)

	assert.NotNil(t, config.BucketFor(constants.StorageProviderWasabi))
	assert.Nil(t, config.BucketFor(constants.StorageProviderAWS))
}

func TestConfigToJSONOmitsSecrets(t *testing.T) {
	config := loadTestConfig(t)
	jsonString := config.ToJSON()
	assert.NotContains(t, jsonString, config.RecordsAPIKey)
	assert.NotContains(t, jsonString, "minioadmin")
	assert.Contains(t, jsonString, "localhost:8080")
}
