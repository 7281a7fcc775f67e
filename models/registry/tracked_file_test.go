package registry_test

import (
	"testing"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrackedFile() *registry.TrackedFile {
	return &registry.TrackedFile{
		ID:              5280,
		Identifier:      "gavotte.flac",
		Size:            31337,
		Algorithm:       constants.AlgSha256,
		Digest:          "e41dd0f9b8b01f6b832936dff871f0a3e1a9f70a7225831a42cb41fe403cba65",
		ContentType:     "audio/flac",
		StorageProvider: constants.StorageProviderAWS,
		Bucket:          "esperoj-archive",
		Key:             "f2a3b1e8-7c64-49ad-9e20-0f6fd3dd1a02",
		Status:          constants.StatusUploaded,
	}
}

func TestTrackedFileJSON(t *testing.T) {
	tf := sampleTrackedFile()
	jsonData, err := tf.ToJSON()
	require.Nil(t, err)

	restored, err := registry.TrackedFileFromJSON(jsonData)
	require.Nil(t, err)
	assert.Equal(t, tf, restored)
}

func TestTrackedFileURI(t *testing.T) {
	tf := sampleTrackedFile()
	assert.Equal(t, "AWS/esperoj-archive/f2a3b1e8-7c64-49ad-9e20-0f6fd3dd1a02", tf.URI())
}

func TestTrackedFileIsTerminal(t *testing.T) {
	tf := sampleTrackedFile()
	assert.False(t, tf.IsTerminal())

	tf.Status = constants.StatusCorrupt
	assert.True(t, tf.IsTerminal())

	tf.Status = constants.StatusMissing
	assert.True(t, tf.IsTerminal())
}

func TestTrackedFileNeedsFixityCheck(t *testing.T) {
	tf := sampleTrackedFile()

	// Never verified and uploaded: overdue by definition.
	assert.True(t, tf.NeedsFixityCheck(90))

	tf.Status = constants.StatusVerified
	tf.LastVerified = time.Now().UTC().AddDate(0, 0, -10)
	assert.False(t, tf.NeedsFixityCheck(90))
	assert.True(t, tf.NeedsFixityCheck(5))

	// Corrupt files stay out of the verification queue.
	tf.Status = constants.StatusCorrupt
	tf.LastVerified = time.Time{}
	assert.False(t, tf.NeedsFixityCheck(90))

	// Pending files have nothing in storage to verify yet.
	tf.Status = constants.StatusPending
	assert.False(t, tf.NeedsFixityCheck(90))
}

func TestTrackedFileValidate(t *testing.T) {
	tf := sampleTrackedFile()
	assert.Nil(t, tf.Validate())

	tf.Identifier = ""
	assert.Error(t, tf.Validate())

	tf = sampleTrackedFile()
	tf.Algorithm = "crc32"
	assert.Error(t, tf.Validate())

	tf = sampleTrackedFile()
	tf.Digest = ""
	assert.Error(t, tf.Validate())

	// Truncated digest: right algorithm, wrong length.
	tf = sampleTrackedFile()
	tf.Digest = tf.Digest[0:40]
	assert.Error(t, tf.Validate())

	// Digest length belongs to a different algorithm.
	tf = sampleTrackedFile()
	tf.Algorithm = constants.AlgMd5
	assert.Error(t, tf.Validate())

	tf = sampleTrackedFile()
	tf.Status = "unknown"
	assert.Error(t, tf.Validate())

	tf = sampleTrackedFile()
	tf.Bucket = ""
	assert.Error(t, tf.Validate())
}
