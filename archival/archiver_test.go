package archival_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/esperoj/esperoj/archival"
	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/fixity"
	"github.com/esperoj/esperoj/models/registry"
	"github.com/esperoj/esperoj/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pdfContent = "%PDF-1.4 not really a report, but close enough"

func writeSourceFile(t *testing.T, name, content string) string {
	path, err := testutil.WriteTempFile(t.TempDir(), name, content)
	require.Nil(t, err)
	return path
}

func TestArchiverRun(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	path := writeSourceFile(t, "report.pdf", pdfContent)

	archiver := archival.NewArchiver(fc.Context, path)
	tf, errors := archiver.Run()
	assert.Empty(t, errors)
	require.NotNil(t, tf)
	assert.Equal(t, "report.pdf", tf.Identifier)
	assert.Equal(t, constants.StatusUploaded, tf.Status)
	assert.Equal(t, constants.AlgSha256, tf.Algorithm)
	assert.Equal(t, 64, len(tf.Digest))
	assert.EqualValues(t, len(pdfContent), tf.Size)
	assert.Equal(t, constants.StorageProviderLocal, tf.StorageProvider)
	assert.Equal(t, "archive", tf.Bucket)
	assert.NotEmpty(t, tf.ContentType)

	// One copy in the primary bucket, one in the backup.
	assert.Equal(t, 1, fc.PrimaryStore.Calls["Upload"])
	assert.Equal(t, 1, fc.BackupStore.Calls["Upload"])

	saved := fc.RecordService.FileByIdentifier("report.pdf")
	require.NotNil(t, saved)
	assert.Equal(t, constants.StatusUploaded, saved.Status)

	require.Equal(t, 1, fc.RecordService.EventCount())
	event := fc.RecordService.LastEvent()
	assert.Equal(t, constants.EventArchival, event.EventType)
	assert.Equal(t, constants.OutcomeSuccess, event.Outcome)
	assert.Equal(t, tf.Digest, event.ActualDigest)
}

func TestArchiverIsIdempotent(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	path := writeSourceFile(t, "report.pdf", pdfContent)

	_, errors := archival.NewArchiver(fc.Context, path).Run()
	assert.Empty(t, errors)

	// Same file again: no new uploads, no new events, no errors.
	tf, errors := archival.NewArchiver(fc.Context, path).Run()
	assert.Empty(t, errors)
	require.NotNil(t, tf)
	assert.Equal(t, constants.StatusUploaded, tf.Status)
	assert.Equal(t, 1, fc.PrimaryStore.Calls["Upload"])
	assert.Equal(t, 1, fc.BackupStore.Calls["Upload"])
	assert.Equal(t, 1, fc.RecordService.EventCount())
	assert.Equal(t, 1, fc.RecordService.FileCount())
}

func TestArchiverRefusesConflictingDuplicate(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	first := writeSourceFile(t, "report.pdf", pdfContent)
	_, errors := archival.NewArchiver(fc.Context, first).Run()
	assert.Empty(t, errors)

	// Same identifier, different bytes.
	second := writeSourceFile(t, "report.pdf", "entirely different content")
	tf, errors := archival.NewArchiver(fc.Context, second).Run()
	assert.Nil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)
	assert.Contains(t, errors[0].Message, "refusing to overwrite")
	assert.Equal(t, 1, fc.PrimaryStore.Calls["Upload"])
}

func TestArchiverRetriesAfterBackupFailure(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	path := writeSourceFile(t, "report.pdf", pdfContent)
	fc.BackupStore.FailOn["Upload"] = fmt.Errorf("connection reset by peer")

	tf, errors := archival.NewArchiver(fc.Context, path).Run()
	require.NotNil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.False(t, errors[0].IsFatal)
	assert.Equal(t, constants.StatusPending, tf.Status)
	assert.Equal(t, constants.StatusPending, fc.RecordService.FileByIdentifier("report.pdf").Status)

	// The retry reuses the pending record's key and only uploads the
	// copy that failed.
	delete(fc.BackupStore.FailOn, "Upload")
	retried, errors := archival.NewArchiver(fc.Context, path).Run()
	assert.Empty(t, errors)
	assert.Equal(t, constants.StatusUploaded, retried.Status)
	assert.Equal(t, tf.Key, retried.Key)
	assert.Equal(t, 1, fc.PrimaryStore.Calls["Upload"])
	assert.Equal(t, 2, fc.BackupStore.Calls["Upload"])
	assert.Equal(t, 1, fc.RecordService.FileCount())
}

func TestArchiverRetriesAfterRecordCreateFailure(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	path := writeSourceFile(t, "report.pdf", pdfContent)
	fc.RecordService.FailNextSave = true

	tf, errors := archival.NewArchiver(fc.Context, path).Run()
	assert.Nil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.False(t, errors[0].IsFatal)
	assert.Equal(t, 0, fc.PrimaryStore.Calls["Upload"])

	retried, errors := archival.NewArchiver(fc.Context, path).Run()
	assert.Empty(t, errors)
	require.NotNil(t, retried)
	assert.Equal(t, constants.StatusUploaded, retried.Status)
	assert.Equal(t, 1, fc.RecordService.FileCount())
}

func TestArchiverRejectsBadLocalFiles(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()

	tf, errors := archival.NewArchiver(fc.Context, "/no/such/file.bin").Run()
	assert.Nil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)

	empty := writeSourceFile(t, "empty.bin", "")
	tf, errors = archival.NewArchiver(fc.Context, empty).Run()
	assert.Nil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)
	assert.Contains(t, errors[0].Message, "empty file")
}

func TestArchiverEnforcesMaxFileSize(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	fc.Context.Config.MaxFileSize = 10
	path := writeSourceFile(t, "big.bin", "this file is larger than ten bytes")

	tf, errors := archival.NewArchiver(fc.Context, path).Run()
	assert.Nil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)
	assert.Contains(t, errors[0].Message, "exceeds")
}

func TestArchiverRefusesUnconfiguredProvider(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	path := writeSourceFile(t, "report.pdf", pdfContent)
	digest, _, err := fixity.Digest(constants.AlgSha256, strings.NewReader(pdfContent))
	require.Nil(t, err)

	// A pending record left behind by an instance whose configuration
	// included a provider ours doesn't. With zero stores to fill, the
	// archiver must not mark the file uploaded.
	fc.RecordService.AddFile(&registry.TrackedFile{
		Identifier:      "report.pdf",
		Size:            int64(len(pdfContent)),
		Algorithm:       constants.AlgSha256,
		Digest:          digest,
		StorageProvider: constants.StorageProviderAWS,
		Bucket:          "some-other-archive",
		Key:             "orphan-key",
		Status:          constants.StatusPending,
	})

	tf, errors := archival.NewArchiver(fc.Context, path).Run()
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)
	assert.Contains(t, errors[0].Message, "no configured object store")
	assert.Equal(t, 0, fc.PrimaryStore.Calls["Upload"])
	assert.Equal(t, 0, fc.BackupStore.Calls["Upload"])
	require.NotNil(t, tf)
	assert.Equal(t, constants.StatusPending, tf.Status)
}
