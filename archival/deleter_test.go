package archival_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/esperoj/esperoj/archival"
	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveOneFile(t *testing.T, fc *testutil.FakeContext) string {
	path := writeSourceFile(t, "report.pdf", pdfContent)
	_, errors := archival.NewArchiver(fc.Context, path).Run()
	require.Empty(t, errors)
	return "report.pdf"
}

func TestDeleterRun(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	identifier := archiveOneFile(t, fc)
	key := fc.RecordService.FileByIdentifier(identifier).Key

	deleter := archival.NewDeleter(fc.Context, identifier, "admin@example.com")
	tf, errors := deleter.Run()
	assert.Empty(t, errors)
	require.NotNil(t, tf)

	// Both copies gone, record gone, deletion event kept.
	exists, _ := fc.PrimaryStore.Exists(context.Background(), key)
	assert.False(t, exists)
	exists, _ = fc.BackupStore.Exists(context.Background(), key)
	assert.False(t, exists)
	assert.Nil(t, fc.RecordService.FileByIdentifier(identifier))

	event := fc.RecordService.LastEvent()
	require.NotNil(t, event)
	assert.Equal(t, constants.EventDeletion, event.EventType)
	assert.Contains(t, event.OutcomeDetail, "admin@example.com")
}

func TestDeleterRequiresRequestor(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	identifier := archiveOneFile(t, fc)

	tf, errors := archival.NewDeleter(fc.Context, identifier, "").Run()
	assert.Nil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)
	assert.NotNil(t, fc.RecordService.FileByIdentifier(identifier))
}

func TestDeleterKeepsRecordOnStorageFailure(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	identifier := archiveOneFile(t, fc)
	fc.BackupStore.FailOn["Delete"] = fmt.Errorf("access denied")

	tf, errors := archival.NewDeleter(fc.Context, identifier, "admin@example.com").Run()
	require.NotNil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.False(t, errors[0].IsFatal)

	// The record must survive until every copy is really gone.
	assert.NotNil(t, fc.RecordService.FileByIdentifier(identifier))
}

func TestDeleterUnknownIdentifier(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()

	tf, errors := archival.NewDeleter(fc.Context, "never/archived.txt", "admin@example.com").Run()
	assert.Nil(t, tf)
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)
}

func TestDeleterRefusesUnconfiguredProvider(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	identifier := archiveOneFile(t, fc)
	tf := fc.RecordService.FileByIdentifier(identifier)
	tf.StorageProvider = constants.StorageProviderAWS

	_, errors := archival.NewDeleter(fc.Context, identifier, "admin@example.com").Run()
	require.Equal(t, 1, len(errors))
	assert.True(t, errors[0].IsFatal)
	assert.Contains(t, errors[0].Message, "no configured object store")

	// Record and copies stay put until the configuration is fixed.
	assert.NotNil(t, fc.RecordService.FileByIdentifier(identifier))
	exists, _ := fc.PrimaryStore.Exists(context.Background(), tf.Key)
	assert.True(t, exists)
}
