package network_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/registry"
	"github.com/esperoj/esperoj/network"
	"github.com/esperoj/esperoj/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRecordClient(t *testing.T, svc *testutil.FakeRecordService) *network.RecordClient {
	client, err := network.NewRecordClient(svc.URL(), "v1", "test@example.com", "secret", nil)
	require.Nil(t, err)
	require.NotNil(t, client)
	return client
}

func sampleTrackedFile(identifier string) *registry.TrackedFile {
	return &registry.TrackedFile{
		Identifier:      identifier,
		Size:            1843,
		Algorithm:       constants.AlgSha256,
		Digest:          "cf23df2207d99a74fbe169e3eba035e633b65d94",
		ContentType:     "image/jpeg",
		StorageProvider: constants.StorageProviderLocal,
		Bucket:          "archive",
		Key:             "54321-abcde",
		Status:          constants.StatusUploaded,
		LastVerified:    testutil.Bloomsday,
	}
}

func TestTrackedFileSaveAndGet(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	tf := sampleTrackedFile("photos/holiday 2019/img_0001.jpg")
	resp := client.TrackedFileSave(tf)
	require.Nil(t, resp.Error)
	saved := resp.TrackedFile()
	require.NotNil(t, saved)
	assert.True(t, saved.ID > 0)
	assert.Equal(t, tf.Identifier, saved.Identifier)
	assert.Equal(t, tf.Digest, saved.Digest)

	// Identifiers with spaces and slashes must survive the round trip.
	resp = client.TrackedFileByIdentifier(tf.Identifier)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.TrackedFile())
	assert.Equal(t, saved.ID, resp.TrackedFile().ID)

	resp = client.TrackedFileByID(saved.ID)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.TrackedFile())
	assert.Equal(t, tf.Identifier, resp.TrackedFile().Identifier)
}

func TestTrackedFileNotFound(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	resp := client.TrackedFileByIdentifier("does/not/exist.txt")
	assert.NotNil(t, resp.Error)
	assert.True(t, resp.ObjectNotFound())
	assert.Nil(t, resp.TrackedFile())
}

func TestTrackedFileUpdate(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	saved := svc.AddFile(sampleTrackedFile("docs/report.pdf"))
	saved.Status = constants.StatusVerified
	saved.LastVerified = time.Now().UTC()

	resp := client.TrackedFileSave(saved)
	require.Nil(t, resp.Error)
	updated := resp.TrackedFile()
	require.NotNil(t, updated)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, constants.StatusVerified, updated.Status)
}

func TestTrackedFileSaveConflict(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	svc.AddFile(sampleTrackedFile("docs/report.pdf"))

	// A create with an identifier that already exists must be refused.
	dupe := sampleTrackedFile("docs/report.pdf")
	resp := client.TrackedFileSave(dupe)
	require.NotNil(t, resp.Error)
	assert.Equal(t, 409, resp.Response.StatusCode)
	assert.Equal(t, 1, svc.FileCount())
}

func TestTrackedFileList(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	uploaded := sampleTrackedFile("a/uploaded.txt")
	svc.AddFile(uploaded)
	verified := sampleTrackedFile("b/verified.txt")
	verified.Status = constants.StatusVerified
	svc.AddFile(verified)

	params := url.Values{}
	params.Set("status", constants.StatusUploaded)
	resp := client.TrackedFileList(params)
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, resp.Count)
	require.Equal(t, 1, len(resp.TrackedFiles()))
	assert.Equal(t, "a/uploaded.txt", resp.TrackedFiles()[0].Identifier)

	resp = client.TrackedFileList(url.Values{})
	require.Nil(t, resp.Error)
	assert.Equal(t, 2, resp.Count)
	assert.False(t, resp.HasNextPage())
}

func TestTrackedFileDelete(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	saved := svc.AddFile(sampleTrackedFile("tmp/scratch.dat"))
	resp := client.TrackedFileDelete(saved.ID)
	require.Nil(t, resp.Error)
	assert.Equal(t, 0, svc.FileCount())

	resp = client.TrackedFileDelete(saved.ID)
	assert.NotNil(t, resp.Error)
	assert.True(t, resp.ObjectNotFound())
}

func TestFixityEventSaveAndList(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	event := &registry.FixityEvent{
		Identifier:     "c59a3278-4ca9-4ce5-bd66-30cd32905b78",
		TrackedFileID:  1,
		FileIdentifier: "docs/report.pdf",
		EventType:      constants.EventFixityCheck,
		Algorithm:      constants.AlgSha256,
		ExpectedDigest: "0000",
		ActualDigest:   "0000",
		Outcome:        constants.OutcomeSuccess,
		OutcomeDetail:  "Fixity matches",
		DateTime:       time.Now().UTC(),
	}
	resp := client.FixityEventSave(event)
	require.Nil(t, resp.Error)
	saved := resp.FixityEvent()
	require.NotNil(t, saved)
	assert.True(t, saved.ID > 0)

	params := url.Values{}
	params.Set("file_identifier", "docs/report.pdf")
	resp = client.FixityEventList(params)
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, resp.Count)
	require.Equal(t, 1, len(resp.FixityEvents()))
	assert.Equal(t, constants.OutcomeSuccess, resp.FixityEvents()[0].Outcome)

	params.Set("file_identifier", "other/file.txt")
	resp = client.FixityEventList(params)
	require.Nil(t, resp.Error)
	assert.Equal(t, 0, resp.Count)
}

func TestSaveFailureSurfacesError(t *testing.T) {
	svc := testutil.NewFakeRecordService()
	defer svc.Close()
	client := getRecordClient(t, svc)

	svc.FailNextSave = true
	resp := client.TrackedFileSave(sampleTrackedFile("x/y.txt"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, 500, resp.Response.StatusCode)
	assert.Equal(t, 0, svc.FileCount())
}

func TestEscapeFileIdentifier(t *testing.T) {
	encoded := network.EscapeFileIdentifier("photos/holiday 2019/img_0001.jpg")
	assert.Equal(t, "photos%2Fholiday%202019%2Fimg_0001.jpg", encoded)
}
