package testutil

import (
	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/network"
	"github.com/esperoj/esperoj/util/logger"
)

// FakeContext bundles a common.Context wired entirely to fakes: an
// in-memory object store per provider and a real RecordClient pointed
// at an httptest records service. Callers must Close() it.
type FakeContext struct {
	Context       *common.Context
	RecordService *FakeRecordService
	PrimaryStore  *FakeObjectStore
	BackupStore   *FakeObjectStore
	NSQClient     *FakeNSQClient
}

// NewFakeContext builds a context with a Local primary bucket named
// "archive" and a Wasabi backup bucket named "archive-backup",
// matching the test config file.
func NewFakeContext() *FakeContext {
	recordService := NewFakeRecordService()
	recordClient, err := network.NewRecordClient(
		recordService.URL(), "v1", "test@example.com", "secret", nil)
	if err != nil {
		panic(err)
	}
	primary := NewFakeObjectStore(constants.StorageProviderLocal, "archive")
	backup := NewFakeObjectStore(constants.StorageProviderWasabi, "archive-backup")

	config := &common.Config{
		ArchivalBuckets: []*common.ArchivalBucket{
			{Provider: primary.Provider(), Bucket: primary.Bucket()},
			{Provider: backup.Provider(), Bucket: backup.Bucket()},
		},
		ConfigName:              "test",
		MaxDaysSinceFixityCheck: 90,
		MaxFileSize:             5497558138880,
		MaxFixityItemsPerRun:    2500,
		RecordSaveRetries:       2,
		RecordSaveRetryInterval: 0,
	}
	nsqClient := NewFakeNSQClient()
	context := &common.Context{
		Config:       config,
		Logger:       logger.DiscardLogger(),
		NSQClient:    nsqClient,
		RecordClient: recordClient,
		ObjectStores: map[string]network.ObjectStore{
			primary.Provider(): primary,
			backup.Provider():  backup,
		},
	}
	return &FakeContext{
		Context:       context,
		RecordService: recordService,
		PrimaryStore:  primary,
		BackupStore:   backup,
		NSQClient:     nsqClient,
	}
}

func (fc *FakeContext) Close() {
	fc.RecordService.Close()
}
