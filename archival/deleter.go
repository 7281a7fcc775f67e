package archival

import (
	"context"
	"fmt"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/models/registry"
	"github.com/esperoj/esperoj/models/service"
	"github.com/esperoj/esperoj/network"
	"github.com/google/uuid"
)

// Deleter removes a file from archival storage: every copy in every
// bucket, then the tracked file row. The event log keeps a deletion
// event, so the fact that the file existed is never erased.
//
// Deletion is deliberate and rare. It is never queued; an operator
// runs it by hand and must say who they are.
type Deleter struct {
	// Context includes config settings and clients to access S3 and
	// the records service.
	Context *common.Context

	// Identifier is the identifier of the TrackedFile to delete.
	Identifier string

	// RequestedBy is the email address of the person who requested
	// this deletion. Required; it goes into the deletion event.
	RequestedBy string
}

// NewDeleter creates a new Deleter.
func NewDeleter(context *common.Context, identifier, requestedBy string) *Deleter {
	return &Deleter{
		Context:     context,
		Identifier:  identifier,
		RequestedBy: requestedBy,
	}
}

// Run deletes every archived copy of the file and then the record.
// The record is deleted only after all copies are gone; a failed copy
// deletion leaves the record in place so the file is never orphaned
// in storage.
func (d *Deleter) Run() (*registry.TrackedFile, []*service.ProcessingError) {
	errors := make([]*service.ProcessingError, 0)
	if d.RequestedBy == "" {
		return nil, append(errors, service.NewProcessingError(d.Identifier,
			"deletion requires the email of the requestor", true))
	}

	resp := d.Context.RecordClient.TrackedFileByIdentifier(d.Identifier)
	if resp.Error != nil {
		isFatal := resp.ObjectNotFound()
		return nil, append(errors, service.NewProcessingError(d.Identifier, resp.Error.Error(), isFatal))
	}
	tf := resp.TrackedFile()

	stores := d.Context.StoresForFile(tf.StorageProvider)
	if len(stores) == 0 {
		// Deleting the record without touching storage would orphan
		// the copies. Fix the configuration first.
		return tf, append(errors, service.NewProcessingError(d.Identifier,
			fmt.Sprintf("no configured object store for provider %s", tf.StorageProvider), true))
	}

	ctx := context.Background()
	for _, store := range stores {
		err := store.Delete(ctx, tf.Key)
		if err != nil && !network.IsNoSuchKey(err) {
			errors = append(errors, service.NewProcessingError(d.Identifier,
				fmt.Sprintf("could not delete %s from %s/%s: %v",
					tf.Key, store.Provider(), store.Bucket(), err), false))
			continue
		}
		d.Context.Logger.Infof("Deleted %s from %s/%s", tf.Key, store.Provider(), store.Bucket())
	}
	if len(errors) > 0 {
		return tf, errors
	}

	if procErr := d.recordDeletionEvent(tf); procErr != nil {
		errors = append(errors, procErr)
	}
	delResp := d.Context.RecordClient.TrackedFileDelete(tf.ID)
	if delResp.Error != nil {
		return tf, append(errors, service.NewProcessingError(d.Identifier, delResp.Error.Error(), false))
	}
	d.Context.Logger.Infof("Deleted tracked file %s at the request of %s", tf.Identifier, d.RequestedBy)
	return tf, errors
}

func (d *Deleter) recordDeletionEvent(tf *registry.TrackedFile) *service.ProcessingError {
	event := &registry.FixityEvent{
		Identifier:     uuid.New().String(),
		TrackedFileID:  tf.ID,
		FileIdentifier: tf.Identifier,
		EventType:      constants.EventDeletion,
		Algorithm:      tf.Algorithm,
		ExpectedDigest: tf.Digest,
		ActualDigest:   tf.Digest,
		Outcome:        constants.OutcomeSuccess,
		OutcomeDetail:  fmt.Sprintf("All copies of %s deleted at the request of %s", tf.URI(), d.RequestedBy),
		DateTime:       time.Now().UTC(),
	}
	resp := d.Context.RecordClient.FixityEventSave(event)
	if resp.Error != nil {
		return service.NewProcessingError(tf.Identifier, resp.Error.Error(), false)
	}
	return nil
}
