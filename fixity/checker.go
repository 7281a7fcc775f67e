package fixity

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

// Checker verifies the fixity of one tracked file: it streams every
// archived copy of the file (primary bucket plus backups) through the
// file's recorded digest algorithm and compares the result to the
// digest on record. Each copy gets its own fixity event. The file's
// status changes to verified only when every copy matches.
type Checker struct {
	// Context includes config settings and clients to access S3 and
	// the records service.
	Context *common.Context

	// Identifier is the identifier of the TrackedFile whose fixity
	// we're checking.
	Identifier string
}

// NewChecker creates a new fixity.Checker.
func NewChecker(context *common.Context, identifier string) *Checker {
	return &Checker{
		Context:    context,
		Identifier: identifier,
	}
}

// Run performs the fixity check. It returns the events it recorded and
// any errors that occurred along the way. Transient errors (network
// problems reading an object or saving the record) come back as
// non-fatal so the caller can requeue; a digest mismatch or a missing
// object is fatal because no retry will fix it.
func (c *Checker) Run() ([]*registry.FixityEvent, []*service.ProcessingError) {
	events := make([]*registry.FixityEvent, 0)
	errors := make([]*service.ProcessingError, 0)

	tf, procErr := c.loadTrackedFile()
	if procErr != nil {
		return events, append(errors, procErr)
	}
	if tf.IsTerminal() {
		c.Context.Logger.Warningf("Skipping fixity check of %s: status is %s and needs operator attention",
			tf.Identifier, tf.Status)
		return events, errors
	}
	if tf.Status == constants.StatusPending {
		c.Context.Logger.Warningf("Skipping fixity check of %s: the upload hasn't completed",
			tf.Identifier)
		return events, errors
	}

	stores := c.Context.StoresForFile(tf.StorageProvider)
	if len(stores) == 0 {
		// Zero stores means zero copies checked. The record keeps its
		// old status until someone fixes the configuration.
		return events, append(errors, service.NewProcessingError(c.Identifier,
			fmt.Sprintf("no configured object store for provider %s", tf.StorageProvider), true))
	}
	newStatus := constants.StatusVerified
	for _, store := range stores {
		event, missing, err := c.checkCopy(tf, store)
		if err != nil {
			// Can't say anything about this copy's fixity, so don't
			// record an event for it. The queue will bring us back.
			errors = append(errors, service.NewProcessingError(
				c.Identifier, err.Error(), false))
			continue
		}
		events = append(events, event)
		if event.Outcome != constants.OutcomeSuccess {
			if missing && store.Provider() == tf.StorageProvider {
				newStatus = constants.StatusMissing
			} else if newStatus != constants.StatusMissing {
				newStatus = constants.StatusCorrupt
			}
			errors = append(errors, service.NewProcessingError(
				c.Identifier, event.OutcomeInformation(), true))
		}
	}

	for _, event := range events {
		resp := c.Context.RecordClient.FixityEventSave(event)
		if resp.Error != nil {
			errors = append(errors, service.NewProcessingError(
				c.Identifier, resp.Error.Error(), false))
		}
	}

	// If some copy couldn't be read at all and everything we did read
	// was fine, leave the record alone. The requeue will produce a
	// complete answer next time. A mismatch we did observe still gets
	// written.
	if len(events) < len(stores) && newStatus == constants.StatusVerified {
		return events, errors
	}

	tf.Status = newStatus
	if newStatus == constants.StatusVerified {
		tf.LastVerified = time.Now().UTC()
	}
	if procErr = c.saveTrackedFile(tf); procErr != nil {
		errors = append(errors, procErr)
	}
	return events, errors
}

func (c *Checker) loadTrackedFile() (*registry.TrackedFile, *service.ProcessingError) {
	resp := c.Context.RecordClient.TrackedFileByIdentifier(c.Identifier)
	if resp.Error != nil {
		if resp.ObjectNotFound() {
			return nil, service.NewProcessingError(c.Identifier,
				fmt.Sprintf("no tracked file with identifier %s", c.Identifier), true)
		}
		return nil, service.NewProcessingError(c.Identifier, resp.Error.Error(), false)
	}
	return resp.TrackedFile(), nil
}

// checkCopy streams one archived copy through the file's digest
// algorithm and builds the fixity event describing the outcome. A
// missing object is an outcome (Failed), not an error; an unreadable
// object is an error.
func (c *Checker) checkCopy(tf *registry.TrackedFile, store network.ObjectStore) (event *registry.FixityEvent, missing bool, err error) {
	ctx := context.Background()
	event = &registry.FixityEvent{
		Identifier:     uuid.New().String(),
		TrackedFileID:  tf.ID,
		FileIdentifier: tf.Identifier,
		EventType:      constants.EventFixityCheck,
		Algorithm:      tf.Algorithm,
		ExpectedDigest: tf.Digest,
		DateTime:       time.Now().UTC(),
	}

	reader, err := store.GetObject(ctx, tf.Key)
	if err == nil {
		// Minio defers some GetObject errors until the first read, so
		// a nil error here doesn't yet mean the object exists.
		var digest string
		var byteCount int64
		digest, byteCount, err = Digest(tf.Algorithm, reader)
		reader.Close()
		if err == nil {
			event.ActualDigest = digest
			if DigestsMatch(tf.Digest, digest) {
				event.Outcome = constants.OutcomeSuccess
				event.OutcomeDetail = fmt.Sprintf("Read %d bytes from %s/%s. Fixity matches.",
					byteCount, store.Provider(), store.Bucket())
			} else {
				event.Outcome = constants.OutcomeFailed
				event.OutcomeDetail = fmt.Sprintf("Digest mismatch in %s/%s: expected %s, got %s",
					store.Provider(), store.Bucket(), tf.Digest, digest)
				c.Context.Logger.Errorf("TrackedFile %s: %s", tf.Identifier, event.OutcomeDetail)
			}
			return event, false, nil
		}
	}
	if network.IsNoSuchKey(err) {
		event.Outcome = constants.OutcomeFailed
		event.OutcomeDetail = fmt.Sprintf("Object %s is missing from %s/%s",
			tf.Key, store.Provider(), store.Bucket())
		c.Context.Logger.Errorf("TrackedFile %s: %s", tf.Identifier, event.OutcomeDetail)
		return event, true, nil
	}
	return nil, false, fmt.Errorf("can't read %s from %s/%s: %v",
		tf.Key, store.Provider(), store.Bucket(), err)
}

func (c *Checker) saveTrackedFile(tf *registry.TrackedFile) *service.ProcessingError {
	var lastErr error
	for attempt := 0; attempt <= c.Context.Config.RecordSaveRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.Context.Config.RecordSaveRetryInterval)
		}
		resp := c.Context.RecordClient.TrackedFileSave(tf)
		if resp.Error == nil {
			return nil
		}
		lastErr = resp.Error
		c.Context.Logger.Warningf("Attempt %d to save tracked file %s failed: %v",
			attempt+1, tf.Identifier, resp.Error)
	}
	return service.NewProcessingError(tf.Identifier,
		fmt.Sprintf("could not save tracked file after retries: %v", lastErr), false)
}
