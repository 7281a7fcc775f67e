package archival

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/fixity"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/models/registry"
	"github.com/esperoj/esperoj/models/service"
	"github.com/esperoj/esperoj/network"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Archiver copies one local file into the archival buckets and records
// it with the records service. The flow is: validate the local file,
// refuse duplicates, write a pending record, upload to the primary
// bucket and every backup bucket, then mark the record uploaded and
// log an archival event.
//
// Every step is safe to re-run. A crashed or requeued archive finds
// the pending record from the earlier attempt, reuses its storage key,
// skips the copies that already made it, and converges on the same
// final state.
type Archiver struct {
	// Context includes config settings and clients to access S3 and
	// the records service.
	Context *common.Context

	// LocalPath is the path of the file to archive.
	LocalPath string

	// Identifier is the name the file will be tracked under. If
	// empty, the file's base name is used.
	Identifier string
}

// NewArchiver creates a new Archiver for the file at localPath.
func NewArchiver(context *common.Context, localPath string) *Archiver {
	return &Archiver{
		Context:    context,
		LocalPath:  localPath,
		Identifier: filepath.Base(localPath),
	}
}

// Run archives the file. On success it returns the tracked file record
// in its final state. Errors follow the usual severity rules: a bad
// local file or a conflicting duplicate is fatal, network trouble is
// not.
func (a *Archiver) Run() (*registry.TrackedFile, []*service.ProcessingError) {
	errors := make([]*service.ProcessingError, 0)

	if err := a.validateLocalFile(); err != nil {
		return nil, append(errors, a.Error(err, true))
	}

	digests, size, err := a.computeDigests()
	if err != nil {
		return nil, append(errors, a.Error(err, true))
	}
	digest := digests[constants.DefaultAlgorithm]

	tf, procErr := a.findOrCreateRecord(digest, digests[constants.AlgMd5], size)
	if procErr != nil {
		return nil, append(errors, procErr)
	}
	if tf.Status != constants.StatusPending {
		// Same bytes, already archived. Nothing to do.
		a.Context.Logger.Infof("File %s is already archived with status %s", tf.Identifier, tf.Status)
		return tf, errors
	}

	if uploadErrors := a.uploadAll(tf, digests[constants.AlgMd5]); len(uploadErrors) > 0 {
		// The pending record stays behind so the retry can pick up
		// where this attempt stopped.
		return tf, append(errors, uploadErrors...)
	}

	tf.Status = constants.StatusUploaded
	if procErr = a.saveTrackedFile(tf); procErr != nil {
		return tf, append(errors, procErr)
	}
	if procErr = a.recordArchivalEvent(tf); procErr != nil {
		errors = append(errors, procErr)
	}
	a.Context.Logger.Infof("Archived %s as %s (%d bytes, %s)",
		a.LocalPath, tf.URI(), tf.Size, tf.ContentType)
	return tf, errors
}

func (a *Archiver) validateLocalFile() error {
	stat, err := os.Stat(a.LocalPath)
	if err != nil {
		return fmt.Errorf("can't read file to archive: %v", err)
	}
	if !stat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", a.LocalPath)
	}
	if stat.Size() == 0 {
		return fmt.Errorf("refusing to archive empty file %s", a.LocalPath)
	}
	maxSize := a.Context.Config.MaxFileSize
	if maxSize > 0 && stat.Size() > maxSize {
		return fmt.Errorf("%s is %d bytes, which exceeds the %d byte limit",
			a.LocalPath, stat.Size(), maxSize)
	}
	return nil
}

// computeDigests makes a single pass over the file, calculating the
// digest we'll verify against later plus an md5 we can compare to
// single-part provider ETags.
func (a *Archiver) computeDigests() (map[string]string, int64, error) {
	reader, err := os.Open(a.LocalPath)
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()
	return fixity.MultiDigest(reader, constants.DefaultAlgorithm, constants.AlgMd5)
}

// findOrCreateRecord returns the pending record for this file,
// creating one if this is the first attempt. If the identifier is
// already tracked with the same digest, the existing record comes
// back as-is; re-archiving identical bytes is a no-op. A different
// digest under the same identifier is refused.
func (a *Archiver) findOrCreateRecord(digest, md5Digest string, size int64) (*registry.TrackedFile, *service.ProcessingError) {
	resp := a.Context.RecordClient.TrackedFileByIdentifier(a.Identifier)
	if resp.Error == nil {
		existing := resp.TrackedFile()
		if !fixity.DigestsMatch(existing.Digest, digest) {
			return nil, service.NewProcessingError(a.Identifier,
				fmt.Sprintf("identifier %s is already archived with %s digest %s; "+
					"refusing to overwrite it with different content",
					a.Identifier, existing.Algorithm, existing.Digest), true)
		}
		return existing, nil
	}
	if !resp.ObjectNotFound() {
		return nil, service.NewProcessingError(a.Identifier, resp.Error.Error(), false)
	}

	primary := a.Context.Config.PrimaryBucket()
	if primary == nil {
		return nil, service.NewProcessingError(a.Identifier,
			"no archival buckets configured", true)
	}
	contentType := a.detectContentType()
	tf := &registry.TrackedFile{
		Identifier:      a.Identifier,
		Size:            size,
		Algorithm:       constants.DefaultAlgorithm,
		Digest:          digest,
		ContentType:     contentType,
		StorageProvider: primary.Provider,
		Bucket:          primary.Bucket,
		Key:             uuid.New().String(),
		Status:          constants.StatusPending,
	}
	if err := tf.Validate(); err != nil {
		return nil, service.NewProcessingError(a.Identifier, err.Error(), true)
	}
	saveResp := a.Context.RecordClient.TrackedFileSave(tf)
	if saveResp.Error != nil {
		return nil, service.NewProcessingError(a.Identifier, saveResp.Error.Error(), false)
	}
	return saveResp.TrackedFile(), nil
}

func (a *Archiver) detectContentType() string {
	mtype, err := mimetype.DetectFile(a.LocalPath)
	if err != nil {
		a.Context.Logger.Warningf("Could not detect content type of %s: %v", a.LocalPath, err)
		return "application/octet-stream"
	}
	return mtype.String()
}

// uploadAll copies the file into the primary bucket and every backup
// bucket, skipping copies a previous attempt already landed. When the
// provider returns a single-part ETag, we compare it to the file's md5
// to catch corruption in transit.
func (a *Archiver) uploadAll(tf *registry.TrackedFile, md5Digest string) []*service.ProcessingError {
	ctx := context.Background()
	errors := make([]*service.ProcessingError, 0)
	stores := a.Context.StoresForFile(tf.StorageProvider)
	if len(stores) == 0 {
		return append(errors, a.Error(fmt.Errorf(
			"no configured object store for provider %s", tf.StorageProvider), true))
	}
	for _, store := range stores {
		exists, err := store.Exists(ctx, tf.Key)
		if err != nil {
			errors = append(errors, a.Error(err, false))
			continue
		}
		if exists {
			a.Context.Logger.Infof("Skipping upload of %s to %s/%s: already there",
				a.Identifier, store.Provider(), store.Bucket())
			continue
		}
		byteCount, err := store.Upload(ctx, tf.Key, a.LocalPath, tf.ContentType)
		if err != nil {
			errors = append(errors, a.Error(fmt.Errorf("upload to %s/%s failed: %v",
				store.Provider(), store.Bucket(), err), false))
			continue
		}
		if byteCount != tf.Size {
			errors = append(errors, a.Error(fmt.Errorf(
				"upload to %s/%s wrote %d of %d bytes",
				store.Provider(), store.Bucket(), byteCount, tf.Size), false))
			continue
		}
		if procErr := a.verifyETag(ctx, tf, store, md5Digest); procErr != nil {
			errors = append(errors, procErr)
		}
	}
	return errors
}

// verifyETag compares the uploaded object's ETag to the file's md5.
// Multipart uploads get composite ETags (md5 of md5s, with a part
// count suffix), which we can't check this way, so those are skipped.
func (a *Archiver) verifyETag(ctx context.Context, tf *registry.TrackedFile, store network.ObjectStore, md5Digest string) *service.ProcessingError {
	info, err := store.StatObject(ctx, tf.Key)
	if err != nil {
		return a.Error(fmt.Errorf("can't stat %s/%s after upload: %v",
			store.Provider(), store.Bucket(), err), false)
	}
	etag := strings.Trim(info.ETag, `"`)
	if len(etag) != 32 || strings.Contains(etag, "-") {
		return nil
	}
	if !fixity.DigestsMatch(md5Digest, etag) {
		// Remove the bad copy so the requeued attempt re-uploads it
		// instead of skipping a copy that already exists.
		if delErr := store.Delete(ctx, tf.Key); delErr != nil {
			a.Context.Logger.Errorf("Could not remove bad copy %s/%s/%s: %v",
				store.Provider(), store.Bucket(), tf.Key, delErr)
		}
		return a.Error(fmt.Errorf("etag of %s/%s/%s is %s, expected md5 %s",
			store.Provider(), store.Bucket(), tf.Key, etag, md5Digest), false)
	}
	return nil
}

func (a *Archiver) saveTrackedFile(tf *registry.TrackedFile) *service.ProcessingError {
	var lastErr error
	for attempt := 0; attempt <= a.Context.Config.RecordSaveRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(a.Context.Config.RecordSaveRetryInterval)
		}
		resp := a.Context.RecordClient.TrackedFileSave(tf)
		if resp.Error == nil {
			return nil
		}
		lastErr = resp.Error
		a.Context.Logger.Warningf("Attempt %d to save tracked file %s failed: %v",
			attempt+1, tf.Identifier, resp.Error)
	}
	return service.NewProcessingError(tf.Identifier,
		fmt.Sprintf("could not save tracked file after retries: %v", lastErr), false)
}

func (a *Archiver) recordArchivalEvent(tf *registry.TrackedFile) *service.ProcessingError {
	event := &registry.FixityEvent{
		Identifier:     uuid.New().String(),
		TrackedFileID:  tf.ID,
		FileIdentifier: tf.Identifier,
		EventType:      constants.EventArchival,
		Algorithm:      tf.Algorithm,
		ExpectedDigest: tf.Digest,
		ActualDigest:   tf.Digest,
		Outcome:        constants.OutcomeSuccess,
		OutcomeDetail: fmt.Sprintf("Archived to %s and %d backup bucket(s)",
			tf.URI(), len(a.Context.Config.BackupBuckets())),
		DateTime: time.Now().UTC(),
	}
	resp := a.Context.RecordClient.FixityEventSave(event)
	if resp.Error != nil {
		return service.NewProcessingError(tf.Identifier, resp.Error.Error(), false)
	}
	return nil
}

func (a *Archiver) Error(err error, isFatal bool) *service.ProcessingError {
	return service.NewProcessingError(a.Identifier, err.Error(), isFatal)
}
