package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/util"
)

// TrackedFile is the system-of-record entry describing a file's
// archival and verification status. The records service owns these
// rows; the storage adapter never mutates them directly.
type TrackedFile struct {
	ID              int64     `json:"id,omitempty"`
	Identifier      string    `json:"identifier"`
	Size            int64     `json:"size"`
	Algorithm       string    `json:"algorithm"`
	Digest          string    `json:"digest"`
	ContentType     string    `json:"content_type,omitempty"`
	StorageProvider string    `json:"storage_provider"`
	Bucket          string    `json:"bucket"`
	Key             string    `json:"key"`
	Status          string    `json:"status"`
	LastVerified    time.Time `json:"last_verified,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

func TrackedFileFromJSON(jsonData []byte) (*TrackedFile, error) {
	tf := &TrackedFile{}
	err := json.Unmarshal(jsonData, tf)
	if err != nil {
		return nil, err
	}
	return tf, nil
}

func (tf *TrackedFile) ToJSON() ([]byte, error) {
	return json.Marshal(tf)
}

// URI returns the storage URI of this file's archived copy.
func (tf *TrackedFile) URI() string {
	return fmt.Sprintf("%s/%s/%s", tf.StorageProvider, tf.Bucket, tf.Key)
}

// IsTerminal returns true if this file's status requires manual
// remediation before the pipeline will touch it again.
func (tf *TrackedFile) IsTerminal() bool {
	for _, status := range constants.TerminalStatuses {
		if tf.Status == status {
			return true
		}
	}
	return false
}

// NeedsFixityCheck returns true if this file hasn't been verified
// within the past maxDays days. Files in terminal states are excluded;
// re-checking a file we already know is corrupt tells us nothing new.
func (tf *TrackedFile) NeedsFixityCheck(maxDays int) bool {
	if tf.IsTerminal() || tf.Status == constants.StatusPending {
		return false
	}
	threshold := time.Now().UTC().AddDate(0, 0, -maxDays)
	return tf.LastVerified.Before(threshold)
}

// Validate returns an error describing the first problem it finds with
// this record, or nil if the record looks sound enough to save.
func (tf *TrackedFile) Validate() error {
	if tf.Identifier == "" {
		return fmt.Errorf("tracked file requires an identifier")
	}
	if !isValidAlgorithm(tf.Algorithm) {
		return fmt.Errorf("tracked file %s has unsupported algorithm %q", tf.Identifier, tf.Algorithm)
	}
	if tf.Digest == "" {
		return fmt.Errorf("tracked file %s has no digest", tf.Identifier)
	}
	if alg, err := util.AlgorithmForDigest(tf.Digest); err != nil || alg != tf.Algorithm {
		return fmt.Errorf("tracked file %s digest %q is not a valid %s digest",
			tf.Identifier, tf.Digest, tf.Algorithm)
	}
	if !isValidStatus(tf.Status) {
		return fmt.Errorf("tracked file %s has unknown status %q", tf.Identifier, tf.Status)
	}
	if tf.StorageProvider == "" || tf.Bucket == "" || tf.Key == "" {
		return fmt.Errorf("tracked file %s has an incomplete storage location", tf.Identifier)
	}
	return nil
}

func isValidAlgorithm(algorithm string) bool {
	for _, alg := range constants.DigestAlgorithms {
		if alg == algorithm {
			return true
		}
	}
	return false
}

func isValidStatus(status string) bool {
	for _, s := range constants.Statuses {
		if s == status {
			return true
		}
	}
	return false
}
