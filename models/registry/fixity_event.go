package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/esperoj/esperoj/constants"
)

// FixityEvent records the outcome of a single fixity check or archival
// upload, in the style of a PREMIS event. The records service keeps the
// full event history per file, so auditors can see every digest we ever
// calculated.
type FixityEvent struct {
	ID             int64     `json:"id,omitempty"`
	Identifier     string    `json:"identifier"`
	TrackedFileID  int64     `json:"tracked_file_id"`
	FileIdentifier string    `json:"file_identifier"`
	EventType      string    `json:"event_type"`
	Algorithm      string    `json:"algorithm"`
	ExpectedDigest string    `json:"expected_digest"`
	ActualDigest   string    `json:"actual_digest"`
	Outcome        string    `json:"outcome"`
	OutcomeDetail  string    `json:"outcome_detail"`
	DateTime       time.Time `json:"datetime"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

func FixityEventFromJSON(jsonData []byte) (*FixityEvent, error) {
	event := &FixityEvent{}
	err := json.Unmarshal(jsonData, event)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (event *FixityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(event)
}

// DigestsMatch returns true if the digest we calculated matches the
// digest on record.
func (event *FixityEvent) DigestsMatch() bool {
	return event.ExpectedDigest == event.ActualDigest
}

// OutcomeInformation renders a human-readable description of the
// event for logs and alert emails.
func (event *FixityEvent) OutcomeInformation() string {
	if event.Outcome == constants.OutcomeSuccess {
		return fmt.Sprintf("Fixity matches for %s: %s:%s",
			event.FileIdentifier, event.Algorithm, event.ActualDigest)
	}
	return fmt.Sprintf("Fixity did not match for %s. Expected %s, got %s",
		event.FileIdentifier, event.ExpectedDigest, event.ActualDigest)
}
