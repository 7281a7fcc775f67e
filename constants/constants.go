package constants

const (
	AlgMd5    = "md5"
	AlgSha256 = "sha256"
	AlgSha512 = "sha512"

	// DefaultAlgorithm is the algorithm we record at archival time
	// and verify against afterward. Md5 is also computed on upload
	// so we can compare against single-part provider ETags.
	DefaultAlgorithm = AlgSha256

	EventArchival    = "archival"
	EventDeletion    = "deletion"
	EventFixityCheck = "fixity check"

	OutcomeFailed  = "Failed"
	OutcomeSuccess = "Success"

	StatusCorrupt  = "corrupt"
	StatusMissing  = "missing"
	StatusPending  = "pending"
	StatusUploaded = "uploaded"
	StatusVerified = "verified"

	StorageProviderAWS    = "AWS"
	StorageProviderLocal  = "Local"
	StorageProviderWasabi = "Wasabi"

	TopicArchive = "archive_topic"
	TopicFixity  = "fixity_topic"

	// VerificationShards is the number of groups the tracked files
	// are divided into for scheduled fixity checks. One shard is
	// checked per day, so the whole collection cycles through
	// verification every VerificationShards days.
	VerificationShards = 28
)

var DigestAlgorithms []string = []string{
	AlgMd5,
	AlgSha256,
	AlgSha512,
}

var Statuses []string = []string{
	StatusCorrupt,
	StatusMissing,
	StatusPending,
	StatusUploaded,
	StatusVerified,
}

// TerminalStatuses require operator remediation. The pipeline never
// transitions a file out of these on its own.
var TerminalStatuses []string = []string{
	StatusCorrupt,
	StatusMissing,
}
