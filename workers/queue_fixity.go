package workers

import (
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/models/registry"
	"github.com/esperoj/esperoj/util"
)

// QueueFixity scans the records service for files whose last
// verification is too old and pushes their identifiers into the NSQ
// fixity topic. The tracked files are spread over a fixed number of
// shards so the whole collection gets verified over the course of a
// cycle instead of in one giant burst.
type QueueFixity struct {
	Context    *common.Context
	Identifier string
}

// NewQueueFixity creates a new worker to push files needing
// a fixity check into the NSQ.
//
// The optional param identifier is a TrackedFile identifier.
// If provided, only that item will be queued. This is useful
// for manual testing and spot checks.
//
// This relies on these config settings:
//
// MaxDaysSinceFixityCheck specifies the number of days between
// fixity checks. Any file that hasn't been checked in this many
// days is eligible to be queued.
//
// QueueFixityInterval specifies how often this should check
// for new files to queue. In production, this is usually 60 minutes.
//
// MaxFixityItemsPerRun specifies the maximum number of items
// to queue per run. In production, this is usually 2500, though
// it could be set higher when we have the bandwidth and want to
// clear out backlogs.
func NewQueueFixity(identifier string) *QueueFixity {
	return &QueueFixity{
		Context:    common.NewContext(),
		Identifier: identifier,
	}
}

func (q *QueueFixity) logStartup() {
	q.Context.Logger.Info("Starting with config settings:")
	q.Context.Logger.Info(q.Context.Config.ToJSON())
	q.Context.Logger.Infof("Scan interval: %s",
		q.Context.Config.QueueFixityInterval.String())
}

func (q *QueueFixity) RunOnce() {
	q.logStartup()
	q.run()
}

func (q *QueueFixity) RunAsService() {
	q.logStartup()
	for {
		q.run()
		time.Sleep(q.Context.Config.QueueFixityInterval)
	}
}

// run retrieves a list of TrackedFiles needing fixity checks and
// adds the identifier of each file to the NSQ fixity topic. It stops
// after queuing MaxFixityItemsPerRun items. A pid file keeps two
// queuers from scanning at once; double-queuing wastes bandwidth on
// redundant downloads.
func (q *QueueFixity) run() {
	pidPath := filepath.Join(q.Context.Config.PidDir, "queue_fixity.pid")
	if util.IsRunningInOtherProcess(pidPath) {
		q.Context.Logger.Warningf("Skipping scan: another queue_fixity process owns %s", pidPath)
		return
	}
	if err := util.WritePidFile(pidPath); err != nil {
		q.Context.Logger.Errorf("Could not write pid file %s: %v", pidPath, err)
		return
	}
	defer util.DeletePidFile(pidPath)

	if q.Identifier != "" {
		q.queueOne()
	} else {
		q.queueList()
	}
}

func (q *QueueFixity) queueList() {
	perPage := util.Min(100, q.Context.Config.MaxFixityItemsPerRun)
	params := url.Values{}
	itemsAdded := 0
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", "1")
	params.Set("sort", "last_verified")

	maxDays := q.Context.Config.MaxDaysSinceFixityCheck
	sinceWhen := time.Now().UTC().AddDate(0, 0, -maxDays)
	params.Set("last_verified__lteq", sinceWhen.Format(time.RFC3339))

	shard := currentShard(time.Now().UTC())
	q.Context.Logger.Infof("Queuing up to %d files in shard %d not checked since %s to topic %s",
		q.Context.Config.MaxFixityItemsPerRun, shard,
		sinceWhen.Format(time.RFC3339), constants.TopicFixity)

	for {
		resp := q.Context.RecordClient.TrackedFileList(params)
		if resp.Error != nil {
			q.Context.Logger.Errorf("Error getting tracked file list: %s", resp.Error)
			return
		}
		for _, tf := range resp.TrackedFiles() {
			if !tf.NeedsFixityCheck(maxDays) || !inShard(tf, shard) {
				continue
			}
			if q.addToNSQ(tf) {
				itemsAdded++
			}
			if itemsAdded >= q.Context.Config.MaxFixityItemsPerRun {
				break
			}
		}
		if !resp.HasNextPage() || itemsAdded >= q.Context.Config.MaxFixityItemsPerRun {
			break
		}
		params = resp.ParamsForNextPage()
	}
	q.Context.Logger.Infof("Queued %d files", itemsAdded)
}

func (q *QueueFixity) queueOne() {
	resp := q.Context.RecordClient.TrackedFileByIdentifier(q.Identifier)
	if resp.Error != nil {
		q.Context.Logger.Errorf("Error getting tracked file %s: %s", q.Identifier, resp.Error)
		return
	}
	q.addToNSQ(resp.TrackedFile())
}

func (q *QueueFixity) addToNSQ(tf *registry.TrackedFile) bool {
	err := q.Context.NSQClient.Enqueue(constants.TopicFixity, tf.Identifier)
	if err != nil {
		q.Context.Logger.Errorf("Error sending '%s' to %s: %v", tf.Identifier, constants.TopicFixity, err)
		return false
	}
	q.Context.Logger.Infof("Added '%s' to %s", tf.Identifier, constants.TopicFixity)
	return true
}

// currentShard returns today's verification shard. Day one of the
// month starts the cycle over.
func currentShard(now time.Time) int64 {
	return int64((now.Day() - 1) % constants.VerificationShards)
}

func inShard(tf *registry.TrackedFile, shard int64) bool {
	return tf.ID%int64(constants.VerificationShards) == shard
}
