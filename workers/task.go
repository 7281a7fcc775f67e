package workers

import (
	"time"

	"github.com/esperoj/esperoj/models/service"
	"github.com/nsqio/go-nsq"
)

// Runnable is the processing step a Task carries through the worker
// pipeline: archiving a file, checking its fixity, etc.
type Runnable interface {
	Run() []*service.ProcessingError
}

// Task encapsulates everything that a worker will need to
// pass from one channel to the next during processing.
type Task struct {

	// Identifier names the item being processed. For the archive
	// topic it's a local file path; for the fixity topic it's a
	// TrackedFile identifier.
	Identifier string

	// NSQMessage is the NSQ message the worker is processing.
	NSQMessage *nsq.Message

	// Processor does the actual work for this task.
	Processor Runnable

	// WorkResult describes the result of this worker's work.
	WorkResult *service.WorkResult

	nsqStopChannel chan bool

	// For testing
	nsqStartCalled bool

	// For testing
	tickerStopped bool
}

// NSQStart creates a timer that touches the NSQ message
// every two minutes while the task is in process. We need this
// because operations like calculating checksums on a 200GB file
// cannot pause to touch the NSQ message before it times out.
func (task *Task) NSQStart() {
	task.NSQMessage.DisableAutoResponse()
	interval := time.Duration(2) * time.Minute
	ticker := time.NewTicker(interval)
	stopChannel := make(chan bool)
	go func() {
		for {
			select {
			case <-ticker.C:
				task.NSQMessage.Touch()
			case <-stopChannel:
				ticker.Stop()
				task.tickerStopped = true
				return
			}
		}
	}()
	task.nsqStartCalled = true
	task.nsqStopChannel = stopChannel
}

// NSQRequeue requeues the message with the specified duration
// and stops sending touches.
func (task *Task) NSQRequeue(delay time.Duration) {
	task.nsqStopChannel <- true
	task.NSQMessage.Requeue(delay)
}

// NSQFinish finishes the message and stops sending touches.
func (task *Task) NSQFinish() {
	task.nsqStopChannel <- true
	task.NSQMessage.Finish()
}

// StartCalled returns true if NSQStart() has been called on this object.
// This method exists for testing purposes.
func (task *Task) StartCalled() bool {
	return task.nsqStartCalled
}

// TickerStopped returns true if either NSQFinish() or NSQRequeue()
// has been called. This method exists for testing purposes.
func (task *Task) TickerStopped() bool {
	return task.tickerStopped
}
