package workers

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/models/service"
	"github.com/nsqio/go-nsq"
)

// ServiceWorker defines the primary interface for queue workers.
// Actual workers will implement other methods in addition to these.
type ServiceWorker interface {
	RegisterAsNsqConsumer() error
	HandleMessage(*nsq.Message) error
	ProcessSuccessChannel()
	ProcessErrorChannel()
	ProcessFatalErrorChannel()
}

// Base contains the fundamental structures common to all workers.
type Base struct {

	// Context contains info about the context in which the worker is
	// operating, including connections to NSQ, Redis, S3, and the
	// records service.
	Context *common.Context

	// ItemsInProcess keeps track of identifiers that the worker is
	// currently processing. We need to do this because NSQ does not
	// dedupe messages, so the worker must. It also guarantees that
	// this worker never runs two operations on the same file at
	// once; concurrent runs would race on the record's status.
	ItemsInProcess *service.RingList

	// ProcessChannel is where the work actually happens: uploading,
	// checksumming, and recording, depending on the worker's
	// responsibility.
	ProcessChannel chan *Task

	// SuccessChannel processes items that have gone through the
	// ProcessChannel with no errors.
	SuccessChannel chan *Task

	// ErrorChannel processes items that have gone through the
	// ProcessChannel with one or more non-fatal errors. These items
	// typically should be retried.
	ErrorChannel chan *Task

	// FatalErrorChannel processes items that have gone through the
	// ProcessChannel with one or more fatal errors. These items
	// typically should not be retried.
	FatalErrorChannel chan *Task

	// KillChannel handles SIGTERM and SIGINT.
	KillChannel chan os.Signal

	// Settings contains information on channel sizes, retry limits,
	// and the NSQ topic and channel to subscribe to.
	Settings *Settings

	// GetTaskObject returns a Task object to be worked on.
	// This is not implemented in Base itself. It MUST be implemented
	// in structs that derive from Base.
	GetTaskObject func(*nsq.Message, string, *service.WorkResult) (*Task, error)

	// NSQConsumer implements HandleMessage to receive messages from NSQ.
	NSQConsumer *nsq.Consumer
}

// NewBase creates the channels and bookkeeping structures common to
// all workers. The caller still has to set GetTaskObject and spin up
// the channel processors.
func NewBase(context *common.Context, settings *Settings) Base {
	base := Base{
		Context:           context,
		Settings:          settings,
		ItemsInProcess:    service.NewRingList(settings.ChannelBufferSize),
		ProcessChannel:    make(chan *Task, settings.ChannelBufferSize),
		SuccessChannel:    make(chan *Task, settings.ChannelBufferSize),
		ErrorChannel:      make(chan *Task, settings.ChannelBufferSize),
		FatalErrorChannel: make(chan *Task, settings.ChannelBufferSize),
		KillChannel:       make(chan os.Signal, 1),
	}
	signal.Notify(base.KillChannel, syscall.SIGINT, syscall.SIGTERM)
	return base
}

// RegisterAsNsqConsumer registers this worker as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel. Note that as soon as you
// call this, your worker will start handling messages if any are
// available.
func (b *Base) RegisterAsNsqConsumer() error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", b.Settings.ChannelBufferSize)
	consumer, err := nsq.NewConsumer(b.Settings.NSQTopic, b.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	b.NSQConsumer = consumer
	b.NSQConsumer.AddHandler(b)
	b.NSQConsumer.ConnectToNSQLookupd(b.Context.Config.NsqLookupd)
	b.Context.Logger.Info("Registered as NSQ consumer")
	return nil
}

// HandleMessage fishes the identifier out of the NSQ message, skips
// it if this worker is already processing it, packages up a Task, and
// pushes the Task into the ProcessChannel.
func (b *Base) HandleMessage(message *nsq.Message) error {
	identifier := strings.TrimSpace(string(message.Body))
	if identifier == "" {
		b.Context.Logger.Error("Discarding NSQ message with empty body")
		return nil
	}
	if b.ItemsInProcess.Contains(identifier) {
		b.Context.Logger.Infof("Skipping %s: this worker is already working on it", identifier)
		return nil
	}

	workResult := b.GetWorkResult(identifier)
	if workResult.Attempt >= b.Settings.MaxAttempts && !workResult.Succeeded() {
		b.Context.Logger.Warningf("Discarding %s after %d failed attempts. Errors: %s",
			identifier, workResult.Attempt, workResult.NonFatalErrorMessage())
		b.DeleteWorkResult(identifier)
		return nil
	}

	task, err := b.GetTaskObject(message, identifier, workResult)
	if err != nil {
		b.Context.Logger.Errorf("Could not get Task for %s: %v", identifier, err)
		return err
	}

	b.MarkAsStarted(task)
	b.AddToInProcessList(identifier)
	b.ProcessChannel <- task

	// Return nil (no error) so NSQ knows we're working on this.
	return nil
}

// ProcessItem pulls tasks off the ProcessChannel, calls the task's
// Processor, and routes the task to the SuccessChannel, the
// ErrorChannel, or the FatalErrorChannel, depending on the outcome.
func (b *Base) ProcessItem() {
	for {
		select {
		case sig := <-b.KillChannel:
			b.doSigTermCleanup(sig)
		case task := <-b.ProcessChannel:
			b.processItem(task)
		}
	}
}

func (b *Base) processItem(task *Task) {
	b.Context.Logger.Infof("Item %s is in ProcessChannel", task.Identifier)
	task.WorkResult.Errors = task.Processor.Run()

	if task.WorkResult.HasFatalErrors() {
		b.FatalErrorChannel <- task
	} else if task.WorkResult.HasErrors() {
		b.ErrorChannel <- task
	} else {
		b.SuccessChannel <- task
	}
}

// ProcessSuccessChannel finishes tasks that completed without errors.
// The interim state in Redis is deleted so we don't leave orphan
// records behind.
func (b *Base) ProcessSuccessChannel() {
	for task := range b.SuccessChannel {
		b.Context.Logger.Infof("Item %s is in success channel", task.Identifier)
		b.DeleteWorkResult(task.Identifier)
		task.NSQFinish()
		b.RemoveFromInProcessList(task.Identifier)
	}
}

// ProcessErrorChannel requeues tasks that failed with transient
// errors, unless they're out of attempts.
func (b *Base) ProcessErrorChannel() {
	for task := range b.ErrorChannel {
		b.Context.Logger.Warningf("Item %s is in error channel", task.Identifier)
		b.Context.Logger.Warningf("Non-fatal errors for %s: %s",
			task.Identifier, task.WorkResult.NonFatalErrorMessage())
		b.SaveWorkResult(task.Identifier, task.WorkResult)
		if task.WorkResult.Attempt >= b.Settings.MaxAttempts {
			b.Context.Logger.Errorf("Giving up on %s after %d attempts",
				task.Identifier, task.WorkResult.Attempt)
			task.NSQFinish()
		} else {
			task.NSQRequeue(b.Settings.RequeueTimeout)
		}
		b.RemoveFromInProcessList(task.Identifier)
	}
}

// ProcessFatalErrorChannel finishes tasks that failed with errors no
// retry can fix. The WorkResult stays in Redis so an admin can see
// what went wrong.
func (b *Base) ProcessFatalErrorChannel() {
	for task := range b.FatalErrorChannel {
		b.Context.Logger.Errorf("Item %s is in fatal error channel", task.Identifier)
		b.Context.Logger.Errorf("Fatal errors for %s: %s",
			task.Identifier, task.WorkResult.FatalErrorMessage())
		b.SaveWorkResult(task.Identifier, task.WorkResult)
		task.NSQFinish()
		b.RemoveFromInProcessList(task.Identifier)
	}
}

// GetWorkResult returns a WorkResult object for this identifier. If one
// already exists in Redis, it returns that. If not, it creates a new one.
func (b *Base) GetWorkResult(identifier string) *service.WorkResult {
	workResult, err := b.Context.RedisClient.WorkResultGet(identifier, b.Settings.NSQTopic)
	if err != nil {
		b.Context.Logger.Infof("No WorkResult in Redis for %s. No problem. Creating a new one.", identifier)
		workResult = service.NewWorkResult(b.Settings.NSQTopic)
	}
	return workResult
}

// SaveWorkResult saves a WorkResult to Redis and logs an error if any
// occurs. Will try three times, in case Redis is busy.
func (b *Base) SaveWorkResult(identifier string, result *service.WorkResult) error {
	var err error
	for i := 0; i < 3; i++ {
		err = b.Context.RedisClient.WorkResultSave(identifier, result)
		if err == nil {
			break
		}
		time.Sleep(time.Duration(250) * time.Millisecond)
	}
	if err != nil {
		b.Context.Logger.Errorf("Error saving WorkResult for %s: %v", identifier, err)
	}
	return err
}

// DeleteWorkResult removes the interim state for identifier from Redis.
func (b *Base) DeleteWorkResult(identifier string) {
	err := b.Context.RedisClient.WorkResultDelete(identifier, b.Settings.NSQTopic)
	if err != nil {
		b.Context.Logger.Warningf("Could not delete WorkResult for %s: %v", identifier, err)
	}
}

// AddToInProcessList adds identifier to this worker's ItemsInProcess list.
func (b *Base) AddToInProcessList(identifier string) {
	b.ItemsInProcess.Add(identifier)
}

// RemoveFromInProcessList removes identifier from this worker's
// ItemsInProcess list.
func (b *Base) RemoveFromInProcessList(identifier string) {
	b.ItemsInProcess.Del(identifier)
}

// MarkAsStarted records in Redis that work on this item has started,
// and tells NSQ we're on it. NSQStart disables NSQ autoresponse and
// pings NSQ every few minutes to say we're still working on the item.
func (b *Base) MarkAsStarted(task *Task) {
	task.WorkResult.Reset()
	task.WorkResult.Attempt++
	task.WorkResult.Start()
	task.WorkResult.Host, _ = os.Hostname()
	task.WorkResult.Pid = os.Getpid()
	b.SaveWorkResult(task.Identifier, task.WorkResult)
	task.NSQStart()
}

// doSigTermCleanup handles SIGTERM and SIGINT. Container schedulers
// issue SIGTERM before SIGKILL, so we have a little time to clean up.
//
// Stopping the consumer tells nsqd immediately that this worker is no
// longer active, so it requeues our in-flight messages for other
// workers instead of waiting hours for them to time out. The interim
// WorkResults are already in Redis, so whoever picks the items up can
// resume where we stopped.
func (b *Base) doSigTermCleanup(sig os.Signal) {
	if sig != syscall.SIGINT && sig != syscall.SIGTERM {
		return
	}
	b.Context.Logger.Warning("Worker received SIGTERM. Starting graceful shutdown.")
	if b.NSQConsumer != nil {
		b.NSQConsumer.ChangeMaxInFlight(0)
		b.NSQConsumer.Stop()
		b.Context.Logger.Warning("Worker disconnected from nsqd due to SIGTERM.")
	}
	for _, identifier := range b.ItemsInProcess.Items() {
		b.Context.Logger.Warningf("Item %s was in process at shutdown. Its interim state is in Redis.", identifier)
	}
	b.Context.Logger.Warning("SIGTERM: Graceful shutdown steps complete. Waiting for SIGKILL.")
}
