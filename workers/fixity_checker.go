package workers

import (
	"fmt"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/fixity"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/models/service"
	"github.com/nsqio/go-nsq"
)

// FixityChecker is a worker that reads TrackedFile identifiers from
// the fixity topic and verifies each file's archived copies.
type FixityChecker struct {
	Base
}

// NewFixityChecker creates a new FixityChecker worker. It connects to
// NSQ and starts processing as soon as it's created.
func NewFixityChecker(bufSize, numWorkers, maxAttempts int) *FixityChecker {
	settings := &Settings{
		ChannelBufferSize: bufSize,
		MaxAttempts:       maxAttempts,
		NSQChannel:        constants.TopicFixity + "_worker_chan",
		NSQTopic:          constants.TopicFixity,
		NumberOfWorkers:   numWorkers,
		RequeueTimeout:    (20 * time.Second),
	}
	checker := &FixityChecker{
		Base: NewBase(common.NewContext(), settings),
	}
	checker.Base.GetTaskObject = checker.GetTaskObject

	checker.Context.Logger.Info("Fixity worker started with the following settings:")
	checker.Context.Logger.Info(settings.ToJSON())
	checker.Context.Logger.Info("Config settings (omitting sensitive credentials):")
	checker.Context.Logger.Info(checker.Context.Config.ToJSON())

	for i := 0; i < settings.NumberOfWorkers; i++ {
		checker.Context.Logger.Infof("Starting worker #%d", i+1)
		go checker.ProcessItem()
	}
	go checker.ProcessErrorChannel()
	go checker.ProcessFatalErrorChannel()
	go checker.ProcessSuccessChannel()

	err := checker.RegisterAsNsqConsumer()
	if err != nil {
		panic(fmt.Sprintf("Cannot register NSQ consumer: %v", err))
	}

	return checker
}

func (c *FixityChecker) GetTaskObject(message *nsq.Message, identifier string, workResult *service.WorkResult) (*Task, error) {
	task := &Task{
		Identifier: identifier,
		NSQMessage: message,
		Processor:  &checkerRunnable{fixity.NewChecker(c.Context, identifier)},
		WorkResult: workResult,
	}
	return task, nil
}

type checkerRunnable struct {
	checker *fixity.Checker
}

func (r *checkerRunnable) Run() []*service.ProcessingError {
	_, errors := r.checker.Run()
	return errors
}
