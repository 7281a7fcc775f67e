package workers

import (
	"fmt"
	"time"

	"github.com/esperoj/esperoj/archival"
	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/common"
	"github.com/esperoj/esperoj/models/service"
	"github.com/nsqio/go-nsq"
)

// Archiver is a worker that reads local file paths from the archive
// topic and copies each file into the archival buckets.
type Archiver struct {
	Base
}

// NewArchiver creates a new Archiver worker. It connects to NSQ and
// starts processing as soon as it's created.
func NewArchiver(bufSize, numWorkers, maxAttempts int) *Archiver {
	settings := &Settings{
		ChannelBufferSize: bufSize,
		MaxAttempts:       maxAttempts,
		NSQChannel:        constants.TopicArchive + "_worker_chan",
		NSQTopic:          constants.TopicArchive,
		NumberOfWorkers:   numWorkers,
		RequeueTimeout:    (1 * time.Minute),
	}
	archiver := &Archiver{
		Base: NewBase(common.NewContext(), settings),
	}
	archiver.Base.GetTaskObject = archiver.GetTaskObject

	archiver.Context.Logger.Info("Archive worker started with the following settings:")
	archiver.Context.Logger.Info(settings.ToJSON())
	archiver.Context.Logger.Info("Config settings (omitting sensitive credentials):")
	archiver.Context.Logger.Info(archiver.Context.Config.ToJSON())

	for i := 0; i < settings.NumberOfWorkers; i++ {
		archiver.Context.Logger.Infof("Starting worker #%d", i+1)
		go archiver.ProcessItem()
	}
	go archiver.ProcessErrorChannel()
	go archiver.ProcessFatalErrorChannel()
	go archiver.ProcessSuccessChannel()

	err := archiver.RegisterAsNsqConsumer()
	if err != nil {
		panic(fmt.Sprintf("Cannot register NSQ consumer: %v", err))
	}

	return archiver
}

func (a *Archiver) GetTaskObject(message *nsq.Message, localPath string, workResult *service.WorkResult) (*Task, error) {
	task := &Task{
		Identifier: localPath,
		NSQMessage: message,
		Processor:  &archiveRunnable{archival.NewArchiver(a.Context, localPath)},
		WorkResult: workResult,
	}
	return task, nil
}

type archiveRunnable struct {
	archiver *archival.Archiver
}

func (r *archiveRunnable) Run() []*service.ProcessingError {
	_, errors := r.archiver.Run()
	return errors
}
