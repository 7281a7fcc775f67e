package workers_test

import (
	"testing"
	"time"

	"github.com/esperoj/esperoj/models/service"
	"github.com/esperoj/esperoj/network"
	"github.com/esperoj/esperoj/testutil"
	"github.com/esperoj/esperoj/workers"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunnable struct {
	errors []*service.ProcessingError
}

func (r *stubRunnable) Run() []*service.ProcessingError {
	return r.errors
}

func getTestWorker(fc *testutil.FakeContext, runErrors []*service.ProcessingError) *workers.Base {
	// Redis points at a port nothing listens on. The worker treats
	// that as "no interim state" and carries on.
	fc.Context.RedisClient = network.NewRedisClient("127.0.0.1:1", "", 0)
	settings := &workers.Settings{
		ChannelBufferSize: 10,
		MaxAttempts:       3,
		NSQChannel:        "test_topic_worker_chan",
		NSQTopic:          "test_topic",
		NumberOfWorkers:   1,
		RequeueTimeout:    (1 * time.Second),
	}
	base := workers.NewBase(fc.Context, settings)
	base.GetTaskObject = func(message *nsq.Message, identifier string, workResult *service.WorkResult) (*workers.Task, error) {
		return &workers.Task{
			Identifier: identifier,
			NSQMessage: message,
			Processor:  &stubRunnable{runErrors},
			WorkResult: workResult,
		}, nil
	}
	return &base
}

func newNSQMessage(body string) *nsq.Message {
	return nsq.NewMessage(nsq.MessageID{}, []byte(body))
}

func waitForTask(t *testing.T, channel chan *workers.Task) *workers.Task {
	select {
	case task := <-channel:
		return task
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task")
	}
	return nil
}

func TestBaseHandleMessage(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	base := getTestWorker(fc, nil)

	err := base.HandleMessage(newNSQMessage("photos/img_0001.jpg"))
	require.Nil(t, err)
	assert.Equal(t, 1, len(base.ProcessChannel))
	assert.True(t, base.ItemsInProcess.Contains("photos/img_0001.jpg"))

	task := waitForTask(t, base.ProcessChannel)
	assert.Equal(t, "photos/img_0001.jpg", task.Identifier)
	assert.Equal(t, 1, task.WorkResult.Attempt)
	assert.True(t, task.WorkResult.Started())
	assert.True(t, task.StartCalled())
}

func TestBaseDedupesItemsInProcess(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	base := getTestWorker(fc, nil)

	require.Nil(t, base.HandleMessage(newNSQMessage("docs/report.pdf")))
	require.Nil(t, base.HandleMessage(newNSQMessage("docs/report.pdf")))

	// The second message for the same file must not produce a second
	// task. NSQ doesn't dedupe, so the worker has to.
	assert.Equal(t, 1, len(base.ProcessChannel))
}

func TestBaseDiscardsEmptyMessage(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	base := getTestWorker(fc, nil)

	require.Nil(t, base.HandleMessage(newNSQMessage("   ")))
	assert.Equal(t, 0, len(base.ProcessChannel))
}

func TestBaseRoutesSuccess(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	base := getTestWorker(fc, nil)
	go base.ProcessItem()

	require.Nil(t, base.HandleMessage(newNSQMessage("docs/report.pdf")))
	task := waitForTask(t, base.SuccessChannel)
	assert.False(t, task.WorkResult.HasErrors())
	assert.Equal(t, 0, len(base.ErrorChannel))
	assert.Equal(t, 0, len(base.FatalErrorChannel))
}

func TestBaseRoutesErrors(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	transient := []*service.ProcessingError{
		service.NewProcessingError("docs/report.pdf", "connection reset", false),
	}
	base := getTestWorker(fc, transient)
	go base.ProcessItem()

	require.Nil(t, base.HandleMessage(newNSQMessage("docs/report.pdf")))
	task := waitForTask(t, base.ErrorChannel)
	assert.True(t, task.WorkResult.HasErrors())
	assert.False(t, task.WorkResult.HasFatalErrors())
}

func TestBaseRoutesFatalErrors(t *testing.T) {
	fc := testutil.NewFakeContext()
	defer fc.Close()
	fatal := []*service.ProcessingError{
		service.NewProcessingError("docs/report.pdf", "digest mismatch", true),
	}
	base := getTestWorker(fc, fatal)
	go base.ProcessItem()

	require.Nil(t, base.HandleMessage(newNSQMessage("docs/report.pdf")))
	task := waitForTask(t, base.FatalErrorChannel)
	assert.True(t, task.WorkResult.HasFatalErrors())
}
