package workers_test

import (
	"testing"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/workers"
	"github.com/stretchr/testify/assert"
)

func TestToJSON(t *testing.T) {
	settings := &workers.Settings{
		ChannelBufferSize: 20,
		MaxAttempts:       3,
		NSQChannel:        constants.TopicFixity + "_worker_chan",
		NSQTopic:          constants.TopicFixity,
		NumberOfWorkers:   2,
		RequeueTimeout:    (1 * time.Minute),
	}
	assert.Equal(t, expectedJSON, settings.ToJSON())
}

var expectedJSON = `{"ChannelBufferSize":20,"MaxAttempts":3,"NSQChannel":"fixity_topic_worker_chan","NSQTopic":"fixity_topic","NumberOfWorkers":2,"RequeueTimeout":60000000000}`
