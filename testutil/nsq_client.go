package testutil

import (
	"fmt"
	"sync"
)

// FakeNSQClient records what would have been queued, so tests can
// assert on topics and identifiers without a running nsqd.
type FakeNSQClient struct {
	mutex sync.Mutex

	// Enqueued maps topic name to the identifiers posted to it,
	// in order.
	Enqueued map[string][]string

	// FailNext makes the next Enqueue call return an error.
	FailNext bool
}

func NewFakeNSQClient() *FakeNSQClient {
	return &FakeNSQClient{Enqueued: make(map[string][]string)}
}

func (client *FakeNSQClient) Enqueue(topic, identifier string) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.FailNext {
		client.FailNext = false
		return fmt.Errorf("nsqd returned status code 500 when attempting to queue data")
	}
	client.Enqueued[topic] = append(client.Enqueued[topic], identifier)
	return nil
}
