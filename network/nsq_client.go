package network

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// NSQClient provides write access to the queue, so the fixity queuer
// and the CLI can add items. It does not provide read access. The
// workers do the reading through go-nsq consumers.
type NSQClient struct {
	URL string
}

// NSQClientInterface is the write side of the queue as the rest of the
// system sees it. The Context holds one of these, so tests can swap in
// a fake that records what was enqueued.
type NSQClientInterface interface {
	Enqueue(topic, identifier string) error
}

// NewNSQClient returns a new NSQ client that will connect to the nsqd
// at the specified url. The URL is typically available through
// Config.NsqURL, and usually ends with :4151. This is the URL to which
// we post items we want to queue, and from which our workers read.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{URL: url}
}

// Enqueue posts an identifier to the specified NSQ topic. For the
// archive topic, the identifier is a local file path. For the fixity
// topic, it's a TrackedFile identifier.
func (client *NSQClient) Enqueue(topic, identifier string) error {
	url := fmt.Sprintf("%s/pub?topic=%s", client.URL, topic)
	resp, err := http.Post(url, "text/html", bytes.NewBuffer([]byte(identifier)))
	if err != nil {
		return fmt.Errorf("nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("no response from nsqd at '%s'. Is it running?", url)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}
