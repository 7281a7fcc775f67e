package network

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/esperoj/esperoj/models/registry"
)

type RecordResponse struct {
	// Count is the total number of items matching the specified
	// filters. This is useful for List requests. Note that the number
	// of items returned in the response may be fewer than Count,
	// because the records service pages results.
	Count int

	// The URL of the next page of results.
	Next *string

	// The URL of the previous page of results.
	Previous *string

	// The HTTP request that was (or would have been) sent to the
	// records service. This is useful for logging and debugging.
	Request *http.Request

	// The HTTP response from the server. You can get the HTTP status
	// code, headers, etc. through this.
	//
	// Do not try to read Response.Body, since it's already been read
	// and the stream has been closed. Use the RawResponseData()
	// method instead.
	Response *http.Response

	// The error, if any, that occurred while processing this request.
	// Errors may come from the server (4xx or 5xx responses) or from
	// the client (e.g. if it could not parse the JSON response).
	Error error

	// The type of object(s) this response contains.
	objectType RecordObjectType

	// A slice of TrackedFile pointers. Will be nil if objectType is
	// not TrackedFile.
	trackedFiles []*registry.TrackedFile

	// A slice of FixityEvent pointers. Will be nil if objectType is
	// not FixityEvent.
	fixityEvents []*registry.FixityEvent

	// Indicates whether the HTTP response body has been read
	// (and closed).
	hasBeenRead bool

	listHasBeenParsed bool

	// The raw data contained in the body of the HTTP response.
	data []byte
}

type RecordObjectType string

const (
	RecordTrackedFile RecordObjectType = "TrackedFile"
	RecordFixityEvent RecordObjectType = "FixityEvent"
)

func NewRecordResponse(objType RecordObjectType) *RecordResponse {
	return &RecordResponse{
		Count:             0,
		Next:              nil,
		Previous:          nil,
		objectType:        objType,
		hasBeenRead:       false,
		listHasBeenParsed: false,
	}
}

// RawResponseData returns the raw body of the HTTP response as a byte
// slice. The return value may be nil.
func (resp *RecordResponse) RawResponseData() ([]byte, error) {
	if !resp.hasBeenRead {
		resp.readResponse()
	}
	return resp.data, resp.Error
}

// readResponse reads the body of an HTTP response object, closes the
// stream, and keeps the byte array. The body MUST be closed, or you'll
// wind up with a lot of open network connections.
func (resp *RecordResponse) readResponse() {
	if !resp.hasBeenRead && resp.Response != nil && resp.Response.Body != nil {
		resp.data, resp.Error = io.ReadAll(resp.Response.Body)
		resp.Response.Body.Close()
		resp.hasBeenRead = true
	}
}

// ObjectNotFound returns true if the records service replied with
// 404/Not Found. This is a common expected case (has this file been
// archived yet?), and we want to handle it specially.
func (resp *RecordResponse) ObjectNotFound() bool {
	return resp.Response != nil && resp.Response.StatusCode == http.StatusNotFound
}

// ObjectType returns the type of object(s) contained in this response.
func (resp *RecordResponse) ObjectType() RecordObjectType {
	return resp.objectType
}

// HasNextPage returns true if the response includes a link to the next
// page of results.
func (resp *RecordResponse) HasNextPage() bool {
	return resp.Next != nil && *resp.Next != ""
}

// ParamsForNextPage returns the URL parameters to request the next
// page of results, or nil if there is no next page.
func (resp *RecordResponse) ParamsForNextPage() url.Values {
	if resp.HasNextPage() {
		nextURL, _ := url.Parse(*resp.Next)
		if nextURL != nil {
			return nextURL.Query()
		}
	}
	return nil
}

// TrackedFile returns the TrackedFile parsed from the HTTP response
// body, or nil.
func (resp *RecordResponse) TrackedFile() *registry.TrackedFile {
	if len(resp.trackedFiles) > 0 {
		return resp.trackedFiles[0]
	}
	return nil
}

// TrackedFiles returns a list of TrackedFiles parsed from the HTTP
// response body.
func (resp *RecordResponse) TrackedFiles() []*registry.TrackedFile {
	if resp.trackedFiles == nil {
		return make([]*registry.TrackedFile, 0)
	}
	return resp.trackedFiles
}

// FixityEvent returns the FixityEvent parsed from the HTTP response
// body, or nil.
func (resp *RecordResponse) FixityEvent() *registry.FixityEvent {
	if len(resp.fixityEvents) > 0 {
		return resp.fixityEvents[0]
	}
	return nil
}

// FixityEvents returns a list of FixityEvents parsed from the HTTP
// response body.
func (resp *RecordResponse) FixityEvents() []*registry.FixityEvent {
	if resp.fixityEvents == nil {
		return make([]*registry.FixityEvent, 0)
	}
	return resp.fixityEvents
}

// UnmarshalJSONList converts the JSON response from the records
// service into a list of the appropriate model type.
func (resp *RecordResponse) UnmarshalJSONList() error {
	switch resp.objectType {
	case RecordTrackedFile:
		return resp.decodeAsTrackedFileList()
	case RecordFixityEvent:
		return resp.decodeAsFixityEventList()
	}
	return resp.Error
}

func (resp *RecordResponse) decodeAsTrackedFileList() error {
	if resp.listHasBeenParsed {
		return nil
	}
	temp := struct {
		Count    int                     `json:"count"`
		Next     *string                 `json:"next"`
		Previous *string                 `json:"previous"`
		Results  []*registry.TrackedFile `json:"results"`
	}{0, nil, nil, nil}
	data, err := resp.RawResponseData()
	if err != nil {
		resp.Error = err
		return err
	}
	resp.Error = json.Unmarshal(data, &temp)
	resp.Count = temp.Count
	resp.Next = temp.Next
	resp.Previous = temp.Previous
	resp.trackedFiles = temp.Results
	resp.listHasBeenParsed = true
	return resp.Error
}

func (resp *RecordResponse) decodeAsFixityEventList() error {
	if resp.listHasBeenParsed {
		return nil
	}
	temp := struct {
		Count    int                     `json:"count"`
		Next     *string                 `json:"next"`
		Previous *string                 `json:"previous"`
		Results  []*registry.FixityEvent `json:"results"`
	}{0, nil, nil, nil}
	data, err := resp.RawResponseData()
	if err != nil {
		resp.Error = err
		return err
	}
	resp.Error = json.Unmarshal(data, &temp)
	resp.Count = temp.Count
	resp.Next = temp.Next
	resp.Previous = temp.Previous
	resp.fixityEvents = temp.Results
	resp.listHasBeenParsed = true
	return resp.Error
}
