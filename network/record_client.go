package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/esperoj/esperoj/models/registry"
	"github.com/esperoj/esperoj/util"
	"github.com/op/go-logging"
)

// RecordService defines the row-level CRUD operations we perform
// against the records service: the spreadsheet-style backend that is
// the system of record for tracked files. Formally defined so tests
// can run the pipeline against a fake backend.
type RecordService interface {
	TrackedFileByIdentifier(identifier string) *RecordResponse
	TrackedFileByID(id int64) *RecordResponse
	TrackedFileList(params url.Values) *RecordResponse
	TrackedFileSave(tf *registry.TrackedFile) *RecordResponse
	TrackedFileDelete(id int64) *RecordResponse
	FixityEventSave(event *registry.FixityEvent) *RecordResponse
	FixityEventList(params url.Values) *RecordResponse
}

// RecordClient talks HTTP/JSON to the records service. It supports the
// TrackedFile table and the FixityEvent log, nothing else.
type RecordClient struct {
	HostURL    string
	APIVersion string
	APIUser    string
	APIKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRecordClient creates a new records service client. Param hostURL
// should come from the config's RECORDS_URL setting.
func NewRecordClient(hostURL, apiVersion, apiUser, apiKey string, logger *logging.Logger) (*RecordClient, error) {
	if !util.TestsAreRunning() && (apiUser == "" || apiKey == "") {
		panic("Env vars RECORDS_API_USER and RECORDS_API_KEY cannot be empty.")
	}
	httpClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: false,
			ForceAttemptHTTP2: true,
		},
	}
	return &RecordClient{
		HostURL:    hostURL,
		APIVersion: apiVersion,
		APIUser:    apiUser,
		APIKey:     apiKey,
		logger:     logger,
		httpClient: httpClient,
	}, nil
}

// TrackedFileByIdentifier returns the tracked file with the specified
// identifier, if it exists.
func (client *RecordClient) TrackedFileByIdentifier(identifier string) *RecordResponse {
	relativeURL := fmt.Sprintf("/records-api/%s/files/show/%s", client.APIVersion, EscapeFileIdentifier(identifier))
	return client.trackedFileGet(relativeURL)
}

// TrackedFileByID returns the tracked file with the specified row id,
// if it exists.
func (client *RecordClient) TrackedFileByID(id int64) *RecordResponse {
	relativeURL := fmt.Sprintf("/records-api/%s/files/show/%d", client.APIVersion, id)
	return client.trackedFileGet(relativeURL)
}

func (client *RecordClient) trackedFileGet(relativeURL string) *RecordResponse {
	resp := NewRecordResponse(RecordTrackedFile)
	resp.trackedFiles = make([]*registry.TrackedFile, 1)

	absoluteURL := client.BuildURL(relativeURL)
	client.DoRequest(resp, http.MethodGet, absoluteURL, nil)
	if resp.Error != nil {
		return resp
	}

	trackedFile := &registry.TrackedFile{}
	resp.Error = json.Unmarshal(resp.data, trackedFile)
	if resp.Error == nil {
		resp.trackedFiles[0] = trackedFile
	}
	return resp
}

// TrackedFileList returns a list of tracked files matching the filter
// criteria specified in params. Params include:
//
// identifier
// status
// storage_provider
// last_verified__lteq
// last_verified__gteq
// sort
// page
// per_page
func (client *RecordClient) TrackedFileList(params url.Values) *RecordResponse {
	resp := NewRecordResponse(RecordTrackedFile)
	resp.trackedFiles = make([]*registry.TrackedFile, 0)

	relativeURL := fmt.Sprintf("/records-api/%s/files?%s", client.APIVersion, encodeParams(params))
	absoluteURL := client.BuildURL(relativeURL)
	client.DoRequest(resp, http.MethodGet, absoluteURL, nil)
	if resp.Error != nil {
		return resp
	}
	resp.UnmarshalJSONList()
	return resp
}

// TrackedFileSave saves a tracked file to the records service. If the
// file has an ID of zero, this performs a POST to create a new row.
// If the ID is non-zero, this updates the existing row with a PUT.
// The response will contain a fresh copy of the TrackedFile if it was
// successfully saved.
func (client *RecordClient) TrackedFileSave(tf *registry.TrackedFile) *RecordResponse {
	resp := NewRecordResponse(RecordTrackedFile)
	resp.trackedFiles = make([]*registry.TrackedFile, 1)

	relativeURL := fmt.Sprintf("/records-api/%s/files/create", client.APIVersion)
	httpMethod := http.MethodPost
	if tf.ID > 0 {
		relativeURL = fmt.Sprintf("/records-api/%s/files/update/%d", client.APIVersion, tf.ID)
		httpMethod = http.MethodPut
	}
	absoluteURL := client.BuildURL(relativeURL)

	postData, err := tf.ToJSON()
	if err != nil {
		resp.Error = err
		return resp
	}
	client.DoRequest(resp, httpMethod, absoluteURL, bytes.NewBuffer(postData))
	if resp.Error != nil {
		return resp
	}

	savedFile := &registry.TrackedFile{}
	resp.Error = json.Unmarshal(resp.data, savedFile)
	if resp.Error == nil {
		resp.trackedFiles[0] = savedFile
	}
	return resp
}

// TrackedFileDelete deletes the tracked file row with the specified id.
// This does not touch the object in storage; deletion of archived
// bytes is a deliberate, separate operation.
func (client *RecordClient) TrackedFileDelete(id int64) *RecordResponse {
	resp := NewRecordResponse(RecordTrackedFile)
	relativeURL := fmt.Sprintf("/records-api/%s/files/delete/%d", client.APIVersion, id)
	absoluteURL := client.BuildURL(relativeURL)
	client.DoRequest(resp, http.MethodDelete, absoluteURL, nil)
	return resp
}

// FixityEventSave creates a new fixity event. Events are append-only;
// there is no update.
func (client *RecordClient) FixityEventSave(event *registry.FixityEvent) *RecordResponse {
	resp := NewRecordResponse(RecordFixityEvent)
	resp.fixityEvents = make([]*registry.FixityEvent, 1)

	relativeURL := fmt.Sprintf("/records-api/%s/events/create", client.APIVersion)
	absoluteURL := client.BuildURL(relativeURL)

	postData, err := event.ToJSON()
	if err != nil {
		resp.Error = err
		return resp
	}
	client.DoRequest(resp, http.MethodPost, absoluteURL, bytes.NewBuffer(postData))
	if resp.Error != nil {
		return resp
	}

	savedEvent := &registry.FixityEvent{}
	resp.Error = json.Unmarshal(resp.data, savedEvent)
	if resp.Error == nil {
		resp.fixityEvents[0] = savedEvent
	}
	return resp
}

// FixityEventList returns fixity events matching the filter criteria
// specified in params. Params include:
//
// file_identifier
// event_type
// outcome
// datetime__lteq
// datetime__gteq
// sort
func (client *RecordClient) FixityEventList(params url.Values) *RecordResponse {
	resp := NewRecordResponse(RecordFixityEvent)
	resp.fixityEvents = make([]*registry.FixityEvent, 0)

	relativeURL := fmt.Sprintf("/records-api/%s/events?%s", client.APIVersion, encodeParams(params))
	absoluteURL := client.BuildURL(relativeURL)
	client.DoRequest(resp, http.MethodGet, absoluteURL, nil)
	if resp.Error != nil {
		return resp
	}
	resp.UnmarshalJSONList()
	return resp
}

func (client *RecordClient) BuildURL(relativeURL string) string {
	return client.HostURL + relativeURL
}

// NewJSONRequest returns a new request with headers indicating JSON
// request and response formats.
//
// Param requestData will be nil for GET requests, and can be
// constructed from bytes.NewBuffer([]byte) for POST and PUT.
func (client *RecordClient) NewJSONRequest(method, absoluteURL string, requestData io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, absoluteURL, requestData)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("X-Records-API-User", client.APIUser)
	req.Header.Add("X-Records-API-Key", client.APIKey)
	req.Header.Add("Connection", "Keep-Alive")

	// Unfix the URL that golang net/url "fixes" for us. URLs that
	// contain %2F (encoded slashes) MUST preserve the %2F. The Go URL
	// library silently converts those to slashes, and we DON'T want
	// that.
	incorrectURL, err := url.Parse(absoluteURL)
	if err != nil {
		return nil, err
	}
	opaqueURL := strings.Replace(absoluteURL, client.HostURL, "", 1)

	// File identifiers can include spaces.
	opaqueURL = strings.Replace(opaqueURL, " ", "%20", -1)

	correctURL := &url.URL{
		Scheme: incorrectURL.Scheme,
		Host:   incorrectURL.Host,
		Opaque: opaqueURL,
	}
	req.URL = correctURL
	return req, nil
}

// DoRequest issues an HTTP request, reads the response, and closes the
// connection to the remote server. If an error occurs, it will be
// recorded in resp.Error.
func (client *RecordClient) DoRequest(resp *RecordResponse, method, absoluteURL string, requestData io.Reader) {
	request, err := client.NewJSONRequest(method, absoluteURL, requestData)
	resp.Request = request
	if err != nil {
		resp.Error = fmt.Errorf("%s %s: %s", method, absoluteURL, err.Error())
		return
	}

	reqTime := time.Now()
	resp.Response, resp.Error = client.httpClient.Do(request)
	if client.logger != nil {
		client.logger.Infof("%s %s completed in %s", method, absoluteURL, time.Since(reqTime))
	}
	if resp.Error != nil {
		resp.Error = fmt.Errorf("%s %s: %s", method, absoluteURL, resp.Error.Error())
		return
	}

	// Read the response data and close the response body. That's the
	// only way to close the remote HTTP connection, which will
	// otherwise stay open indefinitely, causing the system to
	// eventually have too many open files.
	resp.readResponse()

	if resp.Error == nil && resp.Response.StatusCode >= 400 {
		body, _ := resp.RawResponseData()
		resp.Error = fmt.Errorf("server returned status code %d. "+
			"%s %s - Body: %s",
			resp.Response.StatusCode, method, absoluteURL, string(body))
	}
}

// EscapeFileIdentifier escapes a file identifier for use in a URL
// path, preserving %20 over + for spaces.
func EscapeFileIdentifier(identifier string) string {
	encoded := url.QueryEscape(identifier)
	return strings.Replace(encoded, "+", "%20", -1)
}

func encodeParams(params url.Values) string {
	if params == nil {
		return ""
	}
	return params.Encode()
}
