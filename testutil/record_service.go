package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/esperoj/esperoj/models/registry"
)

// FakeRecordService is an in-memory implementation of the records
// service REST API, served over httptest. Point a real RecordClient
// at FakeRecordService.URL() and the whole pipeline runs without a
// network.
type FakeRecordService struct {
	mutex  sync.Mutex
	nextID int64
	files  map[int64]*registry.TrackedFile
	events []*registry.FixityEvent
	server *httptest.Server

	// FailNextSave makes the next files/create or files/update call
	// return 500, then clears itself. Tests use this to simulate a
	// record-write failure after a successful upload.
	FailNextSave bool
}

func NewFakeRecordService() *FakeRecordService {
	svc := &FakeRecordService{
		nextID: 0,
		files:  make(map[int64]*registry.TrackedFile),
		events: make([]*registry.FixityEvent, 0),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/records-api/v1/files/show/", svc.handleFileShow)
	mux.HandleFunc("/records-api/v1/files/create", svc.handleFileCreate)
	mux.HandleFunc("/records-api/v1/files/update/", svc.handleFileUpdate)
	mux.HandleFunc("/records-api/v1/files/delete/", svc.handleFileDelete)
	mux.HandleFunc("/records-api/v1/files", svc.handleFileList)
	mux.HandleFunc("/records-api/v1/events/create", svc.handleEventCreate)
	mux.HandleFunc("/records-api/v1/events", svc.handleEventList)
	svc.server = httptest.NewServer(mux)
	return svc
}

func (svc *FakeRecordService) URL() string {
	return svc.server.URL
}

func (svc *FakeRecordService) Close() {
	svc.server.Close()
}

// FileCount returns the number of tracked file rows.
func (svc *FakeRecordService) FileCount() int {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	return len(svc.files)
}

// EventCount returns the number of fixity events recorded.
func (svc *FakeRecordService) EventCount() int {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	return len(svc.events)
}

// AddFile seeds a tracked file row directly, assigning an ID if the
// row has none.
func (svc *FakeRecordService) AddFile(tf *registry.TrackedFile) *registry.TrackedFile {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	if tf.ID == 0 {
		svc.nextID++
		tf.ID = svc.nextID
	} else if tf.ID > svc.nextID {
		svc.nextID = tf.ID
	}
	tf.UpdatedAt = time.Now().UTC()
	svc.files[tf.ID] = tf
	return tf
}

// FileByIdentifier returns the stored row with the given identifier,
// or nil.
func (svc *FakeRecordService) FileByIdentifier(identifier string) *registry.TrackedFile {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	for _, tf := range svc.files {
		if tf.Identifier == identifier {
			return tf
		}
	}
	return nil
}

// LastEvent returns the most recently created fixity event, or nil.
func (svc *FakeRecordService) LastEvent() *registry.FixityEvent {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	if len(svc.events) == 0 {
		return nil
	}
	return svc.events[len(svc.events)-1]
}

func (svc *FakeRecordService) handleFileShow(w http.ResponseWriter, r *http.Request) {
	arg := strings.TrimPrefix(r.URL.Path, "/records-api/v1/files/show/")
	arg, _ = url.PathUnescape(arg)
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if tf, ok := svc.files[id]; ok {
			writeJSON(w, http.StatusOK, tf)
			return
		}
	}
	for _, tf := range svc.files {
		if tf.Identifier == arg {
			writeJSON(w, http.StatusOK, tf)
			return
		}
	}
	http.Error(w, fmt.Sprintf("no tracked file %q", arg), http.StatusNotFound)
}

func (svc *FakeRecordService) handleFileCreate(w http.ResponseWriter, r *http.Request) {
	if svc.takeFailure() {
		http.Error(w, "simulated backend failure", http.StatusInternalServerError)
		return
	}
	body, _ := io.ReadAll(r.Body)
	tf, err := registry.TrackedFileFromJSON(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if existing := svc.FileByIdentifier(tf.Identifier); existing != nil {
		http.Error(w, fmt.Sprintf("identifier %q already exists", tf.Identifier), http.StatusConflict)
		return
	}
	svc.mutex.Lock()
	svc.nextID++
	tf.ID = svc.nextID
	tf.CreatedAt = time.Now().UTC()
	tf.UpdatedAt = tf.CreatedAt
	svc.files[tf.ID] = tf
	svc.mutex.Unlock()
	writeJSON(w, http.StatusCreated, tf)
}

func (svc *FakeRecordService) handleFileUpdate(w http.ResponseWriter, r *http.Request) {
	if svc.takeFailure() {
		http.Error(w, "simulated backend failure", http.StatusInternalServerError)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/records-api/v1/files/update/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	body, _ := io.ReadAll(r.Body)
	tf, err := registry.TrackedFileFromJSON(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	if _, ok := svc.files[id]; !ok {
		http.Error(w, "no such row", http.StatusNotFound)
		return
	}
	tf.ID = id
	tf.UpdatedAt = time.Now().UTC()
	svc.files[id] = tf
	writeJSON(w, http.StatusOK, tf)
}

func (svc *FakeRecordService) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/records-api/v1/files/delete/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	if _, ok := svc.files[id]; !ok {
		http.Error(w, "no such row", http.StatusNotFound)
		return
	}
	delete(svc.files, id)
	w.WriteHeader(http.StatusNoContent)
}

func (svc *FakeRecordService) handleFileList(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	results := make([]*registry.TrackedFile, 0)
	for _, tf := range svc.files {
		if status := params.Get("status"); status != "" && tf.Status != status {
			continue
		}
		if identifier := params.Get("identifier"); identifier != "" && tf.Identifier != identifier {
			continue
		}
		if lteq := params.Get("last_verified__lteq"); lteq != "" {
			cutoff, err := time.Parse(time.RFC3339, lteq)
			if err == nil && tf.LastVerified.After(cutoff) {
				continue
			}
		}
		results = append(results, tf)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(results),
		"next":     nil,
		"previous": nil,
		"results":  results,
	})
}

func (svc *FakeRecordService) handleEventCreate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	event, err := registry.FixityEventFromJSON(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	svc.mutex.Lock()
	event.ID = int64(len(svc.events) + 1)
	event.CreatedAt = time.Now().UTC()
	svc.events = append(svc.events, event)
	svc.mutex.Unlock()
	writeJSON(w, http.StatusCreated, event)
}

func (svc *FakeRecordService) handleEventList(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	results := make([]*registry.FixityEvent, 0)
	for _, event := range svc.events {
		if fi := params.Get("file_identifier"); fi != "" && event.FileIdentifier != fi {
			continue
		}
		if outcome := params.Get("outcome"); outcome != "" && event.Outcome != outcome {
			continue
		}
		results = append(results, event)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(results),
		"next":     nil,
		"previous": nil,
		"results":  results,
	})
}

func (svc *FakeRecordService) takeFailure() bool {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	if svc.FailNextSave {
		svc.FailNextSave = false
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
