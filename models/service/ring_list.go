package service

import (
	"sync"
)

// RingList is a circular list of strings with a set capacity.
// Workers use it to track the identifiers they are currently
// processing, because NSQ does not dedupe messages, so the worker
// must. This structure uses mutexes for adding and searching, so it
// is safe to share across goroutines.
type RingList struct {
	capacity int
	index    int
	items    []string
	mutex    *sync.RWMutex
}

// NewRingList creates a new RingList with the specified capacity.
func NewRingList(capacity int) *RingList {
	return &RingList{
		capacity: capacity,
		index:    0,
		items:    make([]string, capacity),
		mutex:    &sync.RWMutex{},
	}
}

// Add adds an item to the RingList. If capacity is ten, then
// the eleventh item you add overwrites item #1.
func (list *RingList) Add(item string) {
	list.mutex.Lock()
	list.index += 1
	if list.index == list.capacity {
		list.index = 0
	}
	list.items[list.index] = item
	list.mutex.Unlock()
}

// Contains returns true if the item is in the RingList.
func (list *RingList) Contains(item string) bool {
	exists := false
	list.mutex.RLock()
	for _, value := range list.items {
		if value == item {
			exists = true
			break
		}
	}
	list.mutex.RUnlock()
	return exists
}

// Items returns a copy of the non-empty items in the list.
func (list *RingList) Items() []string {
	itemsCopy := make([]string, 0)
	list.mutex.RLock()
	for _, value := range list.items {
		if value != "" {
			itemsCopy = append(itemsCopy, value)
		}
	}
	list.mutex.RUnlock()
	return itemsCopy
}

// Del deletes all instances of the item from the list,
// replacing those instances with an empty string.
func (list *RingList) Del(item string) {
	if item == "" {
		return
	}
	list.mutex.Lock()
	for i, value := range list.items {
		if value == item {
			list.items[i] = ""
		}
	}
	list.mutex.Unlock()
}
