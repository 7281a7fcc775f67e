package service_test

import (
	"fmt"
	"testing"

	"github.com/esperoj/esperoj/models/service"
	"github.com/stretchr/testify/assert"
)

func TestRingList(t *testing.T) {
	list := service.NewRingList(4)
	for i := 0; i < 4; i++ {
		list.Add(fmt.Sprintf("file-%d.flac", i))
	}
	for i := 0; i < 4; i++ {
		assert.True(t, list.Contains(fmt.Sprintf("file-%d.flac", i)))
	}

	// Adding past capacity overwrites the oldest entries.
	list.Add("file-4.flac")
	list.Add("file-5.flac")
	assert.True(t, list.Contains("file-5.flac"))
	assert.False(t, list.Contains("file-0.flac"))
}

func TestRingListDel(t *testing.T) {
	list := service.NewRingList(4)
	list.Add("one")
	list.Add("two")
	list.Del("one")
	assert.False(t, list.Contains("one"))
	assert.True(t, list.Contains("two"))

	// Empty string is a no-op, not a panic.
	list.Del("")
}
