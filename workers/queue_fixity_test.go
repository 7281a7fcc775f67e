package workers

import (
	"testing"
	"time"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/models/registry"
	"github.com/stretchr/testify/assert"
)

func TestCurrentShard(t *testing.T) {
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.EqualValues(t, 0, currentShard(first))

	fifteenth := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.EqualValues(t, 14, currentShard(fifteenth))

	// Day 29 wraps around to the start of the cycle.
	twentyNinth := time.Date(2024, 3, 29, 10, 0, 0, 0, time.UTC)
	assert.EqualValues(t, 0, currentShard(twentyNinth))
}

func TestInShard(t *testing.T) {
	matches := 0
	for id := int64(1); id <= int64(constants.VerificationShards); id++ {
		tf := &registry.TrackedFile{ID: id}
		if inShard(tf, 3) {
			matches++
			assert.EqualValues(t, 3, id%constants.VerificationShards)
		}
	}
	// Exactly one id in every run of 28 lands in a given shard.
	assert.Equal(t, 1, matches)
}
