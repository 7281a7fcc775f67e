package constants_test

import (
	"testing"

	"github.com/esperoj/esperoj/constants"
	"github.com/esperoj/esperoj/util"
	"github.com/stretchr/testify/assert"
)

func TestDigestAlgorithms(t *testing.T) {
	assert.Equal(t, 3, len(constants.DigestAlgorithms))
	assert.True(t, util.StringListContains(constants.DigestAlgorithms, constants.DefaultAlgorithm))
}

func TestStatuses(t *testing.T) {
	assert.Equal(t, 5, len(constants.Statuses))
	for _, status := range constants.TerminalStatuses {
		assert.True(t, util.StringListContains(constants.Statuses, status))
	}
	assert.False(t, util.StringListContains(constants.TerminalStatuses, constants.StatusVerified))
}
