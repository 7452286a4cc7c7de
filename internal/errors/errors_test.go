package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := Wrap(Wrapf(ErrInvalidInput, "column %q", "PM2.5"), "bootstrap")
	assert.True(t, IsInvalidInput(err))
	assert.False(t, IsNumericalDegeneracy(err))
	assert.Contains(t, err.Error(), `column "PM2.5"`)
}

func TestHelpersRejectNil(t *testing.T) {
	assert.False(t, IsInvalidInput(nil))
	assert.False(t, IsNumericalDegeneracy(nil))
	assert.False(t, IsMissingJoinKey(nil))
	assert.False(t, IsStaleUpstream(nil))
}

func TestHintsAreRecoverable(t *testing.T) {
	err := WithHint(Wrap(ErrStaleUpstream, "load merged table"), "run `airstat merge` first")
	assert.True(t, IsStaleUpstream(err))
	assert.Equal(t, []string{"run `airstat merge` first"}, GetAllHints(err))
}

func TestFormattedConstructors(t *testing.T) {
	assert.True(t, IsInvalidInput(InvalidInputf("need %d rows", 2)))
	assert.True(t, IsNumericalDegeneracy(Degeneracyf("zero variance in %s", "CO")))
}
