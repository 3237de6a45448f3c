package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicySessionsPerWeek(t *testing.T) {
	policy := DefaultPolicy()

	for _, id := range DefaultCoreSubjects() {
		assert.Equal(t, 3, policy.SessionsPerWeek(id), id)
		assert.True(t, policy.IsCore(id))
	}
	assert.Equal(t, 2, policy.SessionsPerWeek("pe"))
	assert.Equal(t, 2, policy.SessionsPerWeek("unknown"))
	assert.False(t, policy.IsCore("geometry"))
}

func TestNewCoreSubjectPolicyFallbacks(t *testing.T) {
	policy := NewCoreSubjectPolicy([]string{" art ", ""}, 0, -1)

	assert.Equal(t, 3, policy.SessionsPerWeek("art"))
	assert.Equal(t, 2, policy.SessionsPerWeek("math"))
	assert.False(t, policy.IsCore(""))
}

func TestNewCoreSubjectPolicyCustomCounts(t *testing.T) {
	policy := NewCoreSubjectPolicy([]string{"math"}, 4, 1)

	assert.Equal(t, 4, policy.SessionsPerWeek("math"))
	assert.Equal(t, 1, policy.SessionsPerWeek("pe"))
}

func TestDefaultCoreSubjectsReturnsCopy(t *testing.T) {
	first := DefaultCoreSubjects()
	first[0] = "changed"

	assert.Equal(t, "math", DefaultCoreSubjects()[0])
}

func TestParityFor(t *testing.T) {
	assert.Equal(t, ParityBoth, ParityFor(3, 0))
	assert.Equal(t, ParityBoth, ParityFor(5, 4))
	assert.Equal(t, ParityUpper, ParityFor(2, 0))
	assert.Equal(t, ParityLower, ParityFor(2, 1))
	assert.Equal(t, ParityUpper, ParityFor(1, 0))
}

func TestCoreSubjectPolicyDescribe(t *testing.T) {
	policy := NewCoreSubjectPolicy([]string{"physics", "math", "math"}, 4, 0)

	assert.Equal(t, []string{"math", "physics"}, policy.Core())
	core, other := policy.Counts()
	assert.Equal(t, 4, core)
	assert.Equal(t, 2, other)
}
