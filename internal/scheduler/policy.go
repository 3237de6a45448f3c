package scheduler

import (
	"sort"
	"strings"
)

const (
	defaultCoreSessions    = 3
	defaultRegularSessions = 2
)

// Policy maps a subject to the number of sessions a group needs per week.
type Policy interface {
	SessionsPerWeek(subjectID string) int
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(subjectID string) int

// SessionsPerWeek implements Policy.
func (f PolicyFunc) SessionsPerWeek(subjectID string) int {
	return f(subjectID)
}

// DefaultCoreSubjects lists the subjects that get the higher weekly count by default.
func DefaultCoreSubjects() []string {
	return []string{"math", "physics", "chemistry", "history", "literature", "english"}
}

// CoreSubjectPolicy gives core subjects CoreSessions per week and everything else DefaultSessions.
type CoreSubjectPolicy struct {
	core            map[string]struct{}
	coreSessions    int
	defaultSessions int
}

// NewCoreSubjectPolicy builds a policy over the given core set. Non-positive
// counts fall back to 3 (core) and 2 (other).
func NewCoreSubjectPolicy(core []string, coreSessions, defaultSessions int) *CoreSubjectPolicy {
	if coreSessions <= 0 {
		coreSessions = defaultCoreSessions
	}
	if defaultSessions <= 0 {
		defaultSessions = defaultRegularSessions
	}
	set := make(map[string]struct{}, len(core))
	for _, id := range core {
		id = strings.TrimSpace(id)
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return &CoreSubjectPolicy{core: set, coreSessions: coreSessions, defaultSessions: defaultSessions}
}

// DefaultPolicy returns the 3-for-core, 2-for-the-rest policy over DefaultCoreSubjects.
func DefaultPolicy() *CoreSubjectPolicy {
	return NewCoreSubjectPolicy(DefaultCoreSubjects(), defaultCoreSessions, defaultRegularSessions)
}

// SessionsPerWeek implements Policy.
func (p *CoreSubjectPolicy) SessionsPerWeek(subjectID string) int {
	if _, ok := p.core[subjectID]; ok {
		return p.coreSessions
	}
	return p.defaultSessions
}

// IsCore reports whether the subject belongs to the core set.
func (p *CoreSubjectPolicy) IsCore(subjectID string) bool {
	_, ok := p.core[subjectID]
	return ok
}

// Core returns the core subject ids in sorted order.
func (p *CoreSubjectPolicy) Core() []string {
	out := make([]string, 0, len(p.core))
	for id := range p.core {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Counts returns the weekly session counts for core and other subjects.
func (p *CoreSubjectPolicy) Counts() (core, other int) {
	return p.coreSessions, p.defaultSessions
}
