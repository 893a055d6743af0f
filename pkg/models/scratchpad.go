package models

import (
	"fmt"
	"strings"
	"time"
)

// ScopeKind says whether a scratchpad entry belongs to a project or to
// the whole workspace.
type ScopeKind string

const (
	ScopeProject ScopeKind = "project"
	ScopeGlobal  ScopeKind = "global"
)

// ScratchpadScope locates an entry.
type ScratchpadScope struct {
	Kind      ScopeKind `yaml:"kind" json:"kind"`
	ProjectID string    `yaml:"project_id,omitempty" json:"project_id,omitempty"`
}

// GlobalScope is the workspace-wide scope.
func GlobalScope() ScratchpadScope { return ScratchpadScope{Kind: ScopeGlobal} }

// ProjectScope scopes an entry to one project.
func ProjectScope(projectID string) ScratchpadScope {
	return ScratchpadScope{Kind: ScopeProject, ProjectID: projectID}
}

// Validate rejects unknown kinds and project scopes without a project.
func (s ScratchpadScope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		if s.ProjectID != "" {
			return fmt.Errorf("%w: global scope must not name a project", ErrInvalidScratchpadEntry)
		}
	case ScopeProject:
		if s.ProjectID == "" {
			return fmt.Errorf("%w: project scope requires a project id", ErrInvalidScratchpadEntry)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidScratchpadEntry, s.Kind)
	}
	return nil
}

// String renders "global" or "project:<id>".
func (s ScratchpadScope) String() string {
	if s.Kind == ScopeProject {
		return "project:" + s.ProjectID
	}
	return string(s.Kind)
}

// ParseScratchpadScope accepts "global", "project:<id>", or "project" with
// a separate project id.
func ParseScratchpadScope(scope, projectID string) (ScratchpadScope, error) {
	kind, id, hasID := strings.Cut(scope, ":")
	if hasID {
		projectID = id
	}
	s := ScratchpadScope{Kind: ScopeKind(kind), ProjectID: projectID}
	if s.Kind == "" {
		s.Kind = ScopeGlobal
	}
	if err := s.Validate(); err != nil {
		return ScratchpadScope{}, err
	}
	return s, nil
}

// ScratchpadKind classifies what the agent wrote down.
type ScratchpadKind string

const (
	KindObservation       ScratchpadKind = "observation"
	KindPendingAction     ScratchpadKind = "pendingAction"
	KindLearnedPreference ScratchpadKind = "learnedPreference"
)

// Valid reports whether k is a known kind.
func (k ScratchpadKind) Valid() bool {
	switch k {
	case KindObservation, KindPendingAction, KindLearnedPreference:
		return true
	}
	return false
}

// ScratchpadEntry is agent-written memory. Entries are only ever appended
// and soft-consumed.
type ScratchpadEntry struct {
	ID         string          `yaml:"id" json:"id"`
	Scope      ScratchpadScope `yaml:"scope" json:"scope"`
	Kind       ScratchpadKind  `yaml:"kind" json:"kind"`
	Content    string          `yaml:"content" json:"content"`
	CreatedAt  time.Time       `yaml:"created_at" json:"created_at"`
	ConsumedAt *time.Time      `yaml:"consumed_at,omitempty" json:"consumed_at,omitempty"`
}

// Consumed reports whether the entry has been marked consumed.
func (e ScratchpadEntry) Consumed() bool { return e.ConsumedAt != nil }

// ValidateScratchpadWrite checks the arguments of a write.
func ValidateScratchpadWrite(scope ScratchpadScope, kind ScratchpadKind, content string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidScratchpadEntry, kind)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content must not be empty", ErrInvalidScratchpadEntry)
	}
	return nil
}

// ScratchpadQuery selects entries for Read. A nil Scope matches every scope;
// an empty Kind matches every kind.
type ScratchpadQuery struct {
	Scope           *ScratchpadScope
	Kind            ScratchpadKind
	IncludeConsumed bool
}

// Matches applies the query to a single entry.
func (q ScratchpadQuery) Matches(e ScratchpadEntry) bool {
	if q.Scope != nil && e.Scope != *q.Scope {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	if !q.IncludeConsumed && e.Consumed() {
		return false
	}
	return true
}
