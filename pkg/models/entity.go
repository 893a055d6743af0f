package models

import (
	"fmt"
	"strings"
	"time"
)

// WorkspaceSchemaVersion is the only workspace layout the engine accepts.
const WorkspaceSchemaVersion = 1

// EntityKind identifies which workspace collection an entity belongs to.
type EntityKind string

const (
	KindProject EntityKind = "project"
	KindNote    EntityKind = "note"
	KindTask    EntityKind = "task"
	KindBlocker EntityKind = "blocker"
	KindCall    EntityKind = "call"
)

// Valid reports whether k is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindProject, KindNote, KindTask, KindBlocker, KindCall:
		return true
	}
	return false
}

// EntityKey identifies a single entity across all kinds.
type EntityKey struct {
	Kind EntityKind `yaml:"kind" json:"kind"`
	ID   string     `yaml:"id" json:"id"`
}

// String renders the key as kind#id, e.g. note#1.
func (k EntityKey) String() string {
	return string(k.Kind) + "#" + k.ID
}

// Less orders keys by kind, then id.
func (k EntityKey) Less(other EntityKey) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	return k.ID < other.ID
}

// ParseEntityKey parses the kind#id form produced by EntityKey.String.
func ParseEntityKey(s string) (EntityKey, error) {
	kind, id, ok := strings.Cut(s, "#")
	if !ok || id == "" {
		return EntityKey{}, fmt.Errorf("entity key %q must have the form kind#id", s)
	}
	key := EntityKey{Kind: EntityKind(kind), ID: id}
	if !key.Kind.Valid() {
		return EntityKey{}, fmt.Errorf("entity key %q has unknown kind %q", s, kind)
	}
	return key, nil
}

// EntityRef is the read-only view of any workspace record.
type EntityRef struct {
	Kind      EntityKind `json:"kind"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
	ProjectID string     `json:"project_id,omitempty"`
}

// Key returns the entity's key.
func (r EntityRef) Key() EntityKey {
	return EntityKey{Kind: r.Kind, ID: r.ID}
}

// LastActivity is UpdatedAt, falling back to CreatedAt for records that
// were never edited.
func (r EntityRef) LastActivity() time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

// Project is a top-level container of work.
type Project struct {
	ID        string    `yaml:"id" json:"id"`
	Title     string    `yaml:"title" json:"title"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Ref returns the read-only view of the project.
func (p Project) Ref() EntityRef {
	return EntityRef{Kind: KindProject, ID: p.ID, Title: p.Title, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

// Note is a free-form document, optionally attached to a project.
type Note struct {
	ID         string      `yaml:"id" json:"id"`
	Title      string      `yaml:"title" json:"title"`
	ProjectID  string      `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	Tags       []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	References []EntityKey `yaml:"references,omitempty" json:"references,omitempty"`
	CreatedAt  time.Time   `yaml:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Ref returns the read-only view of the note.
func (n Note) Ref() EntityRef {
	return EntityRef{Kind: KindNote, ID: n.ID, Title: n.Title, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt, ProjectID: n.ProjectID}
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is a unit of work.
type Task struct {
	ID        string     `yaml:"id" json:"id"`
	Title     string     `yaml:"title" json:"title"`
	ProjectID string     `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	Status    TaskStatus `yaml:"status,omitempty" json:"status,omitempty"`
	CreatedAt time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time  `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Ref returns the read-only view of the task.
func (t Task) Ref() EntityRef {
	return EntityRef{Kind: KindTask, ID: t.ID, Title: t.Title, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt, ProjectID: t.ProjectID}
}

// Blocker is an impediment that prevents one or more tasks from progressing.
type Blocker struct {
	ID             string    `yaml:"id" json:"id"`
	Title          string    `yaml:"title" json:"title"`
	ProjectID      string    `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	BlockedTaskIDs []string  `yaml:"blocked_task_ids,omitempty" json:"blocked_task_ids,omitempty"`
	Resolved       bool      `yaml:"resolved,omitempty" json:"resolved,omitempty"`
	CreatedAt      time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt      time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Ref returns the read-only view of the blocker.
func (b Blocker) Ref() EntityRef {
	return EntityRef{Kind: KindBlocker, ID: b.ID, Title: b.Title, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt, ProjectID: b.ProjectID}
}

// Call is a recorded meeting.
type Call struct {
	ID         string      `yaml:"id" json:"id"`
	Title      string      `yaml:"title" json:"title"`
	ProjectID  string      `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	References []EntityKey `yaml:"references,omitempty" json:"references,omitempty"`
	CreatedAt  time.Time   `yaml:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Ref returns the read-only view of the call.
func (c Call) Ref() EntityRef {
	return EntityRef{Kind: KindCall, ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt, ProjectID: c.ProjectID}
}

// Workspace is one user's pre-fetched entity collections.
type Workspace struct {
	SchemaVersion int       `yaml:"schema_version" json:"schema_version"`
	Projects      []Project `yaml:"projects,omitempty" json:"projects,omitempty"`
	Notes         []Note    `yaml:"notes,omitempty" json:"notes,omitempty"`
	Tasks         []Task    `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	Blockers      []Blocker `yaml:"blockers,omitempty" json:"blockers,omitempty"`
	Calls         []Call    `yaml:"calls,omitempty" json:"calls,omitempty"`
}

// Refs returns the read-only view of every entity in collection order:
// projects, notes, tasks, blockers, calls.
func (w *Workspace) Refs() []EntityRef {
	refs := make([]EntityRef, 0, len(w.Projects)+len(w.Notes)+len(w.Tasks)+len(w.Blockers)+len(w.Calls))
	for _, p := range w.Projects {
		refs = append(refs, p.Ref())
	}
	for _, n := range w.Notes {
		refs = append(refs, n.Ref())
	}
	for _, t := range w.Tasks {
		refs = append(refs, t.Ref())
	}
	for _, b := range w.Blockers {
		refs = append(refs, b.Ref())
	}
	for _, c := range w.Calls {
		refs = append(refs, c.Ref())
	}
	return refs
}

// Validate checks structural presence only: ids, titles, timestamps and
// known reference kinds. Referential integrity is not checked.
func (w *Workspace) Validate() error {
	if w.SchemaVersion != WorkspaceSchemaVersion {
		return fmt.Errorf("workspace schema_version %d is not supported (want %d)", w.SchemaVersion, WorkspaceSchemaVersion)
	}

	var errs []string
	seen := make(map[EntityKey]bool)
	for _, ref := range w.Refs() {
		key := ref.Key()
		if ref.ID == "" {
			errs = append(errs, fmt.Sprintf("%s with title %q has no id", ref.Kind, ref.Title))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Sprintf("%s is defined more than once", key))
		}
		seen[key] = true
		if ref.CreatedAt.IsZero() {
			errs = append(errs, fmt.Sprintf("%s has no created_at", key))
		}
	}
	for _, n := range w.Notes {
		errs = append(errs, validateReferences(n.Ref().Key(), n.References)...)
	}
	for _, c := range w.Calls {
		errs = append(errs, validateReferences(c.Ref().Key(), c.References)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("workspace validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateReferences(owner EntityKey, refs []EntityKey) []string {
	var errs []string
	for _, r := range refs {
		if !r.Kind.Valid() || r.ID == "" {
			errs = append(errs, fmt.Sprintf("%s has malformed reference %q", owner, r.String()))
		}
	}
	return errs
}
