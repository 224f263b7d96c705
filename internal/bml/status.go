// Package bml implements the Build-Measure-Learn kanban state machine.
//
// Workflow position is encoded entirely in issue labels: exactly one
// status-* label per issue, with an orthogonal priority-* axis that this
// package recognizes but never drives. The validator in this package is
// advisory-only — it annotates transitions, it never blocks them.
package bml

import "strings"

// Status is a BML kanban lane.
type Status string

const (
	StatusBacklog  Status = "backlog"
	StatusPlan     Status = "plan"
	StatusBuild    Status = "build"
	StatusMeasure  Status = "measure"
	StatusLearn    Status = "learn"
	StatusBlocked  Status = "blocked"
	StatusArchived Status = "archived"
)

// Label prefixes for the two label axes.
const (
	StatusPrefix   = "status-"
	PriorityPrefix = "priority-"
)

// SyncedLabel marks wrapper issues created by the sync engine.
const SyncedLabel = "synced"

// AllStatuses lists every status in BML progression order, with the
// off-lane states (blocked, archived) last.
var AllStatuses = []Status{
	StatusBacklog,
	StatusPlan,
	StatusBuild,
	StatusMeasure,
	StatusLearn,
	StatusBlocked,
	StatusArchived,
}

// validStatuses is the set of allowed status values.
var validStatuses = map[Status]bool{
	StatusBacklog:  true,
	StatusPlan:     true,
	StatusBuild:    true,
	StatusMeasure:  true,
	StatusLearn:    true,
	StatusBlocked:  true,
	StatusArchived: true,
}

// IsValid reports whether s is one of the seven BML statuses.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// Label returns the status label string, e.g. "status-build".
func (s Status) Label() string {
	return StatusPrefix + string(s)
}

// IsTerminal reports whether the status is terminal. Archived issues are
// expected to stay closed; blocked is not terminal and may transition to
// any other state.
func (s Status) IsTerminal() bool {
	return s == StatusArchived
}

// Next returns the following lane in the BML progression
// (backlog → plan → build → measure → learn). Learn, blocked, and
// archived have no automatic successor.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusBacklog:
		return StatusPlan, true
	case StatusPlan:
		return StatusBuild, true
	case StatusBuild:
		return StatusMeasure, true
	case StatusMeasure:
		return StatusLearn, true
	}
	return "", false
}

// ParseStatusLabel extracts the status from a "status-*" label.
// Returns false for non-status labels and unknown status values.
func ParseStatusLabel(label string) (Status, bool) {
	if !strings.HasPrefix(label, StatusPrefix) {
		return "", false
	}
	s := Status(strings.TrimPrefix(label, StatusPrefix))
	if !s.IsValid() {
		return "", false
	}
	return s, true
}

// IsStatusLabel reports whether the label is on the status axis.
// Unknown status-* values still count: the sync path mirrors the whole
// prefix, not just the seven known lanes.
func IsStatusLabel(label string) bool {
	return strings.HasPrefix(label, StatusPrefix)
}

// IsPriorityLabel reports whether the label is on the priority axis.
func IsPriorityLabel(label string) bool {
	return strings.HasPrefix(label, PriorityPrefix)
}

// StatusLabels returns the subset of labels on the status axis,
// preserving order.
func StatusLabels(labels []string) []string {
	var out []string
	for _, l := range labels {
		if IsStatusLabel(l) {
			out = append(out, l)
		}
	}
	return out
}

// StatusFromLabels returns the first valid status label found, or
// StatusBacklog when none is present (an unlabeled issue sits in the
// backlog lane).
func StatusFromLabels(labels []string) Status {
	for _, l := range labels {
		if s, ok := ParseStatusLabel(l); ok {
			return s
		}
	}
	return StatusBacklog
}

// LabelDef describes a label to bootstrap into a repository.
type LabelDef struct {
	Name        string `yaml:"name"`
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
}

// statusColors maps each lane to its bootstrap label color.
var statusColors = map[Status]string{
	StatusBacklog:  "0366d6",
	StatusPlan:     "0e8a16",
	StatusBuild:    "fbca04",
	StatusMeasure:  "d73a49",
	StatusLearn:    "6f42c1",
	StatusBlocked:  "e99695",
	StatusArchived: "586069",
}

// DefaultLabelDefs returns the built-in label set: the seven status
// labels, the three coarse priority labels, and the synced marker.
func DefaultLabelDefs() []LabelDef {
	defs := make([]LabelDef, 0, len(AllStatuses)+4)
	for _, s := range AllStatuses {
		defs = append(defs, LabelDef{
			Name:        s.Label(),
			Color:       statusColors[s],
			Description: "BML status: " + string(s),
		})
	}
	for _, p := range []string{"high", "medium", "low"} {
		defs = append(defs, LabelDef{
			Name:        PriorityPrefix + p,
			Color:       "1f77b4",
			Description: "Priority: " + p,
		})
	}
	defs = append(defs, LabelDef{
		Name:        SyncedLabel,
		Color:       "bfdadc",
		Description: "Mirrored into the meta repository",
	})
	return defs
}
