package bml

import "strings"

// Snapshot is the immutable input to Validate. Callers capture the
// issue's labels and comment history once, before any writes, so the
// validation result cannot drift from the state it was computed against.
type Snapshot struct {
	// Current is the label set on the issue before the transition.
	Current []string
	// Incoming is the label set being applied by the transition.
	Incoming []string
	// Comments is the issue's comment history, newest last.
	Comments []string
}

// AdvisoryKind classifies an advisory message.
type AdvisoryKind string

const (
	// AdvisoryInvalidTransition flags a lane jump that skips planning.
	AdvisoryInvalidTransition AdvisoryKind = "invalid-transition"
	// AdvisoryChecklist carries a lane-entry checklist.
	AdvisoryChecklist AdvisoryKind = "checklist"
	// AdvisoryBlockedExplanation requests an explanation for a blocked issue.
	AdvisoryBlockedExplanation AdvisoryKind = "blocked-explanation"
)

// Advisory is a non-blocking message emitted for a workflow transition.
// Advisories are posted as comments; the label change itself always
// proceeds — status labels stay mutable by humans, the validator only
// educates.
type Advisory struct {
	Kind   AdvisoryKind
	Status Status // the status that triggered the advisory
	Body   string
}

// blockedTokens are the comment substrings that count as a blocked
// explanation.
var blockedTokens = []string{"blocked", "dependency", "waiting"}

const invalidTransitionBody = "⚠️ Invalid workflow transition: moving to `build` without a `plan` phase. " +
	"BML expects backlog → plan → build → measure → learn. " +
	"The label change stands, but consider adding `status-plan` first and capturing a plan."

const measureChecklistBody = "📏 Entering `measure`. Checklist:\n" +
	"- [ ] Run the tests\n" +
	"- [ ] Validate the build against the plan\n" +
	"- [ ] Document what was built\n" +
	"- [ ] Prepare findings for the learn phase"

const learnChecklistBody = "🎓 Entering `learn`. Checklist:\n" +
	"- [ ] Capture learnings in a comment\n" +
	"- [ ] Note follow-up work as new issues\n" +
	"- [ ] Apply the `learning-captured` tag when done (manual)"

const blockedExplanationBody = "🚧 This issue is `blocked` but no comment explains why. " +
	"Please add a comment mentioning what it is blocked on, the dependency, or what it is waiting for."

// Validate applies the BML transition rules to a snapshot and returns
// the advisories to emit. Pure: no side effects, no I/O. An empty
// result means the transition needs no annotation.
func Validate(snap Snapshot) []Advisory {
	current := toSet(snap.Current)
	incoming := toSet(snap.Incoming)

	var advisories []Advisory

	// Entering build without plan among the current labels.
	if entering(current, incoming, StatusBuild) && !current[StatusPlan.Label()] {
		advisories = append(advisories, Advisory{
			Kind:   AdvisoryInvalidTransition,
			Status: StatusBuild,
			Body:   invalidTransitionBody,
		})
	}

	if entering(current, incoming, StatusMeasure) {
		advisories = append(advisories, Advisory{
			Kind:   AdvisoryChecklist,
			Status: StatusMeasure,
			Body:   measureChecklistBody,
		})
	}

	if entering(current, incoming, StatusLearn) {
		advisories = append(advisories, Advisory{
			Kind:   AdvisoryChecklist,
			Status: StatusLearn,
			Body:   learnChecklistBody,
		})
	}

	// Blocked with no explanatory comment. Re-evaluated on every event,
	// so this advisory may re-fire until a qualifying comment exists.
	if (current[StatusBlocked.Label()] || incoming[StatusBlocked.Label()]) && !hasBlockedExplanation(snap.Comments) {
		advisories = append(advisories, Advisory{
			Kind:   AdvisoryBlockedExplanation,
			Status: StatusBlocked,
			Body:   blockedExplanationBody,
		})
	}

	return advisories
}

// entering reports whether the incoming set adds the given status that
// the current set lacks.
func entering(current, incoming map[string]bool, s Status) bool {
	return incoming[s.Label()] && !current[s.Label()]
}

// hasBlockedExplanation scans the comment history for any of the
// explanation tokens, case-insensitively.
func hasBlockedExplanation(comments []string) bool {
	for _, c := range comments {
		// The advisory itself mentions the tokens; it never counts as
		// an explanation.
		if c == blockedExplanationBody {
			continue
		}
		lower := strings.ToLower(c)
		for _, tok := range blockedTokens {
			if strings.Contains(lower, tok) {
				return true
			}
		}
	}
	return false
}

func toSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}
