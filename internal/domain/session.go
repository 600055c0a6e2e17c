package domain

import "time"

// Step enumerates the enrollment workflow stages, in order.
type Step string

const (
	StepGreeting             Step = "greeting"
	StepCollectingIdentity   Step = "collecting_identity"
	StepCollectingContext    Step = "collecting_context"
	StepCollectingPreference Step = "collecting_preference"
	StepConfirming           Step = "confirming"
	StepComplete             Step = "complete"
)

var stepOrder = []Step{
	StepGreeting,
	StepCollectingIdentity,
	StepCollectingContext,
	StepCollectingPreference,
	StepConfirming,
	StepComplete,
}

// TurnRole identifies the author of a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one message in the conversation. Turns are append-only.
type Turn struct {
	Role       TurnRole  `json:"role"`
	Content    string    `json:"content"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CollectedData is the closed record of enrollment fields. Any subset may be
// present; empty string means not yet collected.
type CollectedData struct {
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Company        string `json:"company,omitempty"`
	JobTitle       string `json:"job_title,omitempty"`
	ProgramType    string `json:"program_type,omitempty"`
	ReferralSource string `json:"referral_source,omitempty"`
}

// FieldUpdates carries values proposed by the extractor for a single turn.
// Empty fields are "no proposal" and never clear collected values.
type FieldUpdates struct {
	Name           string
	Email          string
	Company        string
	JobTitle       string
	ProgramType    string
	ReferralSource string
}

// IsZero reports whether no field was proposed.
func (u FieldUpdates) IsZero() bool {
	return u == FieldUpdates{}
}

// Merge applies non-empty proposals onto the record. A later proposal for an
// already-set field overwrites it; absent proposals leave fields untouched.
func (d *CollectedData) Merge(u FieldUpdates) bool {
	changed := false
	apply := func(dst *string, val string) {
		if val != "" && val != *dst {
			*dst = val
			changed = true
		}
	}
	apply(&d.Name, u.Name)
	apply(&d.Email, u.Email)
	apply(&d.Company, u.Company)
	apply(&d.JobTitle, u.JobTitle)
	apply(&d.ProgramType, u.ProgramType)
	apply(&d.ReferralSource, u.ReferralSource)
	return changed
}

// Snapshot returns the collected fields as a map, omitting empty values.
// Used for the ticket's member_details at completion time.
func (d CollectedData) Snapshot() map[string]string {
	snap := make(map[string]string)
	put := func(key, val string) {
		if val != "" {
			snap[key] = val
		}
	}
	put("name", d.Name)
	put("email", d.Email)
	put("company", d.Company)
	put("job_title", d.JobTitle)
	put("program_type", d.ProgramType)
	put("referral_source", d.ReferralSource)
	return snap
}

// stageSatisfied reports whether the required fields of the given stage are
// all present. Stages without required fields are always satisfied.
func (d CollectedData) stageSatisfied(step Step) bool {
	switch step {
	case StepCollectingIdentity:
		return d.Name != "" && d.Email != ""
	case StepCollectingContext:
		return d.Company != "" && d.JobTitle != ""
	case StepCollectingPreference:
		return d.ProgramType != ""
	default:
		return true
	}
}

// EnrollmentSession is the aggregate for one enrollment conversation.
type EnrollmentSession struct {
	SessionID   string        `json:"session_id"`
	UserID      string        `json:"user_id"`
	Turns       []Turn        `json:"turns"`
	Collected   CollectedData `json:"collected_data"`
	CurrentStep Step          `json:"current_step"`
	IsComplete  bool          `json:"is_complete"`
	TicketID    string        `json:"ticket_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewEnrollmentSession starts a session at the greeting stage.
func NewEnrollmentSession(sessionID, userID string, now time.Time) *EnrollmentSession {
	return &EnrollmentSession{
		SessionID:   sessionID,
		UserID:      userID,
		CurrentStep: StepGreeting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AppendTurn records a conversation turn and advances updated_at.
func (s *EnrollmentSession) AppendTurn(role TurnRole, content string, at time.Time) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, OccurredAt: at})
	s.UpdatedAt = at
}

// AdvanceStep moves the stage forward while each stage's required fields are
// satisfied. The stage never regresses and never skips an unsatisfied stage,
// so out-of-order field values are accepted without premature completion.
// Returns true when the session reached the terminal stage on this call.
func (s *EnrollmentSession) AdvanceStep() bool {
	idx := stepIndex(s.CurrentStep)
	for idx < len(stepOrder)-1 && s.Collected.stageSatisfied(stepOrder[idx]) {
		idx++
	}
	reached := stepOrder[idx] == StepComplete && s.CurrentStep != StepComplete
	s.CurrentStep = stepOrder[idx]
	return reached
}

// MissingAfter returns the first uncollected required field at or after the
// current stage, used to script the next assistant prompt.
func (s *EnrollmentSession) MissingAfter() string {
	d := s.Collected
	switch {
	case d.Name == "":
		return "name"
	case d.Email == "":
		return "email"
	case d.Company == "":
		return "company"
	case d.JobTitle == "":
		return "job_title"
	case d.ProgramType == "":
		return "program_type"
	default:
		return ""
	}
}

func stepIndex(step Step) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return 0
}
