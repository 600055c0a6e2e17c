package domain

import (
	"testing"
	"time"
)

func TestAdvanceStepStopsAtFirstUnsatisfiedStage(t *testing.T) {
	s := NewEnrollmentSession("s1", "u1", time.Now())

	if done := s.AdvanceStep(); done {
		t.Fatal("empty session reached complete")
	}
	if s.CurrentStep != StepCollectingIdentity {
		t.Errorf("step = %q, want %q", s.CurrentStep, StepCollectingIdentity)
	}

	s.Collected.Name = "Jane"
	if s.AdvanceStep() {
		t.Fatal("reached complete with partial identity")
	}
	if s.CurrentStep != StepCollectingIdentity {
		t.Errorf("step = %q, want to stay at identity until email arrives", s.CurrentStep)
	}

	s.Collected.Email = "jane@x.com"
	if s.AdvanceStep() {
		t.Fatal("reached complete without context fields")
	}
	if s.CurrentStep != StepCollectingContext {
		t.Errorf("step = %q, want %q", s.CurrentStep, StepCollectingContext)
	}
}

func TestAdvanceStepCompletesThroughConfirming(t *testing.T) {
	s := NewEnrollmentSession("s1", "u1", time.Now())
	s.Collected = CollectedData{
		Name: "Jane", Email: "jane@x.com",
		Company: "Acme", JobTitle: "developer",
		ProgramType: "Premium",
	}

	if !s.AdvanceStep() {
		t.Fatal("fully collected session did not reach complete")
	}
	if s.CurrentStep != StepComplete {
		t.Errorf("step = %q, want %q", s.CurrentStep, StepComplete)
	}

	// a second call must not report completion again
	if s.AdvanceStep() {
		t.Error("terminal session reported completion twice")
	}
}

func TestAdvanceStepEarlyProgramTypeDoesNotSkipStages(t *testing.T) {
	s := NewEnrollmentSession("s1", "u1", time.Now())
	s.Collected.ProgramType = "Premium"

	if s.AdvanceStep() {
		t.Fatal("program type alone completed the session")
	}
	if s.CurrentStep != StepCollectingIdentity {
		t.Errorf("step = %q, want %q", s.CurrentStep, StepCollectingIdentity)
	}
}

func TestMergeNeverClearsFields(t *testing.T) {
	d := CollectedData{Name: "Jane", Email: "jane@x.com"}

	changed := d.Merge(FieldUpdates{Company: "Acme"})
	if !changed {
		t.Error("merge with new field reported no change")
	}
	if d.Name != "Jane" || d.Email != "jane@x.com" || d.Company != "Acme" {
		t.Errorf("merged = %+v", d)
	}

	if d.Merge(FieldUpdates{}) {
		t.Error("empty merge reported a change")
	}
	if d.Name != "Jane" {
		t.Errorf("empty merge cleared name: %+v", d)
	}
}

func TestMergeLaterValueOverwrites(t *testing.T) {
	d := CollectedData{Email: "old@x.com"}

	if !d.Merge(FieldUpdates{Email: "new@x.com"}) {
		t.Error("overwrite reported no change")
	}
	if d.Email != "new@x.com" {
		t.Errorf("email = %q, want the later value", d.Email)
	}
}

func TestSnapshotOmitsEmptyFields(t *testing.T) {
	d := CollectedData{Name: "Jane", ProgramType: "Premium"}

	snap := d.Snapshot()
	if len(snap) != 2 {
		t.Errorf("snapshot = %v, want two entries", snap)
	}
	if snap["name"] != "Jane" || snap["program_type"] != "Premium" {
		t.Errorf("snapshot = %v", snap)
	}
	if _, ok := snap["email"]; ok {
		t.Error("snapshot includes empty email")
	}
}

func TestMissingAfterOrder(t *testing.T) {
	s := NewEnrollmentSession("s1", "u1", time.Now())

	want := []string{"name", "email", "company", "job_title", "program_type"}
	setters := []func(){
		func() { s.Collected.Name = "Jane" },
		func() { s.Collected.Email = "jane@x.com" },
		func() { s.Collected.Company = "Acme" },
		func() { s.Collected.JobTitle = "developer" },
		func() { s.Collected.ProgramType = "Premium" },
	}
	for i, field := range want {
		if got := s.MissingAfter(); got != field {
			t.Fatalf("missing[%d] = %q, want %q", i, got, field)
		}
		setters[i]()
	}
	if got := s.MissingAfter(); got != "" {
		t.Errorf("missing after all fields = %q, want empty", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	status, known := NormalizeStatus("Solved")
	if status != TicketStatusSolved || !known {
		t.Errorf("NormalizeStatus(Solved) = %q/%v", status, known)
	}
	status, known = NormalizeStatus("Escalated")
	if string(status) != "escalated" || known {
		t.Errorf("NormalizeStatus(Escalated) = %q/%v, want lower-cased passthrough", status, known)
	}
}

func TestNormalizePriority(t *testing.T) {
	priority, known := NormalizePriority("URGENT")
	if priority != TicketPriorityUrgent || !known {
		t.Errorf("NormalizePriority(URGENT) = %q/%v", priority, known)
	}
	priority, known = NormalizePriority("whenever")
	if string(priority) != "whenever" || known {
		t.Errorf("NormalizePriority(whenever) = %q/%v", priority, known)
	}
}
