// Package booking implements the customer booking flow: a draft built step by
// step, validated at each step boundary and converted into a booking on submit.
package booking

// Step is the draft's position in the booking flow.
type Step string

const (
	StepStaff     Step = "staff"
	StepTime      Step = "time"
	StepRoom      Step = "room"
	StepContact   Step = "contact"
	StepConfirm   Step = "confirm"
	StepSubmitted Step = "submitted"
)

// ParseStep maps a path value to an input step. Confirm and submitted take no input.
func ParseStep(s string) (Step, bool) {
	switch st := Step(s); st {
	case StepStaff, StepTime, StepRoom, StepContact:
		return st, true
	}
	return "", false
}

// FSM manages step transitions for the booking flow.
type FSM struct {
	transitions map[Step][]Step
}

// NewFSM creates a new FSM with predefined transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Step][]Step{
			StepStaff:     {StepTime},
			StepTime:      {StepRoom, StepStaff},
			StepRoom:      {StepContact, StepTime},
			StepContact:   {StepConfirm, StepRoom},
			StepConfirm:   {StepSubmitted, StepContact},
			StepSubmitted: {},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the forward step after from.
func (f *FSM) Next(from Step) (Step, bool) {
	next := f.transitions[from]
	if len(next) == 0 {
		return "", false
	}
	return next[0], true
}

// Prev returns the step reached by going back from from.
func (f *FSM) Prev(from Step) (Step, bool) {
	next := f.transitions[from]
	if len(next) < 2 {
		return "", false
	}
	return next[1], true
}
