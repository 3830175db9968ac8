package models

import (
	"errors"
	"fmt"
)

// IncidentStatus enum - the incident lifecycle state
type IncidentStatus string

const (
	StatusNew          IncidentStatus = "new"
	StatusAcknowledged IncidentStatus = "acknowledged"
	StatusDispatched   IncidentStatus = "dispatched"
	StatusResolved     IncidentStatus = "resolved"
	StatusFalseAlarm   IncidentStatus = "false_alarm"
)

// ActionType enum - operator actions that drive the lifecycle
type ActionType string

const (
	ActionAcknowledge ActionType = "acknowledge"
	ActionDispatch    ActionType = "dispatch"
	ActionResolve     ActionType = "resolve"
	ActionFalseAlarm  ActionType = "false_alarm"
)

var (
	// ErrInvalidAction means the action type is not one of the four known actions.
	ErrInvalidAction = errors.New("invalid action type")

	// ErrTerminalStatus means the incident is resolved or false_alarm and
	// accepts no further actions.
	ErrTerminalStatus = errors.New("incident is in a terminal status")
)

// actionStatus maps each action to the status it produces.
var actionStatus = map[ActionType]IncidentStatus{
	ActionAcknowledge: StatusAcknowledged,
	ActionDispatch:    StatusDispatched,
	ActionResolve:     StatusResolved,
	ActionFalseAlarm:  StatusFalseAlarm,
}

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[IncidentStatus][]IncidentStatus{
	StatusNew:          {StatusAcknowledged, StatusDispatched, StatusResolved, StatusFalseAlarm},
	StatusAcknowledged: {StatusDispatched, StatusResolved, StatusFalseAlarm},
	StatusDispatched:   {StatusResolved, StatusFalseAlarm},
}

// IsTerminal reports whether the status accepts no further actions.
func (s IncidentStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusFalseAlarm
}

// ValidAction reports whether t is one of the four known actions.
func ValidAction(t ActionType) bool {
	_, ok := actionStatus[t]
	return ok
}

// ApplyAction returns the status produced by taking action on the
// current status. Actions against a terminal incident are rejected.
func ApplyAction(current IncidentStatus, action ActionType) (IncidentStatus, error) {
	next, ok := actionStatus[action]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if current.IsTerminal() {
		return "", fmt.Errorf("%w: %s", ErrTerminalStatus, current)
	}
	for _, allowed := range transitions[current] {
		if allowed == next {
			return next, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidAction, action, current)
}
