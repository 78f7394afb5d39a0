package workflow

import "github.com/google/uuid"

// ComplaintRef is the slice of complaint state the permission evaluator needs.
// Keeping it here (instead of depending on the models package) keeps the
// evaluator a pure function usable from any layer.
type ComplaintRef struct {
	Status          Status
	ServiceType     string
	SupervisorID    *uuid.UUID
	AssignedAgentID *uuid.UUID
}

// CanPerform is the permission evaluator: a pure function of actor, complaint
// state and action. It decides WHO may attempt an action; whether the action
// is legal from the current status is AllowedFrom's job. Both checks run
// before any mutation.
func CanPerform(actor Actor, c ComplaintRef, action Action) bool {
	switch actor.Kind {
	case ActorPublic:
		// The public can only file complaints and follow them by tracking id.
		return action == ActionCreate || action == ActionTrack

	case ActorSystem:
		// System actions are internal plumbing (seed, migrations); they never
		// drive complaint transitions directly.
		return false

	case ActorUser:
		// fall through to role rules below
	default:
		return false
	}

	switch actor.Role {
	case RoleAdmin:
		return true

	case RoleManagement:
		return action == ActionView || action == ActionTrack

	case RoleSupervisor:
		if action == ActionCreate || action == ActionDelete || action == ActionUpdate || action == ActionRequestClosure {
			return false
		}
		if c.SupervisorID != nil && *c.SupervisorID == actor.UserID {
			return true
		}
		// First-touch triage: while a complaint is still in intake states,
		// any supervisor handling its service type may act on it.
		if (c.Status == StatusNew || c.Status == StatusUnderVerification) &&
			actor.HandlesServiceType(c.ServiceType) {
			return true
		}
		return false

	case RoleAgent:
		switch action {
		case ActionView, ActionAddNote, ActionRequestClosure:
			return c.AssignedAgentID != nil && *c.AssignedAgentID == actor.UserID
		}
		return false
	}

	return false
}
