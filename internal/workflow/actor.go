package workflow

import "github.com/google/uuid"

// Role is the role of an authenticated user.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleAgent      Role = "agent"
	RoleManagement Role = "management"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleAgent, RoleManagement:
		return true
	}
	return false
}

// ActorKind tags the three kinds of actor the engine accepts.
type ActorKind string

const (
	ActorPublic ActorKind = "public"
	ActorSystem ActorKind = "system"
	ActorUser   ActorKind = "user"
)

// Actor is who is performing an action. Public reporters and unattributed
// system actions carry no user identity; everything else carries the id,
// display name, role and handled service types of an authenticated user.
type Actor struct {
	Kind         ActorKind
	UserID       uuid.UUID
	Name         string
	Role         Role
	ServiceTypes []string
}

// PublicActor is an anonymous or pre-login reporter.
func PublicActor() Actor {
	return Actor{Kind: ActorPublic}
}

// SystemActor is an unattributed internal action.
func SystemActor() Actor {
	return Actor{Kind: ActorSystem}
}

// UserActor wraps an authenticated user.
func UserActor(id uuid.UUID, name string, role Role, serviceTypes []string) Actor {
	return Actor{Kind: ActorUser, UserID: id, Name: name, Role: role, ServiceTypes: serviceTypes}
}

// HandlesServiceType reports whether the actor's handled service types include
// serviceType.
func (a Actor) HandlesServiceType(serviceType string) bool {
	for _, st := range a.ServiceTypes {
		if st == serviceType {
			return true
		}
	}
	return false
}

// DisplayName is the name recorded in the history ledger for this actor.
func (a Actor) DisplayName() string {
	switch a.Kind {
	case ActorSystem:
		return "System"
	case ActorPublic:
		if a.Name != "" {
			return a.Name
		}
		return "Anonymous Reporter"
	default:
		return a.Name
	}
}
