package workflow

// Status is the lifecycle state of a complaint. The set is fixed: the state
// machine below is the whole workflow, there is no configurable variant.
type Status string

const (
	StatusNew                  Status = "new"
	StatusUnderVerification    Status = "under_verification"
	StatusInProgress           Status = "in_progress"
	StatusAwaitingApproval     Status = "awaiting_supervisor_approval"
	StatusResolved             Status = "resolved"
	StatusRejected             Status = "rejected"
)

// AllStatuses in display order.
var AllStatuses = []Status{
	StatusNew,
	StatusUnderVerification,
	StatusInProgress,
	StatusAwaitingApproval,
	StatusResolved,
	StatusRejected,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Action identifies one operation of the workflow engine. Every mutating call
// into the engine names exactly one Action; the permission evaluator and the
// transition table are both keyed by it.
type Action string

const (
	ActionCreate         Action = "create"
	ActionTrack          Action = "track" // public read-only tracking lookup
	ActionView           Action = "view"
	ActionVerify         Action = "verify"
	ActionAssign         Action = "assign"
	ActionAddNote        Action = "add_note"
	ActionRequestClosure Action = "request_closure"
	ActionReviewRequest  Action = "review_request"
	ActionReject         Action = "reject"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
)

// allowedFrom is the transition table: the statuses from which each action may
// be taken. Actions absent from the map are not status-gated (create, track,
// view, update, delete).
var allowedFrom = map[Action][]Status{
	ActionVerify:         {StatusNew},
	ActionAssign:         {StatusNew, StatusUnderVerification, StatusInProgress},
	ActionAddNote:        {StatusNew, StatusUnderVerification, StatusInProgress, StatusAwaitingApproval},
	ActionRequestClosure: {StatusInProgress},
	ActionReviewRequest:  {StatusAwaitingApproval},
	ActionReject:         {StatusNew, StatusUnderVerification},
}

// AllowedFrom reports whether action is legal when the complaint currently has
// status from. Actions without an entry in the table are always legal as far
// as the state machine is concerned (permissions still apply).
func AllowedFrom(action Action, from Status) bool {
	states, gated := allowedFrom[action]
	if !gated {
		return true
	}
	for _, s := range states {
		if s == from {
			return true
		}
	}
	return false
}

// RequestableStatus reports whether target is a terminal status an agent may
// propose in a closure request.
func RequestableStatus(target Status) bool {
	return target == StatusResolved || target == StatusRejected
}
