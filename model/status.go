package model

// Status is the lifecycle state of a contract.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingReview    Status = "pending_review"
	StatusPendingSignature Status = "pending_signature"
	StatusPartiallySigned  Status = "partially_signed"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusExpired          Status = "expired"
)

// lifecycle order; cancelled and expired sit outside it.
var statusStep = map[Status]int{
	StatusDraft:            1,
	StatusPendingReview:    2,
	StatusPendingSignature: 3,
	StatusPartiallySigned:  4,
	StatusCompleted:        5,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusStep[s]
	return ok || s == StatusCancelled || s == StatusExpired
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Signing reports whether signatures have started to be collected.
func (s Status) Signing() bool {
	return s == StatusPartiallySigned || s == StatusCompleted
}

// CanTransition reports whether a general update may move a contract from
// one status to another. Moves only go forward; cancelled and expired are
// reachable from any non-terminal status. Completed is excluded: only the
// signing path may set it, via CanComplete.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.Terminal() || !to.Valid() {
		return false
	}
	if to == StatusCancelled || to == StatusExpired {
		return true
	}
	if to == StatusCompleted {
		return false
	}
	return statusStep[to] > statusStep[from]
}

// CanComplete reports whether the signing path may complete a contract.
func CanComplete(from Status) bool {
	return from == StatusPendingSignature || from == StatusPartiallySigned
}
