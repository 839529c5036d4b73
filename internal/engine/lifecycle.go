package engine

import (
	"fmt"

	"cleanflow/internal/domain"
)

// TransitionError names the violated rule: an edge that does not exist in the
// graph, or an actor not permitted to trigger it. No state is mutated when
// one is returned.
type TransitionError struct {
	From   domain.Status
	To     domain.Status
	Reason string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// ConflictError reports a lost assignment race: the item was no longer
// pending when the compare-and-set ran.
type ConflictError struct {
	ItemID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("work item %s already assigned", e.ItemID)
}

// transitions is the adjacency table per work-item kind. Forward-only, no
// skips, no self-loops; rejected is reachable for reports only, from pending
// or assigned.
var transitions = map[domain.Kind]map[domain.Status][]domain.Status{
	domain.KindBooking: {
		domain.StatusPending:    {domain.StatusAssigned},
		domain.StatusAssigned:   {domain.StatusInProgress},
		domain.StatusInProgress: {domain.StatusCompleted},
	},
	domain.KindReport: {
		domain.StatusPending:    {domain.StatusAssigned, domain.StatusRejected},
		domain.StatusAssigned:   {domain.StatusInProgress, domain.StatusRejected},
		domain.StatusInProgress: {domain.StatusCleared},
	},
}

// validEdge reports whether to is an immediate successor of from for kind.
func validEdge(kind domain.Kind, from, to domain.Status) bool {
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// ensureTransition validates the edge and the acting role for it.
// Administrators trigger ->rejected on reports; the assigned collector
// triggers assigned->in_progress and in_progress->completed/cleared.
// Entering assigned is refused here outright: only Assign binds a collector
// and stamps assigned_at, so a bare status write would leave the item with
// no collector and no way forward.
func ensureTransition(item domain.WorkItem, to domain.Status, actor actorRef) error {
	if to == item.Status {
		return TransitionError{From: item.Status, To: to, Reason: "already in this status"}
	}
	if to == domain.StatusAssigned {
		return TransitionError{From: item.Status, To: to, Reason: "assignment goes through Assign"}
	}
	if !validEdge(item.Kind, item.Status, to) {
		return TransitionError{From: item.Status, To: to, Reason: "not a valid successor"}
	}
	switch to {
	case domain.StatusRejected:
		if actor.Role != domain.RoleAdmin {
			return TransitionError{From: item.Status, To: to, Reason: "only administrators reject"}
		}
	case domain.StatusInProgress, domain.StatusCompleted, domain.StatusCleared:
		if actor.Role != domain.RoleCollector {
			return TransitionError{From: item.Status, To: to, Reason: "only the assigned collector advances work"}
		}
		if item.CollectorID == nil || *item.CollectorID != actor.CollectorID {
			return TransitionError{From: item.Status, To: to, Reason: "item assigned to a different collector"}
		}
	}
	return nil
}

// timestampColumn names the lifecycle column set by entering a status.
// Each is written exactly once, at the transition into the status it names.
func timestampColumn(to domain.Status) string {
	switch to {
	case domain.StatusInProgress:
		return "started_at"
	case domain.StatusCompleted, domain.StatusCleared:
		return "completed_at"
	}
	return ""
}

type actorRef struct {
	AccountID   string
	Role        domain.Role
	CollectorID string
}
