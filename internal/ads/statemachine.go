package ads

import "adxchange/internal/types"

// transitions is the exhaustive adjacency of the Ad lifecycle: every
// reachable "to" state for a given "from" state. A transition absent here
// is illegal and rejected before any store write happens.
var transitions = map[types.AdStatus][]types.AdStatus{
	types.AdStatusDraft:     {types.AdStatusSubmitted, types.AdStatusCancelled},
	types.AdStatusSubmitted: {types.AdStatusPending, types.AdStatusApproved, types.AdStatusRejected, types.AdStatusDraft, types.AdStatusCancelled},
	types.AdStatusPending:   {types.AdStatusApproved, types.AdStatusRejected, types.AdStatusDraft, types.AdStatusCancelled},
	types.AdStatusApproved:  {types.AdStatusScheduled, types.AdStatusRunning, types.AdStatusCancelled},
	types.AdStatusScheduled: {types.AdStatusRunning, types.AdStatusCancelled},
	types.AdStatusRunning:   {types.AdStatusPaused, types.AdStatusCompleted},
	types.AdStatusPaused:    {types.AdStatusRunning, types.AdStatusCompleted},
	types.AdStatusRejected:  {},
	types.AdStatusCancelled: {},
	types.AdStatusCompleted: {},
}

func isValidTransition(from, to types.AdStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
