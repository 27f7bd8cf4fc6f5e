package engine

import "fmt"

// WithDefaults fills unset (non-positive) thresholds with the stock values.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.ErrPerSec <= 0 {
		t.ErrPerSec = d.ErrPerSec
	}
	if t.FlapsWindow <= 0 {
		t.FlapsWindow = d.FlapsWindow
	}
	if t.FlapsCount <= 0 {
		t.FlapsCount = d.FlapsCount
	}
	return t
}

// Classify maps an interface snapshot, and optionally its predecessor, to a
// health state. Rules are evaluated in priority order and the first match
// wins:
//
//  1. administratively disabled          -> ADMIN_DOWN
//  2. no carrier                         -> DOWN
//  3. link-down count in window >= limit -> DOWN (flapping)
//  4. error rate above threshold         -> DOWN
//  5. negotiated speed != expected speed -> DEGRADED
//  6. otherwise                          -> UP
//
// Rules 3 and 4 need a previous sample and are skipped without one. Classify
// does not modify its arguments.
func Classify(cur Snapshot, prev *Snapshot, th Thresholds) (State, Diagnostics) {
	th = th.WithDefaults()

	if cur.AdminDisabled {
		return StateAdminDown, Diagnostics{Reason: "admin disabled"}
	}
	if !cur.CarrierUp {
		return StateDown, Diagnostics{Reason: "no carrier"}
	}

	errRate := 0.0
	if prev != nil {
		errRate = ErrorRate(*prev, cur)

		window := AdvanceWindow(prev, cur, th.FlapsWindow)
		if len(window) >= th.FlapsCount {
			return StateDown, Diagnostics{Reason: "flapping", ErrRate: &errRate}
		}

		if errRate > th.ErrPerSec {
			return StateDown, Diagnostics{
				Reason:  fmt.Sprintf("high_error_rate %.2f/s", errRate),
				ErrRate: &errRate,
			}
		}
	}

	actual := cur.Speed.Mbps()
	if cur.ExpectedSpeedMbps != 0 && actual != 0 && actual != cur.ExpectedSpeedMbps {
		return StateDegraded, Diagnostics{
			Reason: fmt.Sprintf("speed_mismatch %d != expected %d", actual, cur.ExpectedSpeedMbps),
		}
	}

	return StateUp, Diagnostics{Reason: "carrier OK", ErrRate: &errRate}
}

// PriorState classifies a stored snapshot on its own, the way the collector
// judges what an interface's state was on the previous tick.
func PriorState(prev Snapshot, th Thresholds) State {
	state, _ := Classify(prev, nil, th)
	return state
}

// DetectTransition decides whether state is a novel classification for an
// interface whose last stored snapshot is prev. It reports the state being
// left (nil for a first sighting) and whether a transition must be emitted.
func DetectTransition(prev *Snapshot, state State, th Thresholds) (*State, bool) {
	if prev == nil {
		return nil, state != StateUp
	}
	from := PriorState(*prev, th)
	return &from, from != state
}
