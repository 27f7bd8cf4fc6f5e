package engine

// maxWindowEvents caps how many events a single sample may add to a window.
const maxWindowEvents = 1024

// FlapWindow is the ordered list of link-down event timestamps (unix seconds)
// observed for an interface. It is never grown without a matching prune, so
// its length stays bounded by the events that fit in the flap window.
type FlapWindow []int64

func (w FlapWindow) clone() FlapWindow {
	if w == nil {
		return nil
	}
	out := make(FlapWindow, len(w))
	copy(out, w)
	return out
}

// Prune returns a copy holding only entries in [now-window, now].
func (w FlapWindow) Prune(now, window int64) FlapWindow {
	out := make(FlapWindow, 0, len(w))
	for _, ts := range w {
		if ts > now {
			continue
		}
		if now-ts <= window {
			out = append(out, ts)
		}
	}
	return out
}

// Record returns a copy with n occurrences of ts appended, n capped at
// maxWindowEvents.
func (w FlapWindow) Record(n uint64, ts int64) FlapWindow {
	if n > maxWindowEvents {
		n = maxWindowEvents
	}
	out := make(FlapWindow, len(w), len(w)+int(n))
	copy(out, w)
	for i := uint64(0); i < n; i++ {
		out = append(out, ts)
	}
	return out
}

// CarryWindow returns the flap history to attach to cur before
// classification: the prior snapshot's window pruned to the flap window
// ending at cur's timestamp. A missing prior snapshot yields an empty window.
func CarryWindow(prev *Snapshot, cur Snapshot, window int64) FlapWindow {
	if prev == nil {
		return FlapWindow{}
	}
	return prev.DownsWindow.Prune(cur.Timestamp, window)
}

// AdvanceWindow folds cur's own link-down increase since prev into its
// carried window and prunes the result. The classifier evaluates this window
// and the collector persists it, so each increase is counted exactly once.
func AdvanceWindow(prev *Snapshot, cur Snapshot, window int64) FlapWindow {
	w := cur.DownsWindow
	if prev != nil {
		w = w.Record(CounterDelta(prev.LinkDowns, cur.LinkDowns, 0), cur.Timestamp)
	}
	return w.Prune(cur.Timestamp, window)
}
