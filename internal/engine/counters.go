package engine

import "math"

// Counter rollover bounds for SNMP Counter32 and Counter64 objects.
const (
	Wrap32 uint64 = math.MaxUint32
	Wrap64 uint64 = math.MaxUint64
)

// CounterDelta returns the non-negative increase of a monotonic counter
// between two samples. When cur is below prev and wrap is non-zero, a single
// rollover at wrap is assumed. Otherwise a decrease is treated as a counter
// reset and yields 0.
func CounterDelta(prev, cur, wrap uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	if wrap == 0 || prev > wrap {
		return 0
	}
	return (wrap - prev) + cur + 1
}

// rolloverBound returns wrap when prev sits in the upper half of the counter
// range, where a drop is most likely a rollover. A drop from lower values is
// treated as a reset, such as after a device reboot.
func rolloverBound(prev, wrap uint64) uint64 {
	if wrap == 0 || prev <= wrap/2 {
		return 0
	}
	return wrap
}

// Rate divides delta by the sample interval in seconds, clamping the
// interval to at least one second.
func Rate(delta uint64, intervalSeconds int64) float64 {
	if intervalSeconds < 1 {
		intervalSeconds = 1
	}
	return float64(delta) / float64(intervalSeconds)
}

// Interval returns the seconds between two snapshots, at least 1.
func Interval(prev, cur Snapshot) int64 {
	dt := cur.Timestamp - prev.Timestamp
	if dt < 1 {
		return 1
	}
	return dt
}

// ErrorRate returns combined rx+tx errors per second between two snapshots.
// Rollover is only assumed when cur carries an error counter bound.
func ErrorRate(prev, cur Snapshot) float64 {
	delta := CounterDelta(prev.RxErrors, cur.RxErrors, rolloverBound(prev.RxErrors, cur.ErrorsWrap)) +
		CounterDelta(prev.TxErrors, cur.TxErrors, rolloverBound(prev.TxErrors, cur.ErrorsWrap))
	return Rate(delta, Interval(prev, cur))
}

// CalculateRates derives bits-per-second and error rate figures from two
// consecutive snapshots. A nil prev yields zero, invalid rates.
func CalculateRates(prev *Snapshot, cur Snapshot) Rates {
	if prev == nil {
		return Rates{}
	}
	interval := Interval(*prev, cur)
	return Rates{
		RxBps:     Rate(CounterDelta(prev.RxBytes, cur.RxBytes, rolloverBound(prev.RxBytes, cur.BytesWrap))*8, interval),
		TxBps:     Rate(CounterDelta(prev.TxBytes, cur.TxBytes, rolloverBound(prev.TxBytes, cur.BytesWrap))*8, interval),
		ErrPerSec: ErrorRate(*prev, cur),
		Valid:     true,
	}
}
