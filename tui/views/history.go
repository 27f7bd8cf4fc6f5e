package views

import (
	"time"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/store"
)

// DefaultHistory is the number of samples kept per interface.
const DefaultHistory = 360

// Sample is one rate observation the board showed.
type Sample struct {
	At        time.Time
	RxBps     float64
	TxBps     float64
	ErrPerSec float64
}

// History remembers recent rates per interface so the board can draw trends.
// A sample is only recorded when the collector has polled since the last
// one.
type History struct {
	size    int
	buffers map[engine.Key]*store.RingBuffer[Sample]
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistory
	}
	return &History{size: size, buffers: make(map[engine.Key]*store.RingBuffer[Sample])}
}

// Record adds the valid rates of every interface in board.
func (h *History) Record(board engine.BoardSnapshot) {
	for _, st := range board.Interfaces {
		if !st.Rates.Valid {
			continue
		}
		k := engine.Key{Device: st.Device, Iface: st.Iface}
		buf, ok := h.buffers[k]
		if !ok {
			buf = store.NewRingBuffer[Sample](h.size)
			h.buffers[k] = buf
		}
		if last, ok := buf.Last(); ok && !st.LastPoll.After(last.At) {
			continue
		}
		buf.Add(Sample{
			At:        st.LastPoll,
			RxBps:     st.Rates.RxBps,
			TxBps:     st.Rates.TxBps,
			ErrPerSec: st.Rates.ErrPerSec,
		})
	}
}

// Samples returns the samples for k, oldest first.
func (h *History) Samples(k engine.Key) []Sample {
	buf, ok := h.buffers[k]
	if !ok {
		return nil
	}
	return buf.All()
}

// Series extracts one figure from the samples of k.
func (h *History) Series(k engine.Key, pick func(Sample) float64) []float64 {
	samples := h.Samples(k)
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = pick(s)
	}
	return out
}

func Rx(s Sample) float64 { return s.RxBps }
func Tx(s Sample) float64 { return s.TxBps }
func Err(s Sample) float64 { return s.ErrPerSec }

// Throughput is the larger direction, used for the board trend column.
func Throughput(s Sample) float64 { return max(s.RxBps, s.TxBps) }
