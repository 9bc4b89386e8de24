package resource

import "sync"

// ProgressFunc receives acquisition progress in [0, 1].
type ProgressFunc func(progress float64)

// aggregate folds per-source progress into one monotonic value and emits it
// serially.
type aggregate struct {
	emit      ProgressFunc
	fractions []float64
	last      float64
	emitted   bool
	mu        sync.Mutex
}

func newAggregate(n int, emit ProgressFunc) *aggregate {
	return &aggregate{
		emit:      emit,
		fractions: make([]float64, n),
	}
}

// update records the progress of source i.
func (a *aggregate) update(i int, v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fractions[i] = clamp(v)

	var sum float64
	for _, f := range a.fractions {
		sum += f
	}
	mean := sum / float64(len(a.fractions))

	if a.emitted && mean <= a.last {
		return
	}
	a.last, a.emitted = mean, true
	a.emit(mean)
}

// finish emits 1 unless it was already the last emitted value.
func (a *aggregate) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.emitted && a.last >= 1 {
		return
	}
	a.last, a.emitted = 1, true
	a.emit(1)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
