// Package metrics defines the minimal metrics surface the analysis
// pipeline reports to.
//
// Components receive a Backend at construction and emit named points
// with label dimensions; backends decide buffering and transport. The
// Nop backend keeps metrics optional without nil checks at call sites.
package metrics

// Labels attach dimensions to a metric point.
type Labels map[string]string

// Backend receives metric points. Implementations must be safe for
// concurrent use, and emission must never block the caller on
// transport: buffer now, submit later.
type Backend interface {
	// IncCounter adds delta to the named counter.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records one sample of the named distribution.
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop discards every point.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
