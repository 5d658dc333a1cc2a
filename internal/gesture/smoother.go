package gesture

// VoteSmoother reduces the last W class indices to one stable index by
// majority vote. Ties go to the value whose first occurrence in the window
// comes earliest.
type VoteSmoother struct {
	history *Ring[int]
	counts  map[int]int
	labels  []string
	stable  int
}

// NewVoteSmoother returns an empty smoother over window votes resolving
// indices against labels.
func NewVoteSmoother(window int, labels []string) *VoteSmoother {
	return &VoteSmoother{
		history: NewRing[int](window),
		counts:  make(map[int]int),
		labels:  labels,
		stable:  -1,
	}
}

// Observe records classIndex and returns the current stable index.
func (s *VoteSmoother) Observe(classIndex int) int {
	if evicted, ok := s.history.Push(classIndex); ok {
		if s.counts[evicted]--; s.counts[evicted] == 0 {
			delete(s.counts, evicted)
		}
	}
	s.counts[classIndex]++

	best, bestCount := -1, 0
	for i := 0; i < s.history.Len(); i++ {
		v := s.history.At(i)
		if c := s.counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	s.stable = best
	return best
}

// Stable returns the current majority index, or -1 before the first vote.
func (s *VoteSmoother) Stable() int { return s.stable }

// Label resolves the stable index. It reports false before the first vote and
// when the index has no label.
func (s *VoteSmoother) Label() (string, bool) {
	if s.stable < 0 || s.stable >= len(s.labels) {
		return "", false
	}
	return s.labels[s.stable], true
}

// Len is the number of votes in the window.
func (s *VoteSmoother) Len() int { return s.history.Len() }

// Window is the vote capacity.
func (s *VoteSmoother) Window() int { return s.history.Cap() }

// Reset clears the vote history.
func (s *VoteSmoother) Reset() {
	s.history.Reset()
	clear(s.counts)
	s.stable = -1
}
