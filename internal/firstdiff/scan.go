package firstdiff

// Run is a maximal stretch of differing bytes.
type Run struct {
	Offset int
	Length int
}

// End is the first offset after the run.
func (r Run) End() int { return r.Offset + r.Length }

// Scanner walks two byte streams in lockstep and yields divergence runs in
// ascending offset order. Only the common prefix of the streams is compared.
//
// A Scanner is single use: once Scan returns false it stays false.
type Scanner struct {
	a, b  []byte
	n     int // common length
	pos   int
	max   int
	found int
	run   Run
}

// NewScanner returns a scanner yielding at most max runs. max < 1 means no
// limit.
func NewScanner(candidate, reference []byte, max int) *Scanner {
	n := len(candidate)
	if len(reference) < n {
		n = len(reference)
	}
	return &Scanner{a: candidate, b: reference, n: n, max: max}
}

// Scan advances to the next run.
func (s *Scanner) Scan() bool {
	if s.max > 0 && s.found >= s.max {
		return false
	}
	i := s.pos
	for i < s.n && s.a[i] == s.b[i] {
		i++
	}
	if i >= s.n {
		s.pos = s.n
		return false
	}
	start := i
	for i < s.n && s.a[i] != s.b[i] {
		i++
	}
	s.run = Run{Offset: start, Length: i - start}
	s.pos = i
	s.found++
	return true
}

// Run returns the run found by the last successful Scan.
func (s *Scanner) Run() Run { return s.run }
