package httputil

import "sync"

// Limiter bounds concurrent in-flight work per client IP and globally.
// Long-lived streams and CPU-heavy requests each hold one slot.
type Limiter struct {
	mu       sync.Mutex
	inFlight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewLimiter creates a Limiter. Limits below 1 are raised to 1.
func NewLimiter(maxPerIP, maxTotal int) *Limiter {
	return &Limiter{
		inFlight: make(map[string]int),
		maxPerIP: max(maxPerIP, 1),
		maxTotal: max(maxTotal, 1),
	}
}

// Acquire reserves a slot for ip. It returns false when the IP or the
// global limit has been reached.
func (l *Limiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.inFlight[ip] >= l.maxPerIP {
		return false
	}

	l.inFlight[ip]++
	l.total++
	return true
}

// Release frees a slot reserved by Acquire.
func (l *Limiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inFlight[ip]--
	l.total--
	if l.inFlight[ip] <= 0 {
		delete(l.inFlight, ip)
	}
}

// Count returns the number of slots held by ip.
func (l *Limiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[ip]
}

// Total returns the number of slots held across all IPs.
func (l *Limiter) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
