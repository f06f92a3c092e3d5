package stream

import "sync"

// Reasons a subscriber is turned away.
const (
	limitPerIP = "per_ip"
	limitTotal = "total"
)

// streamLimiter counts open sensor subscriptions per client IP and across
// the hub, so a single dashboard cannot hold every slot.
type streamLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	return &streamLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a subscription slot for ip. It returns the cap that was
// hit, or "" when the slot was granted. The hub-wide cap is checked first.
func (l *streamLimiter) acquire(ip string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.maxTotal:
		return limitTotal
	case l.open[ip] >= l.maxPerIP:
		return limitPerIP
	}
	l.open[ip]++
	l.total++
	return ""
}

// release frees a slot taken by acquire. Releasing an ip with no open
// subscription is a no-op.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.open[ip]
	if !ok {
		return
	}
	l.total--
	if n <= 1 {
		delete(l.open, ip)
		return
	}
	l.open[ip] = n - 1
}

// count is the number of subscriptions ip holds.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip]
}
