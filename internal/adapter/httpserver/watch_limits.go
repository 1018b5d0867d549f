package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// limitReason describes why a watch connection was refused.
type limitReason string

const (
	limitReasonGlobal limitReason = "global_limit"
	limitReasonPerIP  limitReason = "per_ip_limit"
	limitReasonRate   limitReason = "rate_limit"
)

const (
	rateEntryIdle       = 10 * time.Minute
	rateCleanupInterval = 5 * time.Minute
)

// watchLimits admits watch connections. A limit of zero disables that check.
type watchLimits struct {
	globalMax int64
	current   atomic.Int64

	mu       sync.Mutex
	perIP    map[string]int
	perIPMax int

	rates     map[string]*rateEntry
	rate      rate.Limit
	burst     int
	clock     clockwork.Clock
	cleanupAt time.Time
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newWatchLimits(globalMax int64, perIPMax int, connectsPerSecond float64, burst int, clock clockwork.Clock) *watchLimits {
	return &watchLimits{
		globalMax: globalMax,
		perIP:     make(map[string]int),
		perIPMax:  perIPMax,
		rates:     make(map[string]*rateEntry),
		rate:      rate.Limit(connectsPerSecond),
		burst:     burst,
		clock:     clock,
		cleanupAt: clock.Now().Add(rateCleanupInterval),
	}
}

// acquire reserves a slot for ip. On success the caller must call release.
func (l *watchLimits) acquire(ip string) (bool, limitReason) {
	if !l.allowRate(ip) {
		return false, limitReasonRate
	}
	if !l.acquireGlobal() {
		return false, limitReasonGlobal
	}
	if !l.acquireIP(ip) {
		l.current.Add(-1)
		return false, limitReasonPerIP
	}
	return true, ""
}

func (l *watchLimits) release(ip string) {
	l.mu.Lock()
	if count := l.perIP[ip]; count > 1 {
		l.perIP[ip] = count - 1
	} else {
		delete(l.perIP, ip)
	}
	l.mu.Unlock()

	l.current.Add(-1)
}

func (l *watchLimits) active() int64 {
	return l.current.Load()
}

func (l *watchLimits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if l.globalMax > 0 && current >= l.globalMax {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *watchLimits) acquireIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIPMax > 0 && l.perIP[ip] >= l.perIPMax {
		return false
	}
	l.perIP[ip]++
	return true
}

func (l *watchLimits) allowRate(ip string) bool {
	if l.rate <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.cleanupLocked(now)
		l.cleanupAt = now.Add(rateCleanupInterval)
	}

	entry, ok := l.rates[ip]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.rates[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// cleanupLocked drops rate limiters idle for rateEntryIdle. Must be called
// with mu held.
func (l *watchLimits) cleanupLocked(now time.Time) {
	cutoff := now.Add(-rateEntryIdle)
	for ip, entry := range l.rates {
		if entry.lastSeen.Before(cutoff) {
			delete(l.rates, ip)
		}
	}
}
