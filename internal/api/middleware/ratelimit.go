package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier = 2
	maxSubjects             = 100
	defaultGlobalRPS        = 100
	defaultSubjectRPS       = 50
	defaultUnAuthRPS        = 10

	// Warn when the subject table reaches this share of its cap.
	subjectWarnFraction = 0.8

	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterIdleTimeout     = 1 * time.Hour
)

// RateLimiter decides whether a request may proceed. subject identifies an
// authenticated caller; unauthenticated requests pass the empty string.
//
// The in-memory implementation covers single-node deployments; a
// Redis-backed one can replace it behind this interface when scaling out.
type RateLimiter interface {
	Allow(subject string) bool
}

// InMemoryRateLimiter enforces token-bucket limits in three tiers: a global
// limit over all traffic, a per-subject limit for authenticated callers, and
// a shared limit for anonymous traffic. Idle subject buckets are reaped by a
// background goroutine so the table cannot grow without bound.
type InMemoryRateLimiter struct {
	global          *rate.Limiter
	perSubject      map[string]*subjectLimiter
	unauthenticated *rate.Limiter
	mu              sync.RWMutex
	cleanupTicker   *time.Ticker
	done            chan struct{}

	subjectRPS      int
	subjectBurst    int
	cleanupInterval time.Duration
	idleTimeout     time.Duration
	maxSubjects     int
}

type subjectLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// NewInMemoryRateLimiter builds the three-tier limiter and starts its
// cleanup goroutine. Callers must Close it.
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	rl := &InMemoryRateLimiter{
		global: rate.NewLimiter(
			rate.Limit(config.GlobalRPS),
			computeBurstCapacity(config.GlobalRPS, config.GlobalBurst),
		),
		perSubject: make(map[string]*subjectLimiter),
		unauthenticated: rate.NewLimiter(
			rate.Limit(config.UnAuthRPS),
			computeBurstCapacity(config.UnAuthRPS, config.UnAuthBurst),
		),
		done:            make(chan struct{}),
		subjectRPS:      config.SubjectRPS,
		subjectBurst:    computeBurstCapacity(config.SubjectRPS, config.SubjectBurst),
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxSubjects:     config.MaxSubjects,
	}

	rl.startCleanup()

	return rl
}

// computeBurstCapacity resolves the burst for a tier: an explicit override
// wins, otherwise twice the sustained rate.
func computeBurstCapacity(rps, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rps * burstCapacityMultiplier
}

// Allow consumes a token from the global bucket, then from the caller's tier
// bucket. Subject buckets are created lazily on first sight.
func (rl *InMemoryRateLimiter) Allow(subject string) bool {
	if !rl.global.Allow() {
		return false
	}

	if subject == "" {
		return rl.unauthenticated.Allow()
	}

	sl := rl.subjectBucket(subject)

	sl.mu.Lock()
	sl.lastAccess = time.Now()
	sl.mu.Unlock()

	return sl.limiter.Allow()
}

func (rl *InMemoryRateLimiter) subjectBucket(subject string) *subjectLimiter {
	rl.mu.RLock()
	sl, ok := rl.perSubject[subject]
	rl.mu.RUnlock()

	if ok {
		return sl
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Re-check under the write lock.
	if sl, ok = rl.perSubject[subject]; ok {
		return sl
	}

	sl = &subjectLimiter{
		limiter:    rate.NewLimiter(rate.Limit(rl.subjectRPS), rl.subjectBurst),
		lastAccess: time.Now(),
	}
	rl.perSubject[subject] = sl

	if count := len(rl.perSubject); count >= int(float64(rl.maxSubjects)*subjectWarnFraction) {
		slog.Warn("rate limiter approaching max subjects limit",
			"current_subjects", count,
			"max_subjects", rl.maxSubjects,
			"recommendation", "investigate subject proliferation or increase max_subjects limit")
	}

	return sl
}

// Close stops the cleanup goroutine. It is deliberately not part of the
// RateLimiter interface; callers that need it type-assert io.Closer.
func (rl *InMemoryRateLimiter) Close() error {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)

	return nil
}

func (rl *InMemoryRateLimiter) startCleanup() {
	interval := rl.cleanupInterval
	if interval == 0 {
		interval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.reapIdleSubjects()
			case <-rl.done:
				return
			}
		}
	}()
}

func (rl *InMemoryRateLimiter) reapIdleSubjects() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for subject, sl := range rl.perSubject {
		sl.mu.Lock()
		lastAccess := sl.lastAccess
		sl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perSubject, subject)
		}
	}
}

// RateLimit rejects over-limit requests with a 429 problem response. It must
// sit after the auth middleware so authenticated callers are limited per
// subject rather than through the shared anonymous bucket.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := ""
			if identity, ok := GetIdentity(r.Context()); ok {
				subject = identity.Subject
			}

			if limiter.Allow(subject) {
				next.ServeHTTP(w, r)

				return
			}

			correlationID := GetCorrelationID(r.Context())
			detail := "Rate limit exceeded. Please retry after some time."

			if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
				logger.Error("failed to write rate limit response",
					slog.String("correlation_id", correlationID),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				http.Error(w, detail, http.StatusTooManyRequests)
			}
		})
	}
}
