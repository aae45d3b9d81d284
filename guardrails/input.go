// Package guardrails implements the C3 input validation and C7 output
// validation stages. Sentence-level word-overlap scoring in
// output.go/snippet.go is grounded on reasoning/validator.go's
// citation/consistency heuristics over lowercase substring checks and
// snippet.go's significant-word overlap. The fixed-pattern detectors
// (injection, sensitive data) follow the same "regex set, any match
// rejects" shape used for retrieval/retrieval.go's identifierPatterns.
package guardrails

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"time"
)

// InputResult is the C3 validation outcome for one query.
type InputResult struct {
	Valid          bool
	SanitizedQuery string
	Warnings       []string
	Errors         []string
	RateLimited    bool
}

// InputConfig configures the C3 thresholds.
type InputConfig struct {
	MinLength           int
	MaxLength           int
	MaxQueriesPerMinute int
}

var injectionPatterns = compileAll(
	`ignore (all )?previous instructions`,
	`you are now`,
	`<script`,
	`system prompt\s*:`,
	`disregard (all )?(the )?(above|prior)`,
	`act as (if )?(you (are|were)|a)`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// RateLimiter is a sliding-window per-user request counter. The default
// implementation is in-memory with eventual consistency across
// workers; a cache-backed implementation can satisfy the same
// interface for distributed deployments.
type RateLimiter interface {
	// Allow records one request for userID and reports whether the
	// caller is within the per-minute limit.
	Allow(userID string, limit int) bool
}

// InMemoryRateLimiter is a sliding 60-second window keyed by user id.
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

// NewInMemoryRateLimiter builds a RateLimiter with no shared state
// across processes -- fine when eventual consistency across workers is
// tolerable.
func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{buckets: make(map[string][]time.Time)}
}

func (r *InMemoryRateLimiter) Allow(userID string, limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	recent := r.buckets[userID][:0]
	for _, t := range r.buckets[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit {
		r.buckets[userID] = recent
		return false
	}

	r.buckets[userID] = append(recent, now)
	return true
}

// ValidateInput runs the C3 pipeline: length check, rate limit,
// prompt-injection detection, then sanitization. The sanitized query is
// what downstream components see even when warnings (but not hard
// errors) are present.
func ValidateInput(query string, userID string, cfg InputConfig, limiter RateLimiter) InputResult {
	result := InputResult{SanitizedQuery: sanitize(query)}

	trimmed := strings.TrimSpace(query)
	if len(trimmed) < cfg.MinLength || len(trimmed) > cfg.MaxLength {
		result.Errors = append(result.Errors, "query length outside allowed range")
	}

	if limiter != nil && userID != "" {
		limit := cfg.MaxQueriesPerMinute
		if limit <= 0 {
			limit = 30
		}
		if !limiter.Allow(userID, limit) {
			result.RateLimited = true
			result.Errors = append(result.Errors, "rate limit exceeded")
		}
	}

	for _, re := range injectionPatterns {
		if re.MatchString(query) {
			result.Errors = append(result.Errors, "query matched prompt-injection pattern")
			break
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// sanitize HTML-escapes angle brackets and strips control characters.
func sanitize(query string) string {
	escaped := html.EscapeString(query)
	return controlCharPattern.ReplaceAllString(escaped, "")
}
