// Package ratelimit implements sliding-window attempt accounting keyed by
// (identifier, action). It backs the login brute-force protection and the
// preflight /rate-limit-check endpoint.
//
// This is deliberately separate from the token-bucket edge middleware in
// pkg/httpx: the edge limiter sheds raw request volume per IP, while this
// limiter tracks security-relevant attempts per identifier with exact
// remaining/reset accounting.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

// Action classifies what is being rate limited. Policies differ per action.
type Action string

const (
	ActionAuthentication       Action = "authentication"
	ActionAuthenticationFailed Action = "authentication_failed"
	ActionFormSubmission       Action = "form_submission"
	ActionFileUpload           Action = "file_upload"
	ActionAdminAction          Action = "admin_action"
	ActionStrict               Action = "strict"
)

// Policy is a static (max attempts, window) pair for one action.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// defaultPolicies maps each action to its policy. Repeated authentication
// failures get fewer attempts over a longer window than plain authentication,
// so lockout escalates for an attacker while a fat-fingered password stays
// cheap for a legitimate user.
var defaultPolicies = map[Action]Policy{
	ActionAuthentication:       {MaxAttempts: 5, Window: 15 * time.Minute},
	ActionAuthenticationFailed: {MaxAttempts: 3, Window: time.Hour},
	ActionFormSubmission:       {MaxAttempts: 10, Window: time.Minute},
	ActionFileUpload:           {MaxAttempts: 20, Window: time.Hour},
	ActionAdminAction:          {MaxAttempts: 30, Window: time.Minute},
	ActionStrict:               {MaxAttempts: 3, Window: time.Hour},
}

// Result reports the outcome of a limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	Reset     time.Time
}

// RetryAfter returns how long the caller should wait, rounded up to whole
// seconds and never less than one second for a blocked result.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	d := r.Reset.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}

const shardCount = 64

// shard owns a slice of the key space. The mutex serializes the
// prune-check-append sequence so two concurrent requests can never both
// claim the last remaining slot.
type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// Limiter is a process-local sliding-window limiter. State lives only for
// the process lifetime; a restart clears all windows.
type Limiter struct {
	shards   [shardCount]*shard
	policies map[Action]Policy
	now      func() time.Time
}

// Option tweaks Limiter construction.
type Option func(*Limiter)

// WithClock injects a time source. Tests use this to elapse windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithPolicy overrides the policy for one action.
func WithPolicy(action Action, p Policy) Option {
	return func(l *Limiter) { l.policies[action] = p }
}

// New returns a Limiter with the default per-action policies.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		policies: make(map[Action]Policy, len(defaultPolicies)),
		now:      time.Now,
	}
	for a, p := range defaultPolicies {
		l.policies[a] = p
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string][]time.Time)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the effective policy for an action. Unknown actions fall
// back to the strict policy (fail closed).
func (l *Limiter) Policy(action Action) Policy {
	if p, ok := l.policies[action]; ok {
		return p
	}
	return l.policies[ActionStrict]
}

// Check records an attempt for (identifier, action) unless the window is
// already full. Blocked attempts are not recorded, so a blocked caller's
// reset time does not keep sliding away.
func (l *Limiter) Check(identifier string, action Action) Result {
	return l.check(identifier, action, true)
}

// Peek reports the current state without recording an attempt. Used by the
// preflight status endpoint.
func (l *Limiter) Peek(identifier string, action Action) Result {
	return l.check(identifier, action, false)
}

func (l *Limiter) check(identifier string, action Action, record bool) Result {
	policy := l.Policy(action)
	key := identifier + "\x00" + string(action)
	sh := l.shardFor(key)
	now := l.now()
	cutoff := now.Add(-policy.Window)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	attempts := pruneBefore(sh.windows[key], cutoff)

	if len(attempts) >= policy.MaxAttempts {
		sh.windows[key] = attempts
		return Result{
			Allowed:   false,
			Remaining: 0,
			Limit:     policy.MaxAttempts,
			Reset:     attempts[0].Add(policy.Window),
		}
	}

	if record {
		attempts = append(attempts, now)
	}
	if len(attempts) == 0 {
		delete(sh.windows, key)
	} else {
		sh.windows[key] = attempts
	}

	reset := now.Add(policy.Window)
	if len(attempts) > 0 {
		reset = attempts[0].Add(policy.Window)
	}

	return Result{
		Allowed:   true,
		Remaining: policy.MaxAttempts - len(attempts),
		Limit:     policy.MaxAttempts,
		Reset:     reset,
	}
}

// Sweep drops windows whose every attempt has aged out and returns the
// number of keys removed. Called from the housekeeping worker.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed := 0

	for _, sh := range l.shards {
		sh.mu.Lock()
		for key, attempts := range sh.windows {
			action := actionOf(key)
			cutoff := now.Add(-l.Policy(action).Window)
			live := pruneBefore(attempts, cutoff)
			if len(live) == 0 {
				delete(sh.windows, key)
				removed++
			} else {
				sh.windows[key] = live
			}
		}
		sh.mu.Unlock()
	}

	return removed
}

// TrackedKeys returns how many (identifier, action) windows currently hold
// at least one attempt. Reported by the health endpoint.
func (l *Limiter) TrackedKeys() int {
	total := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		total += len(sh.windows)
		sh.mu.Unlock()
	}
	return total
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

func pruneBefore(attempts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return attempts
	}
	return append([]time.Time(nil), attempts[i:]...)
}

func actionOf(key string) Action {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == 0 {
			return Action(key[i+1:])
		}
	}
	return ActionStrict
}
