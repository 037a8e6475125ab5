package resilience

import "time"

// Policy shapes the retry schedule for one operation class.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// backoff returns the wait before retrying after the given 1-based attempt.
func (p Policy) backoff(attempt int) time.Duration {
	wait := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * p.Multiplier)
		if wait >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

func (p Policy) normalize() Policy {
	def := defaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// BreakerPolicy configures the shared circuit breaker settings. One breaker
// is kept per operation name.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (b BreakerPolicy) normalize() BreakerPolicy {
	def := defaultBreakerPolicy()
	if b.MinRequests == 0 {
		b.MinRequests = def.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.OpenTimeout
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return b
}

type Config struct {
	Retry   Policy
	Breaker BreakerPolicy
	// PerOperation overrides the retry schedule for specific operation
	// names. Operations not listed here use Retry.
	PerOperation map[string]Policy
}

func (c Config) normalize() Config {
	c.Retry = c.Retry.normalize()
	c.Breaker = c.Breaker.normalize()
	normalized := make(map[string]Policy, len(c.PerOperation))
	for name, policy := range c.PerOperation {
		normalized[name] = policy.normalize()
	}
	c.PerOperation = normalized
	return c
}

func (c Config) policyFor(operation string) Policy {
	if policy, ok := c.PerOperation[operation]; ok {
		return policy
	}
	return c.Retry
}

func defaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func defaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{
		Enabled:          true,
		MinRequests:      10,
		FailureRatio:     0.5,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// DefaultConfig carries the retry schedules tuned to the retrieval budgets.
// A model generation already runs tens of seconds, so a single same-schedule
// retry is all the pipeline budget can absorb; embeddings and queue
// publishes are cheap enough for the full schedule.
func DefaultConfig() Config {
	return Config{
		Retry:   defaultPolicy(),
		Breaker: defaultBreakerPolicy(),
		PerOperation: map[string]Policy{
			"ollama.generate": {
				MaxAttempts:    2,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     500 * time.Millisecond,
				Multiplier:     1.0,
			},
		},
	}
}
