package config

// RetryBackoffMode selects the delay growth strategy for retried Drive calls.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)
