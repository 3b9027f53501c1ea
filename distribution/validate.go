package distribution

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidConfig = errors.New("distribution: invalid pull configuration")
	ErrInfeasible    = errors.New("distribution: insufficient capacity")
)

// ConfigError points at the offending configuration entry.
type ConfigError struct {
	Index  int
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("pulls_config: %s", e.Reason)
	}
	return fmt.Sprintf("pulls_config[%d]: %s", e.Index, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// InfeasibleError is reported before allocation when the configured pulls
// cannot hold every selected package.
type InfeasibleError struct {
	Requested int
	Capacity  int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("total capacity (%d) insufficient for %d packages", e.Capacity, e.Requested)
}

func (e *InfeasibleError) Is(target error) bool { return target == ErrInfeasible }

// ValidateConfigs rejects an empty list, a missing or unknown size, and a
// capacity below one.
func ValidateConfigs(configs []PullConfig) error {
	if len(configs) == 0 {
		return &ConfigError{Index: -1, Reason: "at least one pull configuration is required"}
	}
	for i, c := range configs {
		if c.Size == "" {
			return &ConfigError{Index: i, Reason: "size is required"}
		}
		if !c.Size.Valid() {
			return &ConfigError{Index: i, Reason: fmt.Sprintf("unknown size %q", c.Size)}
		}
		if c.MaxPackages < 1 {
			return &ConfigError{Index: i, Reason: "max_packages must be at least 1"}
		}
	}
	return nil
}

// Capacity sums the usable capacity of configs, saturating at math.MaxInt.
func Capacity(configs []PullConfig) int {
	total := 0
	for _, c := range configs {
		if c.MaxPackages <= 0 {
			continue
		}
		if c.MaxPackages > math.MaxInt-total {
			return math.MaxInt
		}
		total += c.MaxPackages
	}
	return total
}

// DistinctCount is the number of different ids in packageIDs, which is what
// Distribute actually places.
func DistinctCount(packageIDs []string) int {
	return len(dedupe(packageIDs))
}

// CheckCapacity returns an *InfeasibleError when n packages do not fit.
func CheckCapacity(n int, configs []PullConfig) error {
	if c := Capacity(configs); c < n {
		return &InfeasibleError{Requested: n, Capacity: c}
	}
	return nil
}
