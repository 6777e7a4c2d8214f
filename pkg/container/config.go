package container

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Config is the parsed, validated configuration for one `run` invocation.
// Validation happens here, before the Parent Driver touches any syscall,
// so a malformed invocation fails fast with a config-error and never
// unshares a namespace.
type Config struct {
	Image          string
	Rootfs         string
	Command        []string
	MemoryBytes    *int64
	CPUPercent     *int
	NetworkEnabled bool
}

// Validate enforces the rule that if --image is absent, ROOTFS is
// required and at least one CMD token must follow it.
func (c *Config) Validate() error {
	if c.Image == "" {
		if c.Rootfs == "" {
			return errors.New("rootfs is required when --image is not given")
		}
	}
	if len(c.Command) == 0 {
		return errors.New("a command is required")
	}
	return nil
}

var memoryPattern = regexp.MustCompile(`(?i)^(\d+)([kmg]?)$`)

// ParseMemory parses a --memory SIZE value: digits followed by an
// optional case-insensitive k/m/g suffix, with
// multipliers none=1, k=1024, m=1024^2, g=1024^3. The result must be > 0.
func ParseMemory(s string) (int64, error) {
	m := memoryPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %w", s, err)
	}

	var multiplier int64 = 1
	switch strings.ToLower(m[2]) {
	case "k":
		multiplier = 1024
	case "m":
		multiplier = 1024 * 1024
	case "g":
		multiplier = 1024 * 1024 * 1024
	}

	result := n * multiplier
	if result <= 0 {
		return 0, fmt.Errorf("memory size %q must be positive", s)
	}
	return result, nil
}

// ParseCPUPercent parses a --cpu PERCENT value: a positive integer, where
// 100 represents one full core.
func ParseCPUPercent(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu percent %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("cpu percent %q must be positive", s)
	}
	return n, nil
}
