package commands

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"

	"zhatMod/internal/domain"
)

const (
	msgMissingUsername = "Please provide a username"
	msgInvalidDuration = "Please provide a valid duration"
)

var durationWithUnit = regexp.MustCompile(`(?i)^(\d+)\s*(s|secs?|seconds?|m|mins?|minutes?|h|hrs?|hours?|d|days?|w|weeks?)$`)

// NormalizeUsername trims, drops leading '@' and case-folds a login. It is idempotent.
func NormalizeUsername(name string) string {
	name = strings.TrimLeftFunc(name, func(r rune) bool {
		return r == '@' || unicode.IsSpace(r)
	})
	name = strings.TrimRightFunc(name, unicode.IsSpace)
	return cases.Fold().String(name)
}

// ParseDurationSeconds converts "10", "10m", "1h", "2days" or "1h30m" into whole seconds.
// Negative values and garbage are rejected; sub-second remainders are truncated.
func ParseDurationSeconds(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}

	if m := durationWithUnit.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		unit := unitSeconds(strings.ToLower(m[2]))
		if n > maxInt/unit {
			return 0, false
		}
		return n * unit, true
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, false
	}
	return int(d / time.Second), true
}

const maxInt = int(^uint(0) >> 1)

func unitSeconds(unit string) int {
	switch unit[0] {
	case 'm':
		return 60
	case 'h':
		return 60 * 60
	case 'd':
		return 24 * 60 * 60
	case 'w':
		return 7 * 24 * 60 * 60
	default:
		return 1
	}
}

func joinReason(tokens []string) domain.Reason {
	if len(tokens) == 0 {
		return domain.NoReason()
	}
	return domain.ReasonOf(strings.Join(tokens, " "))
}

func usernameArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", invalid(msgMissingUsername)
	}
	name := NormalizeUsername(args[0])
	if name == "" {
		return "", invalid(msgMissingUsername)
	}
	return name, nil
}
