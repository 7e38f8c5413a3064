package cache

import (
	"regexp"
	"time"
)

// Rule pairs a pattern with the length of time a matching call's result may
// be served from cache. A zero (or negative) TTL means "never cache".
type Rule struct {
	Pattern *regexp.Regexp
	TTL     time.Duration
}

// NoStore is a convenience TTL for rules that exclude matching calls from
// the cache.
const NoStore time.Duration = 0

// RuleSet maps a function ID to its ordered TTL rules.
//
// Rules are evaluated in declared order and the first rule whose pattern
// matches the call's subject (the canonically serialized arguments, which
// for network lookups typically embed a URL) wins. A call whose function has
// no rules, or whose subject matches no rule, is never cached: caching is an
// explicit allow-list, because caching a non-idempotent call would be
// incorrect.
type RuleSet map[string][]Rule

// TTL returns the time-to-live for a call, and whether its result should be
// stored at all.
func (rs RuleSet) TTL(fn, subject string) (time.Duration, bool) {
	for _, r := range rs[fn] {
		if r.Pattern.MatchString(subject) {
			if r.TTL <= 0 {
				return 0, false
			}

			return r.TTL, true
		}
	}

	return 0, false
}

// NewRule compiles a rule from a regular expression source, panicking if the
// pattern is malformed. It exists to keep rule tables declarative at their
// call sites.
func NewRule(pattern string, ttl time.Duration) Rule {
	return Rule{
		Pattern: regexp.MustCompile(pattern),
		TTL:     ttl,
	}
}
