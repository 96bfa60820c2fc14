package core

import (
	"regexp"
	"strings"
)

// MatchesDomain reports whether hostname falls under pattern. Both inputs
// are case-folded. Supported pattern shapes, which are mutually exclusive
// by syntax:
//
//	example.com     exact, plus the www. alias
//	webmail.*       prefix wildcard: any hostname starting "webmail."
//	*.example.com   subdomain wildcard: the domain itself or any subdomain
//	*example.com    same as *.example.com (tolerated typo spelling)
//	*local*         generic wildcard, full-string match
//
// An empty or whitespace-only pattern never matches.
func MatchesDomain(hostname, pattern string) bool {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if hostname == "" || pattern == "" {
		return false
	}
	if hostname == pattern {
		return true
	}

	switch {
	case strings.HasSuffix(pattern, ".*"):
		prefix := strings.TrimSuffix(pattern, ".*")
		return prefix != "" && strings.HasPrefix(hostname, prefix+".")
	case strings.HasPrefix(pattern, "*."):
		return matchesDomainBase(hostname, strings.TrimPrefix(pattern, "*."))
	case strings.HasPrefix(pattern, "*") && !strings.Contains(pattern[1:], "*"):
		return matchesDomainBase(hostname, strings.TrimPrefix(pattern, "*"))
	case strings.Contains(pattern, "*"):
		re, err := wildcardRegexp(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(hostname)
	default:
		return hostname == "www."+pattern
	}
}

// matchesDomainBase reports whether hostname is base itself or any
// subdomain of base.
func matchesDomainBase(hostname, base string) bool {
	if base == "" {
		return false
	}
	return hostname == base || strings.HasSuffix(hostname, "."+base)
}

// wildcardRegexp compiles a generic wildcard pattern to an anchored
// regular expression, escaping every metacharacter except *.
func wildcardRegexp(pattern string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	return regexp.Compile("^" + escaped + "$")
}
