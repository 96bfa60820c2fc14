package core

import "strings"

// SplitPatterns breaks a comma-joined allowlist string into trimmed,
// non-empty pattern tokens.
func SplitPatterns(list string) []string {
	var patterns []string
	for _, token := range strings.Split(list, ",") {
		token = strings.TrimSpace(token)
		if token != "" {
			patterns = append(patterns, token)
		}
	}
	return patterns
}

// IsAllowlisted reports whether hostname matches any pattern in the
// comma-joined list.
func IsAllowlisted(hostname, list string) bool {
	for _, pattern := range SplitPatterns(list) {
		if MatchesDomain(hostname, pattern) {
			return true
		}
	}
	return false
}

// AddAllowlistDomain adds hostname to the list as a subdomain-wildcard
// entry ("*.hostname"). It is a no-op if the bare hostname or its wildcard
// form is already present (case-insensitive).
func AddAllowlistDomain(hostname, list string) string {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return list
	}
	patterns := SplitPatterns(list)
	for _, p := range patterns {
		lower := strings.ToLower(p)
		if lower == hostname || lower == "*."+hostname {
			return strings.Join(patterns, ", ")
		}
	}
	patterns = append(patterns, "*."+hostname)
	return strings.Join(patterns, ", ")
}

// RemoveAllowlistDomain removes both the bare hostname token and its
// "*.hostname" form from the list, preserving the order of the remaining
// tokens.
func RemoveAllowlistDomain(hostname, list string) string {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	patterns := SplitPatterns(list)
	kept := patterns[:0]
	for _, p := range patterns {
		lower := strings.ToLower(p)
		if lower == hostname || lower == "*."+hostname {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ", ")
}
