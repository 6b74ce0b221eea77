package issues

// MarkNew returns a copy of current with IsNew set: an issue is new unless
// its fingerprint appears in baseline. A nil or empty baseline marks every
// issue new. The result depends only on the inputs.
func MarkNew(current, baseline []Issue) []Issue {
	known := make(map[string]struct{}, len(baseline))
	for _, b := range baseline {
		known[b.Fingerprint] = struct{}{}
	}
	out := make([]Issue, len(current))
	for i, issue := range current {
		_, seen := known[issue.Fingerprint]
		issue.IsNew = !seen
		out[i] = issue
	}
	return out
}

// Unresolved drops RESOLVED issues, leaving the set a later analysis is diffed against.
func Unresolved(all []Issue) []Issue {
	out := make([]Issue, 0, len(all))
	for _, i := range all {
		if i.Status != StatusResolved {
			out = append(out, i)
		}
	}
	return out
}
