package objectstore

import "strings"

// DefaultListLimit and MaxListLimit bound the page size of a listing.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// KeyPage is the result of ListKeys.
type KeyPage struct {
	Keys      []string
	Prefixes  []string
	Truncated bool
	Cursor    string
}

// ListKeys pages through sorted keys the way an S3-style listing does:
// keys outside Prefix are skipped, keys sharing a segment up to Delimiter
// collapse into one common prefix, and both objects and prefixes count
// toward Limit. The cursor is the last key or prefix returned and is only
// set when the page is truncated.
func ListKeys(sorted []string, opts ListOptions) KeyPage {
	limit := opts.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		page KeyPage
		last string
		seen = make(map[string]bool)
	)
	for _, k := range sorted {
		if !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		if opts.Cursor != "" && k <= opts.Cursor {
			continue
		}

		if opts.Delimiter != "" {
			rest := k[len(opts.Prefix):]
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				p := opts.Prefix + rest[:i+len(opts.Delimiter)]
				if seen[p] || (opts.Cursor != "" && p <= opts.Cursor) {
					continue
				}
				if len(page.Keys)+len(page.Prefixes) == limit {
					page.Truncated = true
					break
				}
				seen[p] = true
				page.Prefixes = append(page.Prefixes, p)
				last = p
				continue
			}
		}

		if len(page.Keys)+len(page.Prefixes) == limit {
			page.Truncated = true
			break
		}
		page.Keys = append(page.Keys, k)
		last = k
	}

	if page.Truncated {
		page.Cursor = last
	}
	return page
}
