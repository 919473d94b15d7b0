package iconcache

// IsValid reports whether a stored entry may still be served against the URL
// the caller currently knows for it.
//
// An empty currentURL means the caller opted out of freshness checking and the
// entry is served as-is. Otherwise the comparison is exact string equality
// with the URL recorded at write time; no normalization is applied, so any
// change to the origin URL invalidates the entry.
func IsValid(entry *Entry, currentURL string) bool {
	if currentURL == "" {
		return true
	}
	return entry.SourceURL == currentURL
}
