package watcher

import "strings"

// Diff returns the part of current that changed since last. ok is false when the two
// are identical. When current only appends to last the appended text is returned;
// otherwise everything from the first differing line onward.
func Diff(last, current string) (changed string, ok bool) {
	if last == current {
		return "", false
	}
	if strings.HasPrefix(current, last) {
		return current[len(last):], true
	}

	lastLines := strings.Split(last, "\n")
	currentLines := strings.Split(current, "\n")

	i := 0
	for i < len(lastLines) && i < len(currentLines) && lastLines[i] == currentLines[i] {
		i++
	}
	// Lines were only removed from the end
	if i >= len(currentLines) {
		return "", true
	}
	return strings.Join(currentLines[i:], "\n"), true
}
