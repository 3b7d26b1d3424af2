package e2e

import "regexp"

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// StripANSI removes ANSI escape codes from s
func StripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}
