package auth

import (
	"regexp"
	"strings"
)

var (
	usernameSeparators = regexp.MustCompile(`[@.+]`)
	underscoreRuns     = regexp.MustCompile(`__+`)
)

// DeriveUsername builds the backend username for a new account from its
// email: lowercased, with @ . + turned into _ and runs of _ collapsed.
func DeriveUsername(email string) string {
	u := usernameSeparators.ReplaceAllString(strings.ToLower(email), "_")
	return underscoreRuns.ReplaceAllString(u, "_")
}
