package main

import "unicode"

// User ids are opaque platform identifiers; in practice numeric strings, but
// letters, dashes and underscores are tolerated for test and dev clients.
func isValidUserID(userID string) bool {
	if userID == "" || len(userID) > 64 {
		return false
	}

	for _, r := range userID {
		if r == '-' || r == '_' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return false
	}

	return true
}
