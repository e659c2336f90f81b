package application

import "strings"

// isBotUser checks if the login matches any configured bot username
// (case-insensitive). GitHub App logins ending in "[bot]" always count.
func isBotUser(login string, botUsernames []string) bool {
	if strings.HasSuffix(strings.ToLower(login), "[bot]") {
		return true
	}
	for _, bot := range botUsernames {
		if strings.EqualFold(login, bot) {
			return true
		}
	}
	return false
}
