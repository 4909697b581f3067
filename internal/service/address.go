package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ExtractUserIDFromAddress reads the user id from alias+userId@domain or
// userId+alias@domain. The alias is matched case-insensitively.
func ExtractUserIDFromAddress(address, alias string) (string, error) {
	raw := strings.TrimSpace(address)
	if parsed, err := mail.ParseAddress(raw); err == nil {
		raw = parsed.Address
	}

	at := strings.LastIndex(raw, "@")
	if at <= 0 || at == len(raw)-1 {
		return "", fmt.Errorf("%w: malformed address %q", ErrUnidentifiedSender, address)
	}
	parts := strings.Split(raw[:at], "+")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: no plus tag in %q", ErrUnidentifiedSender, address)
	}

	var userID string
	switch {
	case strings.EqualFold(parts[0], alias):
		userID = parts[1]
	case strings.EqualFold(parts[1], alias):
		userID = parts[0]
	default:
		return "", fmt.Errorf("%w: alias %q not found in %q", ErrUnidentifiedSender, alias, address)
	}
	if !userIDPattern.MatchString(userID) {
		return "", fmt.Errorf("%w: invalid user id in %q", ErrUnidentifiedSender, address)
	}
	return userID, nil
}

// addressOf splits a header value into display name and lowercase address.
func addressOf(v string) (name, addr string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ""
	}
	if parsed, err := mail.ParseAddress(v); err == nil {
		return parsed.Name, strings.ToLower(parsed.Address)
	}
	return "", strings.ToLower(v)
}
