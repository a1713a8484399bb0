package slogx

import "strings"

// MaskEmail keeps the first character of the local part and the full domain
// so audit logs stay correlatable without storing the full address.
// "operator@example.com" becomes "o***@example.com".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// TruncateToken returns at most the first 8 characters of a credential,
// enough to correlate repeated failures in logs without leaking the value.
func TruncateToken(token string) string {
	const keep = 8
	if len(token) <= keep {
		return "***"
	}
	return token[:keep] + "..."
}
