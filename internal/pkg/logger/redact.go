package logger

import "strings"

// RedactPhone masks a phone number for safe logging, keeping an optional
// leading + with the next two digits and the last four.
// "+5215512345678" → "+52***5678"
// Values with six or fewer digits are fully masked: "12345" → "***"
func RedactPhone(phone string) string {
	p := strings.TrimSpace(phone)
	prefix := ""
	if strings.HasPrefix(p, "+") {
		prefix = "+"
		p = p[1:]
	}
	if len(p) <= 6 {
		return "***"
	}
	return prefix + p[:2] + "***" + p[len(p)-4:]
}
