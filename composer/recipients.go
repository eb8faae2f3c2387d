package composer

import (
	"strings"
	"unicode"
)

// ParseRecipients splits raw recipient text on any run of commas or
// whitespace and returns the non-empty identifiers in input order.
func ParseRecipients(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	recipients := make([]string, 0, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			recipients = append(recipients, field)
		}
	}
	return recipients
}
