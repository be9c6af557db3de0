package lifecycle

import (
	"regexp"
	"strings"
)

// Accepted group reference shapes: handle, canonical deep link, invite
// link.
var groupRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^@[a-zA-Z0-9_]{5,32}$`),
	regexp.MustCompile(`^https://t\.me/[a-zA-Z0-9_]{5,32}$`),
	regexp.MustCompile(`^https://t\.me/joinchat/[a-zA-Z0-9_-]+$`),
}

// ValidateGroupRef checks input against the accepted reference shapes.
func ValidateGroupRef(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return &ValidationError{Field: "group_link", Reason: "reference is empty"}
	}
	for _, p := range groupRefPatterns {
		if p.MatchString(input) {
			return nil
		}
	}
	return &ValidationError{Field: "group_link", Reason: "unrecognized group reference format"}
}
