package content

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"clubdesk/internal/models"
)

const MaxBodyLength = 3000

var (
	policy        = bluemonday.UGCPolicy()
	strictPolicy  = bluemonday.StrictPolicy()
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	markdown      = goldmark.New()
)

// NormalizeBody trims and validates a message body. The returned string is
// what gets persisted. Empty-after-trim and oversized bodies are rejected
// with a ValidationError naming the constraint.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", &models.ValidationError{Field: "body", Constraint: "must not be empty"}
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return "", &models.ValidationError{Field: "body", Constraint: "must be at most 3000 characters"}
	}

	// Sanitizing can swallow the whole body (markup-only input), so the
	// emptiness check runs again on the result.
	body = strings.TrimSpace(strictPolicy.Sanitize(body))
	if body == "" {
		return "", &models.ValidationError{Field: "body", Constraint: "must not be empty"}
	}
	return body, nil
}

// RenderBody converts a stored message body to sanitized HTML for delivery
// payloads. Renders markdown, then strips anything the UGC policy rejects.
func RenderBody(body string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return policy.Sanitize(body)
	}
	return policy.Sanitize(strings.TrimSpace(buf.String()))
}

// ValidateUsername checks length and the allowed character set
// (letters, digits, underscore).
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 30 {
		return errors.New("username must be 3-30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username can only use letters, numbers, and underscore")
	}
	return nil
}
