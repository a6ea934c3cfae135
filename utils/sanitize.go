package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips all markup from user text. The API stores plain text and
// clients escape on render, so entities produced by the policy are decoded again.
func Sanitize(input string) string {
	return html.UnescapeString(sanitizer.Sanitize(input))
}
