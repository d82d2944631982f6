package media

import (
	"regexp"
	"strings"

	"github.com/mediabot/mediabot/models"
	"github.com/pkg/errors"
)

var ErrInvalidQuery = errors.New("invalid search query")

const (
	wordBoundary = `(\b|[\.\+\-_])`
	wordGap      = `.*[\s\.\+\-_()]`
)

// Query selects media entries by name, optionally caption, and kind
type Query struct {
	Pattern      string
	Kind         string
	MatchCaption bool

	regex *regexp.Regexp
}

// BuildPattern turns user input into a regular expression. A single word must sit between
// word boundaries or separators, multiple words may be separated by anything ending in a
// separator, so "foo bar" matches "foo.bar" and "foo (bar)".
func BuildPattern(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, " ") {
		return wordBoundary + text + wordBoundary
	}
	return strings.Replace(text, " ", wordGap, -1)
}

// NewQuery compiles text. Input that is not a valid expression yields ErrInvalidQuery.
func NewQuery(text string, kind string, matchCaption bool) (Query, error) {
	pattern := BuildPattern(text)
	regex, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Query{}, errors.Wrap(ErrInvalidQuery, err.Error())
	}
	return Query{Pattern: pattern, Kind: kind, MatchCaption: matchCaption, regex: regex}, nil
}

// Matches evaluates the query against entry the way the database does
func (q Query) Matches(entry models.MediaEntry) bool {
	if q.regex == nil {
		return false
	}
	if q.Kind != "" && entry.Kind != q.Kind {
		return false
	}
	if q.regex.MatchString(entry.Name) {
		return true
	}
	return q.MatchCaption && q.regex.MatchString(entry.Caption)
}

var nameSeparators = strings.NewReplacer("_", " ", "-", " ", ".", " ", "+", " ")

// NormalizeName replaces separators with spaces so names read like words
func NormalizeName(name string) string {
	return nameSeparators.Replace(name)
}
