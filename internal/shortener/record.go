package shortener

import (
	"regexp"
	"time"
)

// CodeLength is the number of lowercase hex characters in a short code.
const CodeLength = 10

var codePattern = regexp.MustCompile(`^[0-9a-f]{10}$`)

// Code is a system-generated short code.
type Code string

// Valid reports whether c has the shape of a generated code.
func (c Code) Valid() bool {
	return codePattern.MatchString(string(c))
}

// URLKey identifies a canonical URL after normalization. At most one record
// exists per key.
type URLKey string

// Record maps a short code to a canonical URL and its preview metadata.
type Record struct {
	Code               Code
	CanonicalURL       string
	URLKey             URLKey
	Title              string
	Description        string
	ImageURL           string
	ImageScreenshotURL string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RecordUpdate holds the fields overwritten when a known URL is registered again.
type RecordUpdate struct {
	Title              string
	Description        string
	ImageURL           string
	ImageScreenshotURL string
	UpdatedAt          time.Time
}

// Apply overwrites the mutable fields of r. Code and CanonicalURL never change.
func (r *Record) Apply(u RecordUpdate) {
	r.Title = u.Title
	r.Description = u.Description
	r.ImageURL = u.ImageURL
	r.ImageScreenshotURL = u.ImageScreenshotURL
	r.UpdatedAt = u.UpdatedAt
}
