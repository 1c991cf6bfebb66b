package domain

import (
	"bytes"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// FlexString decodes a JSON string or number into a string.
// The catalog is inconsistent about numeric fields such as record ids and years.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Book is a bibliographic record ("bib") from the external catalog.
type Book struct {
	ID                 FlexString     `json:"id"`
	Title              string         `json:"title,omitempty"`
	Author             string         `json:"author,omitempty"`
	Genre              string         `json:"genre,omitempty"`
	Kind               string         `json:"kind,omitempty"`
	Domain             string         `json:"domain,omitempty"`
	Language           string         `json:"language,omitempty"`
	PublicationYear    FlexString     `json:"publicationYear,omitempty"`
	Publisher          string         `json:"publisher,omitempty"`
	PlaceOfPublication string         `json:"placeOfPublication,omitempty"`
	IsbnIssn           string         `json:"isbnIssn,omitempty"`
	FormOfWork         string         `json:"formOfWork,omitempty"`
	Subject            string         `json:"subject,omitempty"`
	Rating             *RatingSummary `json:"rating,omitempty"`

	// Extra holds upstream fields not listed above, re-emitted verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// bookFields is Book without its JSON methods.
type bookFields Book

var bookKeys = []string{
	"id", "title", "author", "genre", "kind", "domain", "language",
	"publicationYear", "publisher", "placeOfPublication", "isbnIssn",
	"formOfWork", "subject", "rating",
}

// UnmarshalJSON implements json.Unmarshaler. Unknown fields land in Extra.
func (b *Book) UnmarshalJSON(data []byte) error {
	var fields bookFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range bookKeys {
		delete(all, k)
	}
	fields.Extra = nil
	if len(all) > 0 {
		fields.Extra = all
	}
	*b = Book(fields)
	return nil
}

// MarshalJSON implements json.Marshaler. Extra fields follow the known ones
// in key order.
func (b Book) MarshalJSON() ([]byte, error) {
	out, err := json.Marshal(bookFields(b))
	if err != nil || len(b.Extra) == 0 {
		return out, err
	}

	var buf bytes.Buffer
	buf.Write(out[:len(out)-1])
	for _, k := range slices.Sorted(maps.Keys(b.Extra)) {
		if slices.Contains(bookKeys, k) {
			continue
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(b.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PlaceholderTitle is shown for books whose details could not be fetched.
const PlaceholderTitle = "Book unavailable"

// PlaceholderBook stands in for a book that failed to resolve in a listing.
func PlaceholderBook(bookID string) Book {
	return Book{ID: FlexString(bookID), Title: PlaceholderTitle}
}

// Year returns the four digit publication year, or 0 when absent or unparseable.
// Catalog years look like "2005", "[1999]" or "cop. 2012".
func (b Book) Year() int {
	digits := 0
	start := -1
	s := string(b.PublicationYear)
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if digits == 0 {
				start = i
			}
			digits++
			if digits == 4 {
				y, err := strconv.Atoi(s[start : start+4])
				if err != nil {
					return 0
				}
				return y
			}
			continue
		}
		digits = 0
	}
	return 0
}

// Decade returns the publication decade label, e.g. "1990s", or "" when unknown.
func (b Book) Decade() string {
	y := b.Year()
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y/10*10) + "s"
}

// RatingSummary aggregates the reviews of one book.
// Average is nil when Total is zero; callers must not read that as a rating of 0.
type RatingSummary struct {
	Average *float64 `json:"average"`
	Total   int      `json:"total"`
}

// HasRating reports whether any review contributed to the summary.
func (r RatingSummary) HasRating() bool {
	return r.Total > 0 && r.Average != nil
}

// SearchResult is one page of catalog search results.
type SearchResult struct {
	Bibs     []Book `json:"bibs"`
	NextPage string `json:"nextPage,omitempty"`
}

// CategoryType is a recommendation dimension.
type CategoryType string

// Recommendation dimensions.
const (
	CategoryGenre    CategoryType = "genre"
	CategoryAuthor   CategoryType = "author"
	CategoryLanguage CategoryType = "language"
)

// ParseCategoryType returns the dimension named by s.
func ParseCategoryType(s string) (CategoryType, bool) {
	switch CategoryType(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryGenre:
		return CategoryGenre, true
	case CategoryAuthor:
		return CategoryAuthor, true
	case CategoryLanguage:
		return CategoryLanguage, true
	}
	return "", false
}

// Value returns the book's field for this dimension.
func (c CategoryType) Value(b Book) string {
	switch c {
	case CategoryGenre:
		return b.Genre
	case CategoryAuthor:
		return b.Author
	case CategoryLanguage:
		return b.Language
	}
	return ""
}
