package domain

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_DecodesNumericFields(t *testing.T) {
	var b Book
	require.NoError(t, json.Unmarshal([]byte(`{"id":12345,"title":"Solaris","publicationYear":1961}`), &b))
	assert.Equal(t, FlexString("12345"), b.ID)
	assert.Equal(t, 1961, b.Year())
}

func TestBook_MarshalOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Book{ID: "12345", Title: "Test Book"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"12345","title":"Test Book"}`, string(data))
}

func TestBook_KeepsUnknownFields(t *testing.T) {
	raw := `{"id":"12345","title":"Test Book","marc":{"leader":"x"},"zones":[1,2]}`

	var b Book
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	assert.Equal(t, "Test Book", b.Title)
	assert.Len(t, b.Extra, 2)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(data))
}

func TestBook_Decade(t *testing.T) {
	tests := map[string]string{
		"2005":      "2000s",
		"[1999]":    "1990s",
		"cop. 2012": "2010s",
		"19--":      "",
		"":          "",
	}
	for year, want := range tests {
		assert.Equal(t, want, Book{PublicationYear: FlexString(year)}.Decade(), year)
	}
}

func TestParseCategoryType(t *testing.T) {
	for _, s := range []string{"genre", "author", "language", " Genre "} {
		_, ok := ParseCategoryType(s)
		assert.True(t, ok, s)
	}
	_, ok := ParseCategoryType("decade")
	assert.False(t, ok)
}

func TestOwnership_ExchangeFlag(t *testing.T) {
	o := &BookOwnership{ID: "own-1", UserID: "alice", BookID: "00000000012345"}
	assert.False(t, o.ForExchange())

	o.SetForExchange(true)
	assert.True(t, o.ForExchange())
	require.NoError(t, o.Validate())

	o.TransferTo("bob", o.UpdatedAt)
	assert.Equal(t, "bob", o.UserID)
	assert.False(t, o.ForExchange())
}

func TestValidate_RequiresPaddedBookID(t *testing.T) {
	r := &Review{ID: "rev-1", UserID: "alice", BookID: "12345", Rating: 8}
	assert.Error(t, r.Validate())

	r.BookID = "00000000012345"
	assert.NoError(t, r.Validate())

	r.Rating = 11
	assert.Error(t, r.Validate())
}

func TestPairKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
}
