package utils

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

func TestParsePage(t *testing.T) {
	cases := []struct {
		query string
		want  store.Page
	}{
		{"", store.Page{Number: 1, Limit: 20}},
		{"page=3&limit=5", store.Page{Number: 3, Limit: 5}},
		{"page=0&limit=0", store.Page{Number: 1, Limit: 1}},
		{"page=-2&limit=500", store.Page{Number: 1, Limit: 100}},
		{"page=abc&limit=xyz", store.Page{Number: 1, Limit: 20}},
	}
	for _, tc := range cases {
		q, err := url.ParseQuery(tc.query)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ParsePage(q), tc.query)
	}
}

func TestParseSort(t *testing.T) {
	q, _ := url.ParseQuery("sortBy=username&sortOrder=asc")
	assert.Equal(t, store.Sort{Field: "username", Desc: false}, ParseSort(q, "createdAt"))
	assert.Equal(t, store.Sort{Field: "createdAt", Desc: true}, ParseSort(url.Values{}, "createdAt"))
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2025-06-15T09:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 7, 30, 0, 0, time.UTC), got)

	got, err = ParseTime("2025-06-15T09:30:00.250Z")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))

	got, err = ParseTime("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseTime("tomorrow")
	assert.ErrorIs(t, err, ErrInvalidTime)
}
