package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/paket", nil)
	p, err := ExtractPagination(r)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestExtractPaginationOffset(t *testing.T) {
	r := httptest.NewRequest("GET", "/paket?page=3&limit=25", nil)
	p, err := ExtractPagination(r)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Offset)
}

func TestExtractPaginationRejectsInvalid(t *testing.T) {
	r := httptest.NewRequest("GET", "/paket?page=0", nil)
	_, err := ExtractPagination(r)
	require.Error(t, err)

	r = httptest.NewRequest("GET", "/paket?limit=abc", nil)
	_, err = ExtractPagination(r)
	require.Error(t, err)
}

func TestSetPaginationStats(t *testing.T) {
	p := PaginationParams{Page: 1, Limit: 10}
	p.SetPaginationStats(25)
	assert.Equal(t, 25, p.TotalRecords)
	assert.Equal(t, 3, p.TotalPages)

	p.SetPaginationStats(0)
	assert.Equal(t, 0, p.TotalPages)
}
