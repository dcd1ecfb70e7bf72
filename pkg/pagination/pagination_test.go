package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest_Defaults(t *testing.T) {
	p := FromRequest(httptest.NewRequest("GET", "/api/v1/listings", nil))
	assert.Equal(t, Params{Page: 1, Limit: DefaultLimit, Offset: 0}, p)
}

func TestFromRequest_Values(t *testing.T) {
	p := FromRequest(httptest.NewRequest("GET", "/api/v1/listings?page=3&limit=4", nil))
	assert.Equal(t, Params{Page: 3, Limit: 4, Offset: 8}, p)
}

func TestFromRequest_InvalidFallsBack(t *testing.T) {
	p := FromRequest(httptest.NewRequest("GET", "/?page=-2&limit=abc", nil))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
}

func TestNew_CapsLimit(t *testing.T) {
	assert.Equal(t, MaxLimit, New(1, 5000).Limit)
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 4, 7},
		{5, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.limit), "total=%d limit=%d", tt.total, tt.limit)
	}
}
