package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{Page: 0, PerPage: 0, SortDir: "sideways"}
	p.Normalize()
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, "asc", p.SortDir)

	p = Pagination{Page: 3, PerPage: 5000, SortDir: "desc"}
	p.Normalize()
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, "desc", p.SortDir)
	assert.Equal(t, 2*MaxPerPage, p.Offset())
}

func TestNewPage(t *testing.T) {
	p := Pagination{Page: 1, PerPage: 10}
	p.Normalize()

	page := NewPage([]int{1, 2, 3}, 25, p)
	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.LastPage)
	assert.Equal(t, 1, page.CurrentPage)
	assert.True(t, page.HasNext())
	assert.Equal(t, 2, *page.NextPage)

	// Last page has no next.
	p.Page = 3
	page = NewPage([]int{1, 2, 3, 4, 5}, 25, p)
	assert.False(t, page.HasNext())
	assert.Nil(t, page.NextPage)

	// Empty result still reports one page and a non-nil items slice.
	page = NewPage[int](nil, 0, Pagination{Page: 1, PerPage: 10})
	assert.NotNil(t, page.Items)
	assert.Equal(t, 1, page.LastPage)
	assert.False(t, page.HasNext())
}
