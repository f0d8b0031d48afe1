package paginate

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestPaginate_Windows(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	first := Paginate(items, 5, 0)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, first.Items)
	assert.False(t, first.HasPrev)
	assert.True(t, first.HasNext)
	assert.Equal(t, 2, first.Pages)

	second := Paginate(items, 5, 1)
	assert.Equal(t, []int{6, 7}, second.Items)
	assert.True(t, second.HasPrev)
	assert.False(t, second.HasNext)
}

func TestPaginate_ClampsOutOfRange(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}

	high := Paginate(items, 5, 42)
	assert.Equal(t, 1, high.Index)
	assert.Equal(t, []string{"f"}, high.Items)

	low := Paginate(items, 5, -3)
	assert.Equal(t, 0, low.Index)
	assert.Len(t, low.Items, 5)
}

func TestPaginate_EmptySource(t *testing.T) {
	page := Paginate([]string{}, 5, 3)

	assert.True(t, page.Empty())
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasPrev)
	assert.False(t, page.HasNext)
	assert.Equal(t, 0, page.Pages)
}

func TestPaginate_DoesNotAliasSource(t *testing.T) {
	items := []int{1, 2, 3}
	page := Paginate(items, 5, 0)
	page.Items[0] = 99
	assert.Equal(t, 1, items[0])
}

func TestProperty_PagesConcatenateToSource(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("all pages concatenated reproduce the source", prop.ForAll(
		func(items []int, pageSize int) bool {
			var joined []int
			pages := PageCount(len(items), pageSize)
			for k := 0; k < pages; k++ {
				joined = append(joined, Paginate(items, pageSize, k).Items...)
			}
			if len(items) == 0 {
				return len(joined) == 0
			}
			return reflect.DeepEqual(items, joined)
		},
		gen.SliceOf(gen.Int()),
		gen.IntRange(1, 12),
	))

	properties.Property("repeated pagination is deterministic", prop.ForAll(
		func(items []int, index int) bool {
			return reflect.DeepEqual(Paginate(items, DefaultPageSize, index), Paginate(items, DefaultPageSize, index))
		},
		gen.SliceOf(gen.Int()),
		gen.IntRange(-3, 10),
	))

	properties.TestingRun(t)
}
