package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefListWithout(t *testing.T) {
	refs := RefList{7, 8, 7, 9}

	out := refs.Without(refs.Index(7))

	assert.Equal(t, RefList{8, 7, 9}, out)
	assert.Equal(t, RefList{7, 8, 7, 9}, refs, "original list must not change")
	assert.Equal(t, -1, out.Index(42))
}

func TestRefListJSONKeepsLargeIDs(t *testing.T) {
	refs := RefList{1730000000000000001, 2}

	data, err := json.Marshal(refs)
	require.NoError(t, err)
	assert.JSONEq(t, `["1730000000000000001","2"]`, string(data))

	var back RefList
	require.NoError(t, json.Unmarshal([]byte(`["1730000000000000001", 2]`), &back))
	assert.Equal(t, refs, back)
}

func TestRefListColumn(t *testing.T) {
	v, err := RefList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = RefList{1730000000000000001, 5}.Value()
	require.NoError(t, err)

	var scanned RefList
	require.NoError(t, scanned.Scan([]byte(v.(string))))
	assert.Equal(t, RefList{1730000000000000001, 5}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	assert.Error(t, scanned.Scan(12))
}

func TestLineItemsColumn(t *testing.T) {
	items := LineItems{{"sku": "A-1", "qty": float64(2)}}
	v, err := items.Value()
	require.NoError(t, err)

	var scanned LineItems
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, items, scanned)
}

func TestValidRating(t *testing.T) {
	assert.True(t, ValidRating(0))
	assert.True(t, ValidRating(5))
	assert.True(t, ValidRating(4.5))
	assert.False(t, ValidRating(5.5))
	assert.False(t, ValidRating(-1))
}
