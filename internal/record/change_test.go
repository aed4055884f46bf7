package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var widget = NewIdentity("Widget", "widget", "abcd")

func TestDifference(t *testing.T) {
	tests := []struct {
		name    string
		current *Attributes
		next    *Attributes
		want    []Change
	}{
		{
			name:    "from_nothing",
			current: NewAttributes(),
			next:    AttributesOf("color", "red", "size", 1),
			want:    []Change{NewChange("color", nil, "red"), NewChange("size", nil, 1)},
		},
		{
			name:    "nil_current",
			current: nil,
			next:    AttributesOf("color", "red"),
			want:    []Change{NewChange("color", nil, "red")},
		},
		{
			name:    "changed_values",
			current: AttributesOf("color", "red", "size", 1),
			next:    AttributesOf("color", "blue", "size", 2),
			want:    []Change{NewChange("color", "red", "blue"), NewChange("size", 1, 2)},
		},
		{
			name:    "unchanged_key_omitted",
			current: AttributesOf("color", "red", "size", 1),
			next:    AttributesOf("color", "red", "size", 2),
			want:    []Change{NewChange("size", 1, 2)},
		},
		{
			name:    "deleted_key_not_reported",
			current: AttributesOf("color", "red", "size", 1),
			next:    AttributesOf("color", "red"),
			want:    nil,
		},
		{
			name:    "numeric_types_compare_by_value",
			current: AttributesOf("size", int64(3)),
			next:    AttributesOf("size", 3),
			want:    nil,
		},
		{
			name:    "nil_to_nil_is_no_change",
			current: NewAttributes(),
			next:    AttributesOf("note", nil),
			want:    nil,
		},
		{
			name:    "nested_change",
			current: AttributesOf("dims", map[string]any{"h": 1, "w": 2}),
			next:    AttributesOf("dims", AttributesOf("h", 1, "w", 3)),
			want: []Change{NewChange("dims",
				map[string]any{"h": 1, "w": 2},
				AttributesOf("h", 1, "w", 3),
			)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Difference(widget, tt.current, tt.next)
			assert.Equal(t, widget, got.Object)
			require.Equal(t, len(tt.want), got.Len(), "changes: %+v", got.Changes())
			for i, c := range got.Changes() {
				assert.True(t, c.Equal(tt.want[i]), "change %d: got %+v want %+v", i, c, tt.want[i])
			}
		})
	}
}

func TestChangeSetAddOverwritesByField(t *testing.T) {
	cs := NewChangeSet(widget)
	cs.Add(NewChange("color", nil, "red"))
	cs.Add(NewChange("size", nil, 1))
	cs.Add(NewChange("color", "red", "blue"))

	assert.Equal(t, 2, cs.Len())
	assert.Equal(t, []string{"color", "size"}, cs.Fields())
	c, ok := cs.Get("color")
	require.True(t, ok)
	assert.Equal(t, "blue", c.New)
}

func TestChangeSetCoversIsOneDirectional(t *testing.T) {
	small := NewChangeSet(widget)
	small.Add(NewChange("color", "red", "blue"))

	big := NewChangeSet(widget)
	big.Add(NewChange("color", "red", "blue"))
	big.Add(NewChange("size", 1, 2))

	assert.True(t, small.Covers(big))
	assert.False(t, big.Covers(small))
	assert.False(t, small.Equal(big))
	assert.False(t, big.Equal(small))
}

func TestChangeSetEqual(t *testing.T) {
	a := NewChangeSet(widget)
	a.Add(NewChange("size", nil, 3))
	a.Add(NewChange("color", nil, "orange"))

	b := NewChangeSet(widget)
	b.Add(NewChange("color", nil, "orange"))
	b.Add(NewChange("size", nil, int64(3)))
	assert.True(t, a.Equal(b), "insertion order is irrelevant")

	other := NewChangeSet(NewIdentity("Widget", "widget", "other"))
	other.Add(NewChange("color", nil, "orange"))
	other.Add(NewChange("size", nil, 3))
	assert.False(t, a.Equal(other), "object identity must match")

	c := NewChangeSet(widget)
	c.Add(NewChange("color", nil, "orange"))
	c.Add(Change{Field: "size", New: 3, Kind: OldNew, Complete: false})
	assert.False(t, a.Equal(c), "complete flag is part of equality")
}
