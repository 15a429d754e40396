package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type keyed struct {
	key   string
	value int
}

func keyOf(k keyed) string { return k.key }

func TestDedupe(t *testing.T) {
	tests := []struct {
		name        string
		input       []keyed
		seen        map[string]struct{}
		wantKeys    []string
		wantRemoved int
	}{
		{
			name:        "no duplicates",
			input:       []keyed{{"a", 1}, {"b", 2}, {"c", 3}},
			wantKeys:    []string{"a", "b", "c"},
			wantRemoved: 0,
		},
		{
			name:        "drops repeats keeping first occurrence",
			input:       []keyed{{"a", 1}, {"b", 2}, {"a", 3}, {"b", 4}, {"c", 5}},
			wantKeys:    []string{"a", "b", "c"},
			wantRemoved: 2,
		},
		{
			name:        "pre-seeded keys are duplicates",
			input:       []keyed{{"a", 1}, {"b", 2}},
			seen:        map[string]struct{}{"a": {}},
			wantKeys:    []string{"b"},
			wantRemoved: 1,
		},
		{
			name:        "empty keys are never deduplicated",
			input:       []keyed{{"", 1}, {"", 2}, {"a", 3}, {"", 4}},
			wantKeys:    []string{"", "", "a", ""},
			wantRemoved: 0,
		},
		{
			name:        "empty input",
			input:       nil,
			wantKeys:    []string{},
			wantRemoved: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, removed := Dedupe(tt.input, keyOf, tt.seen)

			keys := make([]string, 0, len(kept))
			for _, item := range kept {
				keys = append(keys, item.key)
			}
			assert.Equal(t, tt.wantKeys, keys)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.LessOrEqual(t, len(kept), len(tt.input))
		})
	}
}

func TestDedupeFixedPoint(t *testing.T) {
	input := []keyed{{"a", 1}, {"b", 2}, {"a", 3}, {"", 4}, {"", 5}}

	once, _ := Dedupe(input, keyOf, nil)
	twice, removed := Dedupe(once, keyOf, nil)

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, removed)
}

func TestDedupeFirstOccurrenceWins(t *testing.T) {
	input := []keyed{{"a", 1}, {"a", 99}}

	kept, removed := Dedupe(input, keyOf, nil)

	assert.Equal(t, []keyed{{"a", 1}}, kept)
	assert.Equal(t, 1, removed)
}

func TestDedupeUpdatesSeenInPlace(t *testing.T) {
	seen := map[string]struct{}{}
	Dedupe([]keyed{{"a", 1}}, keyOf, seen)

	kept, removed := Dedupe([]keyed{{"a", 2}, {"b", 3}}, keyOf, seen)
	assert.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].key)
	assert.Equal(t, 1, removed)
}
