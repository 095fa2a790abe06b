package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/records"
	"github.com/hyperjump/kensaku/internal/vector"
)

func frag(text string) models.Fragment {
	return models.Fragment{Text: text, SourceID: "test.txt"}
}

func newStore(t *testing.T, dim int) *Store {
	t.Helper()
	s, err := New(dim, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return s
}

func TestNew_InvalidDimension(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, vector.ErrInvalidDimension)
}

func TestSearch_NearestFirst(t *testing.T) {
	s := newStore(t, 2)
	for _, in := range []struct {
		id  string
		vec []float32
	}{
		{"a", []float32{0, 0}},
		{"b", []float32{1, 0}},
		{"c", []float32{10, 10}},
	} {
		_, err := s.Insert(in.id, in.vec, frag(in.id))
		require.NoError(t, err)
	}

	hits, err := s.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, 0.0, hits[0].Score)
	assert.Equal(t, "b", hits[1].ID)
	assert.Equal(t, 1.0, hits[1].Score)
	assert.Equal(t, "a", hits[0].Fragment.Text)
}

func TestSearch_EmptyStore(t *testing.T) {
	s := newStore(t, 4)
	hits, err := s.Search([]float32{0, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	s := newStore(t, 2)
	_, err := s.Insert("a", []float32{1, 2}, frag("a"))
	require.NoError(t, err)

	_, err = s.Search([]float32{1, 2, 3}, 1)
	var dm *vector.ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)
}

func TestConcurrentInserts(t *testing.T) {
	s := newStore(t, 3)
	const n = 100
	const workers = 8

	var wg sync.WaitGroup
	slots := make([]int, n)
	errs := make([]error, n)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < n; i += workers {
				slots[i], errs[i] = s.Insert(fmt.Sprintf("id-%d", i), []float32{float32(i), 0, 1}, frag("x"))
			}
		}(w)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "insert %d", i)
	}
	assert.Equal(t, n, s.Count())

	seen := make(map[int]string, n)
	for i, slot := range slots {
		id := fmt.Sprintf("id-%d", i)
		prev, dup := seen[slot]
		assert.False(t, dup, "slot %d shared by %s and %s", slot, prev, id)
		seen[slot] = id
	}
	for slot := 0; slot < n; slot++ {
		rec, err := s.records.Get(slot)
		require.NoError(t, err)
		assert.Equal(t, seen[slot], rec.ID)
	}
}

func TestConcurrentInsertAndSearch(t *testing.T) {
	s := newStore(t, 2)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := s.Insert(fmt.Sprintf("id-%d", i), []float32{float32(i), float32(i)}, frag("x"))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			hits, err := s.Search([]float32{0, 0}, 3)
			assert.NoError(t, err)
			assert.LessOrEqual(t, len(hits), 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Count())
}

func TestCountMatchesSuccessfulInserts(t *testing.T) {
	s := newStore(t, 2)
	inputs := []struct {
		id  string
		vec []float32
		ok  bool
	}{
		{"a", []float32{1, 1}, true},
		{"b", []float32{1}, false},
		{"a", []float32{2, 2}, false},
		{"", []float32{2, 2}, false},
		{"c", []float32{3, 3}, true},
	}
	want := 0
	for _, in := range inputs {
		_, err := s.Insert(in.id, in.vec, frag(in.id))
		if in.ok {
			require.NoError(t, err)
			want++
		} else {
			require.Error(t, err)
		}
		assert.Equal(t, want, s.Count())
		assert.Equal(t, s.index.Len(), s.records.Len())
	}
}

func TestDimensionEnforcement(t *testing.T) {
	for _, dim := range []int{1, 2, 3, 8, 384} {
		s := newStore(t, dim)
		for _, length := range []int{0, dim - 1, dim + 1, 2 * dim} {
			if length == dim {
				continue
			}
			vec := make([]float32, length)

			_, err := s.Insert("x", vec, frag("x"))
			var dm *vector.ErrDimensionMismatch
			assert.ErrorAs(t, err, &dm, "insert dim=%d len=%d", dim, length)

			_, err = s.Search(vec, 1)
			assert.ErrorAs(t, err, &dm, "search dim=%d len=%d", dim, length)
		}
		assert.Equal(t, 0, s.Count())
	}
}

func TestNonFiniteComponentsRejected(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	tests := []struct {
		name string
		vec  []float32
	}{
		{"nan", []float32{nan, 0}},
		{"positive inf", []float32{0, inf}},
		{"negative inf", []float32{-inf, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, 2)
			_, err := s.Insert("bad", tt.vec, frag("bad"))
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, 0, s.Count())

			_, err = s.Search(tt.vec, 1)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestTopKResultsArePrefixes(t *testing.T) {
	s := newStore(t, 2)
	_, err := s.Insert("near", []float32{0, 0}, frag("near"))
	require.NoError(t, err)
	_, err = s.Insert("nan", []float32{float32(math.NaN()), 0}, frag("nan"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.Insert("far", []float32{5, 5}, frag("far"))
	require.NoError(t, err)

	full, err := s.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, full, 2)
	for k := 1; k <= len(full); k++ {
		hits, err := s.Search([]float32{0, 0}, k)
		require.NoError(t, err)
		assert.Equal(t, full[:k], hits, "k=%d", k)
	}
	assert.Equal(t, "near", full[0].ID)
	assert.Equal(t, 50.0, full[1].Score)
}

func TestDuplicateRejectionLeavesStateUnchanged(t *testing.T) {
	s := newStore(t, 2)
	_, err := s.Insert("same", []float32{1, 0}, frag("first"))
	require.NoError(t, err)

	_, err = s.Insert("same", []float32{0, 1}, frag("second"))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Contains(t, err.Error(), "slot 0")
	assert.Equal(t, 1, s.Count())

	hits, err := s.Search([]float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "first", hits[0].Fragment.Text)
	assert.Equal(t, 2.0, hits[0].Score)
}

func TestSearch_Deterministic(t *testing.T) {
	s := newStore(t, 2)
	for i := 0; i < 20; i++ {
		// Four groups of identical vectors produce many ties.
		_, err := s.Insert(fmt.Sprintf("id-%d", i), []float32{float32(i % 4), 0}, frag("x"))
		require.NoError(t, err)
	}
	first, err := s.Search([]float32{1, 0}, 7)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Search([]float32{1, 0}, 7)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		assert.True(t, prev.Score < cur.Score || (prev.Score == cur.Score && prev.Slot < cur.Slot))
	}
}

func TestSearch_TopKBoundary(t *testing.T) {
	s := newStore(t, 1)
	for i := 0; i < 3; i++ {
		_, err := s.Insert(fmt.Sprintf("id-%d", i), []float32{float32(i)}, frag("x"))
		require.NoError(t, err)
	}
	hits, err := s.Search([]float32{0}, 50)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearch_NonPositiveTopK(t *testing.T) {
	s := newStore(t, 1)
	for _, k := range []int{0, -1} {
		_, err := s.Search([]float32{0}, k)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestInsert_EmptyID(t *testing.T) {
	s := newStore(t, 1)
	_, err := s.Insert("", []float32{0}, frag("x"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInsert_CopiesEmbedding(t *testing.T) {
	s := newStore(t, 2)
	vec := []float32{1, 1}
	_, err := s.Insert("a", vec, frag("a"))
	require.NoError(t, err)
	vec[0] = 50

	hits, err := s.Search([]float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, hits[0].Score)
}

func TestInsert_RollsBackWhenRecordPutFails(t *testing.T) {
	s := newStore(t, 1)
	// A record at slot 0 with no vector forces the paired Put to collide.
	require.NoError(t, s.records.Put(0, records.Record{ID: "orphan"}))

	_, err := s.Insert("a", []float32{1}, frag("a"))
	assert.ErrorIs(t, err, ErrInternalInconsistency)
	assert.ErrorIs(t, err, records.ErrDuplicateSlot)
	assert.Equal(t, 0, s.index.Len())
}

func TestSearch_UnresolvedSlotIsHardFailure(t *testing.T) {
	s := newStore(t, 1)
	_, err := s.index.Insert([]float32{0})
	require.NoError(t, err)

	hits, err := s.Search([]float32{0}, 1)
	assert.Nil(t, hits)
	assert.ErrorIs(t, err, ErrInternalInconsistency)
	assert.ErrorIs(t, err, records.ErrSlotNotFound)
	assert.False(t, errors.Is(err, ErrInvalidArgument))
}
