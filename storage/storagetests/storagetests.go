// Package storagetests provides common acceptance tests for storage.Store
// implementations.
package storagetests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/portal/storage"
)

type Ward int

const (
	WardGeneral    Ward = 1
	WardCardiology Ward = 2
	WardPediatrics Ward = 3
	WardOncology   Ward = 4
)

type Patient struct {
	ID   string
	Name string
	Ward Ward
	Bed  *int // Ptr fields allow filtering on zero values.
}

func (p Patient) PK() string {
	return p.ID
}

type Department struct {
	ID   string
	Name string
}

func (d Department) PK() string {
	return d.ID
}

type BadModel struct {
	ID    string
	Cycle *BadModel
}

func (b BadModel) PK() string {
	return b.ID
}

func pint(i int) *int {
	return &i
}

// Run exercises every storage.Store operation against a fresh store per
// subtest.
func Run(t *testing.T, newStore func() storage.Store) {

	t.Run("TestCreateReadRoundTrip", func(t *testing.T) {
		ada := Patient{ID: "1", Name: "Ada", Ward: WardGeneral}
		ben := Patient{ID: "2", Name: "Ben", Ward: WardCardiology}

		ada2 := Patient{}
		ben2 := Patient{}

		store := newStore()
		err := store.Create(ada, ben)
		require.Nil(t, err, "unexpected error creating records")

		err = store.Read("1", &ada2)
		require.Nil(t, err, "unexpected error reading record")
		assert.Equal(t, ada, ada2)

		err = store.Read("2", &ben2)
		require.Nil(t, err, "unexpected error reading record")
		assert.Equal(t, ben, ben2)
	})

	t.Run("TestCreateConflict", func(t *testing.T) {
		first := Patient{ID: "1", Name: "Ada", Ward: WardGeneral}
		second := Patient{ID: "1", Name: "Ada", Ward: WardOncology}

		store := newStore()
		err := store.Create(first)
		require.Nil(t, err, "unexpected error creating record")

		err = store.Create(second)
		assert.ErrorIs(t, err, storage.ErrAlreadyExists, "expected conflict error")

		// First writer wins: the stored record is unchanged.
		got := Patient{}
		require.Nil(t, store.Read("1", &got))
		assert.Equal(t, first, got)
	})

	t.Run("TestCreateBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Create(bm)
		assert.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestReadNotFound", func(t *testing.T) {
		store := newStore()
		err := store.Read("1", &Patient{})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = store.Create(&Patient{ID: "1", Name: "Ada"})
		require.Nil(t, err, "unexpected error creating records")

		err = store.Read("2", &Patient{})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestReadWithNilPointer", func(t *testing.T) {
		var nobody *Patient

		store := newStore()
		err := store.Create(Patient{ID: "1", Name: "Ada"})
		require.Nil(t, err, "unexpected error creating records")

		err = store.Read("1", nobody)
		assert.ErrorIs(t, err, storage.ErrNilModel, "expected nil model error")
	})

	t.Run("TestUpdate", func(t *testing.T) {
		ada := Patient{ID: "1", Name: "Ada", Ward: WardGeneral}
		got := Patient{}

		store := newStore()
		err := store.Create(ada)
		require.Nil(t, err, "unexpected error creating record")

		ada.Ward = WardCardiology
		err = store.Update(ada)
		require.Nil(t, err, "unexpected error updating record")

		err = store.Read("1", &got)
		require.Nil(t, err, "unexpected error reading record")
		assert.Equal(t, ada, got)
	})

	t.Run("TestUpdateNotExists", func(t *testing.T) {
		store := newStore()
		err := store.Update(Patient{ID: "1", Name: "Ada"})
		assert.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestUpsert", func(t *testing.T) {
		ada := Patient{ID: "1", Name: "Ada", Ward: WardGeneral}

		store := newStore()
		err := store.Create(ada)
		require.Nil(t, err, "unexpected error creating record")

		ada.Ward = WardOncology
		ben := Patient{ID: "2", Name: "Ben", Ward: WardCardiology}
		err = store.Upsert(ada, ben)
		require.Nil(t, err, "unexpected error upserting records")

		got := Patient{}
		require.Nil(t, store.Read("1", &got))
		assert.Equal(t, ada, got)
		require.Nil(t, store.Read("2", &got))
		assert.Equal(t, ben, got)
	})

	t.Run("TestMerge", func(t *testing.T) {
		ada := Patient{ID: "1", Name: "Ada", Ward: WardGeneral, Bed: pint(12)}

		store := newStore()
		err := store.Create(ada)
		require.Nil(t, err, "unexpected error creating record")

		// Only the non-zero fields of the partial are applied.
		err = store.Merge("1", &Patient{Ward: WardPediatrics})
		require.Nil(t, err, "unexpected error merging record")

		got := Patient{}
		require.Nil(t, store.Read("1", &got))
		assert.Equal(t, "Ada", got.Name)
		assert.Equal(t, WardPediatrics, got.Ward)
		require.NotNil(t, got.Bed)
		assert.Equal(t, 12, *got.Bed)
	})

	t.Run("TestMergeNotExists", func(t *testing.T) {
		store := newStore()
		err := store.Merge("404", &Patient{Ward: WardGeneral})
		assert.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestDelete", func(t *testing.T) {
		store := newStore()
		err := store.Create(&Patient{ID: "4", Name: "Mei"})
		assert.Nil(t, err)

		exists, err := store.Exists("4", &Patient{})
		assert.True(t, exists)
		assert.Nil(t, err)

		err = store.Delete(&Patient{ID: "4"})
		assert.Nil(t, err)

		exists, err = store.Exists("4", &Patient{})
		assert.False(t, exists)
		assert.Nil(t, err)

		err = store.Delete(&Patient{ID: "4"})
		assert.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestListErrorCases", func(t *testing.T) {
		store := newStore()

		out := []Patient{}
		departments := []Department{}

		tests := []struct {
			name    string
			models  any
			filter  storage.Model
			wantErr error
		}{
			{"Ok", &out, Patient{}, nil},
			{"NotASlice", &Patient{}, Patient{}, storage.ErrSliceRequired},
			{"NotAPointer", out, Patient{}, storage.ErrSliceRequired},
			{"TypeMismatch", &departments, Patient{}, storage.ErrTypeMismatch},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := store.List(tt.models, tt.filter)
				if tt.wantErr == nil {
					assert.Nil(t, err)
				} else {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			})
		}
	})

	t.Run("TestListFilters", func(t *testing.T) {
		store := newStore()
		require.Nil(t, store.Create(
			Patient{ID: "1", Name: "Ada", Ward: WardGeneral, Bed: pint(1)},
			Patient{ID: "2", Name: "Ben", Ward: WardCardiology, Bed: pint(2)},
			Patient{ID: "3", Name: "Mei", Ward: WardCardiology},
		))

		out := []Patient{}
		err := store.List(&out, Patient{Ward: WardCardiology})
		require.Nil(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "2", out[0].ID)
		assert.Equal(t, "3", out[1].ID)

		// Pointer fields allow filtering on otherwise-zero values.
		out = nil
		err = store.List(&out, Patient{Bed: pint(1)})
		require.Nil(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "1", out[0].ID)
	})

	t.Run("TestListPreservesOrder", func(t *testing.T) {
		store := newStore()
		require.Nil(t, store.Create(
			Patient{ID: "3", Name: "Mei"},
			Patient{ID: "1", Name: "Ada"},
			Patient{ID: "2", Name: "Ben"},
		))

		out := []Patient{}
		require.Nil(t, store.List(&out, Patient{}))
		require.Len(t, out, 3)
		assert.Equal(t, "1", out[0].ID)
		assert.Equal(t, "2", out[1].ID)
		assert.Equal(t, "3", out[2].ID)
	})
}
