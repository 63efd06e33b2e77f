package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Visit struct {
	ID    string
	Notes string
}

func (v Visit) PK() string {
	return v.ID
}

type CareFacility struct {
	ID   string
	Name string
}

func (c CareFacility) PK() string {
	return c.ID
}

type Practitioner struct {
	ID string
}

func (p Practitioner) PK() string {
	return p.ID
}

func (p Practitioner) Name() string {
	return "staff"
}

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		model any
		want  string
	}{
		{name: "single word struct", model: Visit{}, want: "visits"},
		{name: "multi word struct", model: CareFacility{}, want: "care_facilities"},
		{name: "manual override", model: Practitioner{}, want: "staff"},
		{name: "slice", model: []Visit{}, want: "visits"},
	}
	// Run several iterations so cached names are exercised too.
	for i := 0; i < 3; i++ {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := Name(tt.model); got != tt.want {
					t.Errorf("Iter %d. Name() = %v, want %v", i, got, tt.want)
				}
			})
		}
	}
}

type patchRecord struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Language string `json:"language"`
	Count    int    `json:"count"`
	Active   *bool  `json:"active,omitempty"`
	Secret   string `json:"-"`
	Plain    string
	hidden   string
}

func (p patchRecord) PK() string {
	return p.ID
}

func TestPartialFields(t *testing.T) {
	active := false
	fields, err := PartialFields(&patchRecord{
		Language: "es",
		Active:   &active,
		Secret:   "never",
		Plain:    "kept",
		hidden:   "never",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"language": "es",
		"active":   &active,
		"Plain":    "kept",
	}, fields)
}

func TestPartialFieldsSkipsZeroValues(t *testing.T) {
	fields, err := PartialFields(&patchRecord{})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestPartialFieldsNilModel(t *testing.T) {
	_, err := PartialFields(nil)
	assert.ErrorIs(t, err, ErrNilModel)

	var p *patchRecord
	_, err = PartialFields(p)
	assert.ErrorIs(t, err, ErrNilModel)
}
