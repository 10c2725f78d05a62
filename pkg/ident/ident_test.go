package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{in: "pdb", want: CategoryPDB},
		{in: "CSM", want: CategoryCSM},
		{in: " ihm ", want: CategoryIHM},
		{in: "experimental", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1abc", CategoryPDB.Normalize(" 1ABC "))
	assert.Equal(t, "AF_AFP68871F1", CategoryCSM.Normalize("af_afp68871f1"))
	assert.Equal(t, "8zz9", CategoryIHM.Normalize("8ZZ9"))
}

func TestHash_EntryRule(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "1abc", want: "ab"},
		{id: "4HHB", want: "hh"},
		{id: "pdb_00001abc", want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := Hash(tt.id, CategoryPDB)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHash_ModelRule(t *testing.T) {
	got, err := Hash("af_afp68871f1", CategoryCSM)
	require.NoError(t, err)
	assert.Equal(t, "AF/88/71", got)

	got, err = Hash("MA_BAKCEPC0066", CategoryCSM)
	require.NoError(t, err)
	assert.Equal(t, "MA/C0/06", got)
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Hash("1abc", CategoryPDB)
	require.NoError(t, err)
	b, err := Hash("1ABC", CategoryPDB)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHash_UnsupportedShape(t *testing.T) {
	_, err := Hash("xyz", CategoryPDB)
	assert.Error(t, err)

	_, err = Hash("af_x", CategoryCSM)
	assert.Error(t, err)

	_, err = Hash("", CategoryPDB)
	assert.Error(t, err)
}
