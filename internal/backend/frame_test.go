package backend

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame() *Frame {
	return &Frame{
		Columns: []string{"b", "a"},
		Index:   []int64{1, 2},
		Rows: [][]any{
			{int64(1), "x"},
			{2.5, nil},
		},
	}
}

func TestFrame_JSON(t *testing.T) {
	tests := []struct {
		orient Orient
		want   string
	}{
		{OrientSplit, `{"columns":["b","a"],"index":[1,2],"data":[[1,"x"],[2.5,null]]}`},
		{OrientRecords, `[{"b":1,"a":"x"},{"b":2.5,"a":null}]`},
		{OrientIndex, `{"1":{"b":1,"a":"x"},"2":{"b":2.5,"a":null}}`},
		{OrientColumns, `{"b":{"1":1,"2":2.5},"a":{"1":"x","2":null}}`},
		{OrientValues, `[[1,"x"],[2.5,null]]`},
	}

	for _, tt := range tests {
		t.Run(string(tt.orient), func(t *testing.T) {
			got, err := testFrame().JSON(tt.orient)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestFrame_JSON_Empty(t *testing.T) {
	f := &Frame{Columns: []string{"a"}, Index: []int64{}, Rows: [][]any{}}

	got, err := f.JSON(OrientSplit)
	require.NoError(t, err)
	assert.Equal(t, `{"columns":["a"],"index":[],"data":[]}`, string(got))
}

func TestFrame_JSON_UnknownOrient(t *testing.T) {
	_, err := testFrame().JSON("table")
	assert.ErrorIs(t, err, ErrUnknownOrient)
}

func TestFrame_JSON_SpecialValues(t *testing.T) {
	f := &Frame{
		Columns: []string{"v"},
		Index:   []int64{0, 1},
		Rows:    [][]any{{math.NaN()}, {[]byte("blob")}},
	}

	got, err := f.JSON(OrientValues)
	require.NoError(t, err)
	assert.Equal(t, `[[null],["blob"]]`, string(got))
}

type stubQueryable struct {
	frame *Frame
	err   error
}

func (s stubQueryable) Query(context.Context, string, []Cond) (*Frame, error) {
	return s.frame, s.err
}

func TestTableJSON_NotAvailable(t *testing.T) {
	got, err := TableJSON(context.Background(), stubQueryable{}, "X", nil, OrientSplit)
	require.NoError(t, err)
	assert.Equal(t, `"X is not available."`, string(got))
}

func TestTableJSON_Renders(t *testing.T) {
	got, err := TableJSON(context.Background(), stubQueryable{frame: testFrame()}, "T", nil, OrientValues)
	require.NoError(t, err)
	assert.Equal(t, `[[1,"x"],[2.5,null]]`, string(got))
}

func TestMemory_NoSource(t *testing.T) {
	m := NewMemory(nil)
	frame, err := m.Query(context.Background(), "T", nil)
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, 0, m.Registry.Len())
}
