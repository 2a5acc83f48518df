package transfer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotatedExport = `#group,false,false,true,true,false,false,true
#datatype,string,long,dateTime:RFC3339,dateTime:RFC3339,dateTime:RFC3339,double,string
#default,_result,,,,,,
,result,table,_start,_stop,_time,_value,car
,,0,2021-01-01T00:00:00Z,2021-01-02T00:00:00Z,2021-01-01T10:00:00Z,88.5,mclaren

,result,table,_start,_stop,_time,_value,car
,,1,2021-01-01T00:00:00Z,2021-01-02T00:00:00Z,2021-01-01T11:00:00Z,,ferrari
`

func TestReadCSVAnnotated(t *testing.T) {
	frame, err := ReadCSV(strings.NewReader(annotatedExport))
	require.NoError(t, err)

	want := &Frame{
		Columns: []string{"result", "table", "_start", "_stop", "_time", "_value", "car"},
		Rows: [][]any{
			{"_result", "0", "2021-01-01T00:00:00Z", "2021-01-02T00:00:00Z", "2021-01-01T10:00:00Z", "88.5", "mclaren"},
			{"_result", "1", "2021-01-01T00:00:00Z", "2021-01-02T00:00:00Z", "2021-01-01T11:00:00Z", nil, "ferrari"},
		},
	}
	if diff := cmp.Diff(want, frame); diff != "" {
		t.Errorf("ReadCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVTables(t *testing.T) {
	reordered := `,result,table,_value,car
,,0,88.5,mclaren

,result,table,car,_value
,,1,ferrari,91.2
`
	frame, err := ReadCSV(strings.NewReader(reordered))
	require.NoError(t, err)
	assert.Equal(t, []string{"result", "table", "_value", "car"}, frame.Columns)
	assert.Equal(t, [][]any{
		{nil, "0", "88.5", "mclaren"},
		{nil, "1", "91.2", "ferrari"},
	}, frame.Rows)

	differing := `#datatype,string,long,double
,result,table,_value
,,0,88.5

#datatype,string,long,string
,result,table,car
,,1,ferrari
`
	_, err = ReadCSV(strings.NewReader(differing))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table 2")
	assert.Contains(t, err.Error(), "does not match columns")

	_, err = ReadCSV(strings.NewReader("a,b\n1,2\n\na,b,c\n1,2,3\n"))
	assert.Error(t, err, "a later table with an extra column is rejected")
}

func TestReadCSVDefaults(t *testing.T) {
	export := `#default,_result,,,pit
,result,table,_value,car
,,0,88.5,
,,0,,mclaren
#default,other,,,
,result,table,_value,car
,,1,90.1,
`
	frame, err := ReadCSV(strings.NewReader(export))
	require.NoError(t, err)
	want := [][]any{
		{"_result", "0", "88.5", "pit"},
		{"_result", "0", nil, "mclaren"},
		{"other", "1", "90.1", nil},
	}
	if diff := cmp.Diff(want, frame.Rows); diff != "" {
		t.Errorf("ReadCSV() rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVPlain(t *testing.T) {
	frame, err := ReadCSV(strings.NewReader("time,speed\n2021-01-01T10:00:00Z,201\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "speed"}, frame.Columns)
	assert.Equal(t, 1, frame.Len())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("#only,annotations\n"))
	assert.EqualError(t, err, "csv has no header")

	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.EqualError(t, err, `duplicate column "a"`)

	_, err = ReadCSV(strings.NewReader("a,b\n1\n"))
	assert.NoError(t, err, "short rows are padded with NULL")
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,speed\nt1,1\nt2,2\n"), 0o600))

	frame, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Len())

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestFrameSelect(t *testing.T) {
	frame := &Frame{
		Columns: []string{"_time", "_value", "car"},
		Rows:    [][]any{{"t1", "1.5", "mclaren"}},
	}

	selected, err := frame.Select("car", "_value")
	require.NoError(t, err)
	assert.Equal(t, []string{"car", "_value"}, selected.Columns)
	assert.Equal(t, [][]any{{"mclaren", "1.5"}}, selected.Rows)

	same, err := frame.Select()
	require.NoError(t, err)
	assert.Same(t, frame, same)

	_, err = frame.Select("lap")
	assert.EqualError(t, err, `column "lap" not found in frame`)
}

func TestFrameValidate(t *testing.T) {
	var empty *Frame
	assert.EqualError(t, empty.Validate(), "frame has no columns")
	assert.Zero(t, empty.Len())

	frame := &Frame{Columns: []string{"a", ""}}
	assert.EqualError(t, frame.Validate(), "column 1 has an empty name")

	frame = &Frame{Columns: []string{"a", "b"}, Rows: [][]any{{1, 2}, {1}}}
	assert.EqualError(t, frame.Validate(), "row 1 has 1 values, expected 2")
}

func TestFrameRecords(t *testing.T) {
	frame := &Frame{Columns: []string{"a", "b"}, Rows: [][]any{{1, nil}}}
	assert.Equal(t, []map[string]any{{"a": 1, "b": nil}}, frame.Records())
}
