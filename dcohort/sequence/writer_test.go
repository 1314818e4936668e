package sequence_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbspbs10pc/dcohort-app/dcohort/sequence"
)

func TestWriteCSV(t *testing.T) {
	rows := []sequence.Row{
		{PatientID: "P001", Seq: "23 0 104 2 110", AvgAge: 62, LastRegion: "VIC", Sex: "F"},
		{PatientID: "P002", Seq: "23 1 23 4 105", AvgAge: 51.5, LastRegion: "QLD", Sex: "M"},
	}

	var buf bytes.Buffer
	require.NoError(t, sequence.WriteCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "PIN,seq,avg_age,last_pinstate,sex", lines[0])
	assert.Equal(t, "P001,23 0 104 2 110,62,VIC,F", lines[1])
	assert.Equal(t, "P002,23 1 23 4 105,51.5,QLD,M", lines[2])
}

func TestWriteCSVNoRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sequence.WriteCSV(&buf, nil))
	assert.Equal(t, "PIN,seq,avg_age,last_pinstate,sex\n", buf.String())
}

func TestSaveCSV(t *testing.T) {
	path := t.TempDir() + "/sequences.csv"
	require.NoError(t, sequence.SaveCSV(path, []sequence.Row{
		{PatientID: "P001", Seq: "23", AvgAge: 62, LastRegion: "NSW", Sex: "F"},
	}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "P001,23,62,NSW,F")
}
