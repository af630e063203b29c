package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Deliveries",
		Headers: []string{"ID", "Client", "Minutes"},
		Rows: []map[string]string{
			{"ID": "r1", "Client": "Acme, Inc", "Minutes": "65"},
			{"ID": "r2", "Client": "Padaria São João", "Minutes": ""},
		},
		Summary: []string{"Total: 2"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID,Client,Minutes", lines[0])
	assert.Equal(t, `r1,"Acme, Inc",65`, lines[1])
	assert.Equal(t, "Total: 2,,", lines[3])
}

func TestCSVExporterSemicolon(t *testing.T) {
	exp := &CSVExporter{Comma: ';'}
	out, err := exp.Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "ID;Client;Minutes"))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, map[string]string{"ID": "bulk", "Client": strings.Repeat("x", 80), "Minutes": "1"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", NewPDFExporter().ContentType())
}
