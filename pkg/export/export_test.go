package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSVExporterWritesHeadersAndBlankCells(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{Headers: []string{"ID", "School", "Notes"}}
	data.Append(map[string]string{"ID": "1", "School": "Maple, North"})

	out, err := exporter.Render(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM))

	body := string(out[len(utf8BOM):])
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,School,Notes", lines[0])
	assert.Equal(t, `1,"Maple, North",`, lines[1])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := (&CSVExporter{}).Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRendersDocument(t *testing.T) {
	exporter := NewPDFExporter()
	doc := Document{
		Title:    "Quality Assurance Report",
		Subtitle: "Maple Street Campus",
		Fields:   []Field{{Label: "Inspection date", Value: "2024-03-09"}},
		Blocks: []Block{
			{Heading: "Executive summary", Text: "Classrooms were well prepared. Café area needs signage."},
			{Heading: "Issues", Bullets: []string{"Fire drill log incomplete"}},
			{Heading: "Safety", Table: &Dataset{
				Headers: []string{"Item", "Rating", "Notes"},
				Rows:    []map[string]string{{"Item": "exits_clear", "Rating": "Meets", "Notes": strings.Repeat("long note ", 30)}},
			}},
		},
		Footer: "QA Reports",
	}

	out, err := exporter.Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestPDFExporterRequiresTitle(t *testing.T) {
	_, err := NewPDFExporter().Render(Document{})
	require.Error(t, err)
}

func TestXLSXExporterWritesNamedSheet(t *testing.T) {
	data := Dataset{Headers: []string{"ID", "School", "Status"}}
	data.Append(map[string]string{"ID": "7", "School": "Maple Street"})
	data.Append(map[string]string{"ID": "8", "School": "Oak Ridge", "Status": "Approved"})

	out, err := NewXLSXExporter("Reports").Render(data)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reports")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "School", "Status"}, rows[0])
	assert.Equal(t, []string{"7", "Maple Street"}, rows[1])
	assert.Equal(t, "Approved", rows[2][2])
}

func TestXLSXExporterRequiresHeaders(t *testing.T) {
	_, err := NewXLSXExporter("").Render(Dataset{})
	require.Error(t, err)
}

func TestCSVExporterGuardsFormulas(t *testing.T) {
	data := Dataset{Headers: []string{"Notes", "Delta"}}
	data.Append(map[string]string{"Notes": "=HYPERLINK(\"http://x\")", "Delta": "-3"})
	data.Append(map[string]string{"Notes": "@SUM(A1)", "Delta": "+1.5"})

	out, err := (&CSVExporter{}).Render(data)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"'=HYPERLINK(""http://x"")",-3`, lines[1])
	assert.Equal(t, `'@SUM(A1),+1.5`, lines[2])

	raw, err := (&CSVExporter{Raw: true}).Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "@SUM(A1),+1.5")
	assert.NotContains(t, string(raw), "'@")
}
