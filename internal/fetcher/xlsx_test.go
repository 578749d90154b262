package fetcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "listing.xlsx")
	err := f.Save(path)
	require.NoError(t, err)
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Members": {
			{"Name", "Island", "Phone"},
			{"Kona Coffee Roasters", "Kona", "808-555-0101"},
			{"Hilo Bay Tours", "Hilo", "808-555-0102"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Island", "Phone"}, rows[0])
	assert.Equal(t, []string{"Kona Coffee Roasters", "Kona", "808-555-0101"}, rows[1])
}

func TestReadXLSX_SkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Members": {
			{"Name", "Island"},
			{"Kona Coffee Roasters", "Kona"},
			{"Hilo Bay Tours", "Hilo"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Kona Coffee Roasters", rows[0][0])
}

func TestReadXLSX_HeaderChannel(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Members": {
			{"Name", "Island"},
			{"Kona Coffee Roasters", "Kona"},
		},
	})

	headerCh := make(chan []string, 1)
	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1, HeaderCh: headerCh})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Name", "Island"}, <-headerCh)
}

func TestReadXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Summary": {
			{"do not read this"},
		},
		"Members": {
			{"Kona Coffee Roasters", "Kona"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Members"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Kona Coffee Roasters", rows[0][0])
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Members": {{"a"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Members": {{"a"}},
	})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}

func TestStreamXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Members": {
			{"Name", "Island"},
			{"Kona Coffee Roasters", "Kona"},
			{"Hilo Bay Tours", "Hilo"},
		},
	})

	rowCh, errCh := StreamXLSX(context.Background(), path, XLSXOptions{SkipRows: 1})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Hilo Bay Tours", rows[1][0])
}

func TestStreamXLSX_MissingFile(t *testing.T) {
	rowCh, errCh := StreamXLSX(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
}
