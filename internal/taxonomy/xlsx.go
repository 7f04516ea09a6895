package taxonomy

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// LoadXLSX reads a taxonomy workbook into a Tree. The expected layout is
// one row per category with columns: level, id, name, parent_id. A header
// row is detected by a non-numeric level cell and skipped.
func LoadXLSX(path string) (*Tree, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("taxonomy: workbook has no sheets")
	}

	var recs []Record
	for i, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if len(cells) < 3 || cells[0] == "" {
			continue
		}

		level, parseErr := parseLevel(cells[0])
		if parseErr != nil {
			if i == 0 {
				// Header row.
				continue
			}
			return nil, eris.Wrapf(parseErr, "taxonomy: row %d", i+1)
		}

		rec := Record{Level: level, ID: cells[1], Name: cells[2]}
		if len(cells) > 3 {
			rec.ParentID = cells[3]
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		return nil, eris.Errorf("taxonomy: no category rows in %s", path)
	}

	tree := NewTree()
	if err := tree.AddRecords(recs); err != nil {
		return nil, err
	}
	return tree, nil
}

func parseLevel(s string) (int, error) {
	// Levels arrive as "1" or "1.0" depending on how the sheet was edited.
	if idx := strings.IndexByte(s, '.'); idx > 0 {
		s = s[:idx]
	}
	switch s {
	case "1":
		return 1, nil
	case "2":
		return 2, nil
	case "3":
		return 3, nil
	case "4":
		return 4, nil
	case "5":
		return 5, nil
	}
	return 0, eris.Errorf("invalid level %q", s)
}
