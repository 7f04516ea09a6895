package main

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/classify-cli/internal/model"
)

// loadVendors reads a vendor list from a .csv or .xlsx file. The first
// row is a header; a "name" column is required, the remaining vendor
// attributes are matched by column name and optional.
func loadVendors(path string) ([]model.Vendor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadVendorsCSV(path)
	case ".xlsx":
		return loadVendorsXLSX(path)
	default:
		return nil, eris.Errorf("unsupported vendor file %s (want .csv or .xlsx)", path)
	}
}

var vendorColumns = map[string]func(*model.Vendor, string){
	"name":              func(v *model.Vendor, s string) { v.Name = s },
	"vendor":            func(v *model.Vendor, s string) { v.Name = s },
	"vendor_name":       func(v *model.Vendor, s string) { v.Name = s },
	"example":           func(v *model.Vendor, s string) { v.Example = s },
	"address":           func(v *model.Vendor, s string) { v.Address = s },
	"website":           func(v *model.Vendor, s string) { v.Website = s },
	"internal_category": func(v *model.Vendor, s string) { v.InternalCategory = s },
	"parent_company":    func(v *model.Vendor, s string) { v.ParentCompany = s },
	"spend_category":    func(v *model.Vendor, s string) { v.SpendCategory = s },
}

func headerSetters(header []string) []func(*model.Vendor, string) {
	setters := make([]func(*model.Vendor, string), len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, " ", "_")))
		setters[i] = vendorColumns[key]
	}
	return setters
}

func loadVendorsCSV(path string) ([]model.Vendor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open vendor csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read vendor csv header")
	}
	setters := headerSetters(header)

	var vendors []model.Vendor
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read vendor csv row")
		}
		v := vendorFromRow(rec, setters)
		if v.Name != "" {
			vendors = append(vendors, v)
		}
	}

	if len(vendors) == 0 {
		return nil, eris.Errorf("no vendors in %s (is there a name column?)", path)
	}
	return vendors, nil
}

func loadVendorsXLSX(path string) ([]model.Vendor, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "open vendor xlsx")
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) < 2 {
		return nil, eris.Errorf("no vendor rows in %s", path)
	}

	rows := f.Sheets[0].Rows
	header := make([]string, len(rows[0].Cells))
	for i, c := range rows[0].Cells {
		header[i] = c.String()
	}
	setters := headerSetters(header)

	var vendors []model.Vendor
	for _, row := range rows[1:] {
		rec := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			rec[i] = c.String()
		}
		v := vendorFromRow(rec, setters)
		if v.Name != "" {
			vendors = append(vendors, v)
		}
	}

	if len(vendors) == 0 {
		return nil, eris.Errorf("no vendors in %s (is there a name column?)", path)
	}
	return vendors, nil
}

func vendorFromRow(rec []string, setters []func(*model.Vendor, string)) model.Vendor {
	var v model.Vendor
	for i, val := range rec {
		if i >= len(setters) || setters[i] == nil {
			continue
		}
		if val = strings.TrimSpace(val); val != "" {
			setters[i](&v, val)
		}
	}
	return v
}
