package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"clientmap/internal"
	"clientmap/internal/util"
)

var (
	ErrMissingInput  = errors.New("input file not found")
	ErrMissingColumn = errors.New("required column missing")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type columnSpec struct {
	field   string
	aliases []string
}

// Header aliases, compared after util.Normalize.
var registryColumns = []columnSpec{
	{field: "name", aliases: []string{"nome", "name", "razao social", "cliente"}},
	{field: "taxId", aliases: []string{"cnpj", "taxid", "tax id", "cpf/cnpj", "cnpj/cpf"}},
	{field: "city", aliases: []string{"cidade", "city", "municipio"}},
	{field: "contact", aliases: []string{"contato", "contact"}},
	{field: "phone", aliases: []string{"telefone", "phone", "fone", "celular"}},
	{field: "equipment", aliases: []string{"equipamento", "equipment", "equipamentos"}},
}

// ReadRecords loads the client registry from a CSV or XLSX file. It returns
// the parsed records and the number of lines that could not be parsed.
func ReadRecords(path string) ([]internal.RawRecord, int, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, 0, err
	}

	var (
		rows      [][]string
		lineNos   []int
		malformed int
		err       error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSXRows(path)
		for i := range rows {
			lineNos = append(lineNos, i+1)
		}
	default:
		rows, lineNos, malformed, err = readCSVRows(path)
	}
	if err != nil {
		return nil, 0, err
	}

	records, err := recordsFromRows(rows, lineNos)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return records, malformed, nil
}

func readCSVRows(path string) ([][]string, []int, int, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, 0, err
	}
	blob = bytes.TrimPrefix(blob, utf8BOM)

	r := csv.NewReader(bytes.NewReader(blob))
	r.Comma = sniffDelimiter(blob)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows := [][]string{}
	lineNos := []int{}
	malformed := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				malformed++
				continue
			}
			return nil, nil, 0, err
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, rec)
		lineNos = append(lineNos, line)
	}
	return rows, lineNos, malformed, nil
}

// sniffDelimiter picks ';' for spreadsheet exports that use it on the
// header line, ',' otherwise.
func sniffDelimiter(blob []byte) rune {
	header := blob
	if i := bytes.IndexByte(blob, '\n'); i >= 0 {
		header = blob[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func recordsFromRows(rows [][]string, lineNos []int) ([]internal.RawRecord, error) {
	headerAt := -1
	for i, row := range rows {
		if !isBlankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return []internal.RawRecord{}, nil
	}

	cols := inferColumns(normalizeCells(rows[headerAt]))
	if cols["name"] < 0 {
		return nil, fmt.Errorf("%w: name", ErrMissingColumn)
	}

	out := make([]internal.RawRecord, 0, len(rows)-headerAt-1)
	for i := headerAt + 1; i < len(rows); i++ {
		cells := rows[i]
		if isBlankRow(cells) {
			continue
		}
		out = append(out, internal.RawRecord{
			LineNo:       lineNos[i],
			Name:         pickCell(cells, cols["name"]),
			TaxID:        pickCell(cells, cols["taxId"]),
			City:         pickCell(cells, cols["city"]),
			Contact:      pickCell(cells, cols["contact"]),
			Phone:        pickCell(cells, cols["phone"]),
			EquipmentRaw: pickCell(cells, cols["equipment"]),
		})
	}
	return out, nil
}

func inferColumns(headers []string) map[string]int {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, util.Normalize(h))
	}
	out := map[string]int{}
	for _, spec := range registryColumns {
		out[spec.field] = findHeaderIndex(norm, spec.aliases)
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if h == probe {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, strings.TrimSpace(c))
	}
	return out
}
