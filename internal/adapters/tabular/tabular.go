// Package tabular reads and writes the header-named CSV files exchanged
// between pipeline stages: raw survey rows, remapped records and day-tagged
// records.
package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/dayid"
	"github.com/okian/dayflow/internal/domain/survey"
)

// Column sets.
var (
	RawColumns = []string{
		"YEAR", "CASEID", "SERIAL", "FAMINCOME", "HHTENURE", "HOUSETYPE",
		"PERNUM", "LINENO", "WT06", "SCHLCOLL", "ACTIVITY", "START", "STOP",
	}
	RemappedColumns = []string{"year", "serial", "activity", "start", "stop"}
	DayColumns      = []string{"day_id", "start", "stop", "activity"}
)

// table wraps a csv.Reader with header-name lookup.
type table struct {
	r     *csv.Reader
	path  string
	index map[string]int
	line  int
	row   []string
}

func newTable(r io.Reader, path string, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &RowError{Path: path, Line: 1, Err: fmt.Errorf("%w: empty input", ErrMissingColumn)}
		}
		return nil, &RowError{Path: path, Line: 1, Err: err}
	}
	t := &table{r: cr, path: path, index: make(map[string]int, len(head)), line: 1}
	for i, h := range head {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		t.index[strings.ToLower(h)] = i
	}
	for _, c := range required {
		if _, ok := t.index[strings.ToLower(c)]; !ok {
			return nil, &RowError{Path: path, Line: 1, Column: c, Err: ErrMissingColumn}
		}
	}
	return t, nil
}

// next advances to the next row; it returns io.EOF at the end.
func (t *table) next() error {
	row, err := t.r.Read()
	t.line++
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return &RowError{Path: t.path, Line: t.line, Err: err}
	}
	t.row = row
	return nil
}

func (t *table) cell(col string) (string, bool) {
	i, ok := t.index[strings.ToLower(col)]
	if !ok || i >= len(t.row) {
		return "", false
	}
	return strings.TrimSpace(t.row[i]), true
}

func (t *table) fail(col, v string, err error) error {
	return &RowError{Path: t.path, Line: t.line, Column: col, Err: fmt.Errorf("%w %q: %w", ErrInvalidValue, v, err)}
}

func (t *table) str(col string) (string, error) {
	v, ok := t.cell(col)
	if !ok {
		return "", &RowError{Path: t.path, Line: t.line, Column: col, Err: ErrMissingColumn}
	}
	return v, nil
}

func (t *table) unsigned(col string, bits int) (uint64, error) {
	v, err := t.str(col)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, bits)
	if err != nil {
		return 0, t.fail(col, v, err)
	}
	return n, nil
}

func (t *table) signed(col string) (int32, error) {
	v, err := t.str(col)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, t.fail(col, v, err)
	}
	return int32(n), nil
}

// optUint reads a descriptive column that may be blank.
func (t *table) optUint(col string) (uint32, error) {
	v, _ := t.cell(col)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, t.fail(col, v, err)
	}
	return uint32(n), nil
}

func (t *table) optFloat(col string) (float64, error) {
	v, _ := t.cell(col)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, t.fail(col, v, err)
	}
	return f, nil
}

// ReadRaw parses a raw survey extract. Only the year, serial, activity and
// clock columns are required; descriptive columns default to zero.
func ReadRaw(r io.Reader, path string) ([]survey.RawRecord, error) {
	t, err := newTable(r, path, "YEAR", "SERIAL", "ACTIVITY", "START", "STOP")
	if err != nil {
		return nil, err
	}
	var out []survey.RawRecord
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		rec, err := t.raw()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func (t *table) raw() (survey.RawRecord, error) {
	var (
		rec survey.RawRecord
		err error
		n   uint64
	)
	if n, err = t.unsigned("YEAR", 32); err != nil {
		return rec, err
	}
	rec.Year = uint32(n)
	if rec.Serial, err = t.unsigned("SERIAL", 64); err != nil {
		return rec, err
	}
	if rec.Activity, err = t.unsigned("ACTIVITY", 64); err != nil {
		return rec, err
	}
	if rec.Start, err = t.str("START"); err != nil {
		return rec, err
	}
	if rec.Stop, err = t.str("STOP"); err != nil {
		return rec, err
	}

	if v, _ := t.cell("CASEID"); v != "" {
		if rec.CaseID, err = strconv.ParseUint(v, 10, 64); err != nil {
			return rec, t.fail("CASEID", v, err)
		}
	}
	for _, f := range []struct {
		col string
		dst *uint32
	}{
		{"FAMINCOME", &rec.FamilyIncome},
		{"HHTENURE", &rec.Tenure},
		{"HOUSETYPE", &rec.HouseType},
		{"PERNUM", &rec.PersonNumber},
		{"LINENO", &rec.LineNumber},
		{"SCHLCOLL", &rec.Schooling},
	} {
		if *f.dst, err = t.optUint(f.col); err != nil {
			return rec, err
		}
	}
	if rec.Weight, err = t.optFloat("WT06"); err != nil {
		return rec, err
	}
	return rec, nil
}

// WriteRaw writes raw rows with the full extract header.
func WriteRaw(w io.Writer, rows []survey.RawRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RawColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			u(uint64(r.Year)), u(r.CaseID), u(r.Serial), u(uint64(r.FamilyIncome)),
			u(uint64(r.Tenure)), u(uint64(r.HouseType)), u(uint64(r.PersonNumber)),
			u(uint64(r.LineNumber)), strconv.FormatFloat(r.Weight, 'f', -1, 64),
			u(uint64(r.Schooling)), u(r.Activity), r.Start, r.Stop,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRemapped parses remapped records. Clock columns hold seconds after
// midnight and activity holds the compact code.
func ReadRemapped(r io.Reader, path string) ([]survey.NormalizedRecord, error) {
	t, err := newTable(r, path, RemappedColumns...)
	if err != nil {
		return nil, err
	}
	var out []survey.NormalizedRecord
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		var rec survey.NormalizedRecord
		year, err := t.unsigned("year", 32)
		if err != nil {
			return nil, err
		}
		rec.Year = uint32(year)
		if rec.Serial, err = t.unsigned("serial", 64); err != nil {
			return nil, err
		}
		if rec.Activity, err = t.category("activity"); err != nil {
			return nil, err
		}
		if rec.Start, err = t.signed("start"); err != nil {
			return nil, err
		}
		if rec.Stop, err = t.signed("stop"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// WriteRemapped writes remapped records.
func WriteRemapped(w io.Writer, rows []survey.NormalizedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RemappedColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			u(uint64(r.Year)), u(r.Serial), u(uint64(r.Activity.Code())),
			i32(r.Start), i32(r.Stop),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDays parses day-tagged records.
func ReadDays(r io.Reader, path string) ([]dayid.Record, error) {
	t, err := newTable(r, path, DayColumns...)
	if err != nil {
		return nil, err
	}
	var out []dayid.Record
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		var rec dayid.Record
		id, err := t.unsigned("day_id", 32)
		if err != nil {
			return nil, err
		}
		rec.DayID = uint32(id)
		if rec.Start, err = t.signed("start"); err != nil {
			return nil, err
		}
		if rec.Stop, err = t.signed("stop"); err != nil {
			return nil, err
		}
		if rec.Activity, err = t.category("activity"); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// WriteDays writes day-tagged records.
func WriteDays(w io.Writer, rows []dayid.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DayColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			u(uint64(r.DayID)), i32(r.Start), i32(r.Stop), u(uint64(r.Activity.Code())),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *table) category(col string) (activity.Category, error) {
	n, err := t.unsigned(col, 8)
	if err != nil {
		return 0, err
	}
	c, ok := activity.FromCode(uint8(n))
	if !ok {
		return 0, t.fail(col, strconv.FormatUint(n, 10), fmt.Errorf("code past %d", activity.MaxCode))
	}
	return c, nil
}

func u(n uint64) string  { return strconv.FormatUint(n, 10) }
func i32(n int32) string { return strconv.FormatInt(int64(n), 10) }

// ReadFile opens path and hands it to read.
func ReadFile[T any](path string, read func(io.Reader, string) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return read(bufio.NewReader(f), path)
}

// WriteFile creates path and hands it to write.
func WriteFile[T any](path string, rows []T, write func(io.Writer, []T) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	bw := bufio.NewWriter(f)
	if err := write(bw, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
