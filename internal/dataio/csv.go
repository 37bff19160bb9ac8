// Package dataio loads interface points and orientations from CSV tables.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"geomodel/pkg/domain"
)

// MissingColumnError is returned when a required header is absent.
type MissingColumnError struct {
	Column string
}

func (e MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

// ParseError locates a malformed cell.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d column %q: %v", e.Line, e.Column, e.Err)
}

// Unwrap exposes the underlying conversion error.
func (e ParseError) Unwrap() error { return e.Err }

type table struct {
	columns map[string]int
	rows    [][]string
}

func readTable(r io.Reader) (table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table{}, errors.New("empty table")
		}
		return table{}, fmt.Errorf("read header: %w", err)
	}
	t := table{columns: make(map[string]int, len(header))}
	for i, name := range header {
		t.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, fmt.Errorf("read row: %w", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t table) has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.columns[strings.ToLower(n)]; !ok {
			return false
		}
	}
	return true
}

func (t table) require(names ...string) error {
	for _, n := range names {
		if !t.has(n) {
			return MissingColumnError{Column: n}
		}
	}
	return nil
}

func (t table) str(row int, name string) string {
	idx := t.columns[strings.ToLower(name)]
	rec := t.rows[row]
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func (t table) float(row int, name string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(row, name), 64)
	if err != nil {
		return 0, ParseError{Line: row + 2, Column: name, Err: err}
	}
	return v, nil
}

func (t table) floats(row int, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := t.float(row, n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadInterfaces parses a table with X, Y, Z and formation columns.
func ReadInterfaces(r io.Reader) ([]domain.InterfacePoint, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("X", "Y", "Z", "formation"); err != nil {
		return nil, err
	}
	out := make([]domain.InterfacePoint, 0, len(t.rows))
	for i := range t.rows {
		xyz, err := t.floats(i, "X", "Y", "Z")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.InterfacePoint{X: xyz[0], Y: xyz[1], Z: xyz[2], Formation: t.str(i, "formation")})
	}
	return out, nil
}

// ReadOrientations parses a table with X, Y, Z, formation and either dip,
// azimuth and polarity or G_x, G_y and G_z columns. When both are present
// the gradient wins.
func ReadOrientations(r io.Reader) ([]domain.Orientation, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, err
	}
	if err := t.require("X", "Y", "Z", "formation"); err != nil {
		return nil, err
	}
	gradient := t.has("G_x", "G_y", "G_z")
	if !gradient {
		if err := t.require("dip", "azimuth", "polarity"); err != nil {
			return nil, err
		}
	}
	out := make([]domain.Orientation, 0, len(t.rows))
	for i := range t.rows {
		xyz, err := t.floats(i, "X", "Y", "Z")
		if err != nil {
			return nil, err
		}
		o := domain.Orientation{X: xyz[0], Y: xyz[1], Z: xyz[2], Formation: t.str(i, "formation")}
		if gradient {
			g, err := t.floats(i, "G_x", "G_y", "G_z")
			if err != nil {
				return nil, err
			}
			o.Gx, o.Gy, o.Gz = g[0], g[1], g[2]
		} else {
			a, err := t.floats(i, "dip", "azimuth", "polarity")
			if err != nil {
				return nil, err
			}
			o.Dip, o.Azimuth, o.Polarity = a[0], a[1], a[2]
		}
		out = append(out, o)
	}
	return out, nil
}

// WriteInterfaces writes rows with the columns ReadInterfaces expects.
func WriteInterfaces(w io.Writer, rows []domain.InterfacePoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"X", "Y", "Z", "formation"}); err != nil {
		return err
	}
	for _, p := range rows {
		if err := cw.Write([]string{ftoa(p.X), ftoa(p.Y), ftoa(p.Z), p.Formation}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOrientations writes rows with dip, azimuth, polarity and gradient columns.
func WriteOrientations(w io.Writer, rows []domain.Orientation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"X", "Y", "Z", "dip", "azimuth", "polarity", "G_x", "G_y", "G_z", "formation"}); err != nil {
		return err
	}
	for _, o := range rows {
		rec := []string{ftoa(o.X), ftoa(o.Y), ftoa(o.Z), ftoa(o.Dip), ftoa(o.Azimuth), ftoa(o.Polarity), ftoa(o.Gx), ftoa(o.Gy), ftoa(o.Gz), o.Formation}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
