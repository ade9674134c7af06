package domain

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DecodePayload reads a model JSON document. Shape problems (missing
// metadata axes, missing data, wrongly typed fields) wrap ErrSchema.
func DecodePayload(r io.Reader) (RawPayload, error) {
	var raw RawPayload
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return RawPayload{}, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		return RawPayload{}, fmt.Errorf("decode model payload: %w", err)
	}
	if _, err := NewAxes(raw.Metadata); err != nil {
		return RawPayload{}, err
	}
	if raw.Data == nil {
		return RawPayload{}, fmt.Errorf("%w: missing data", ErrSchema)
	}
	return raw, nil
}

// CaseFormat selects the encoding of a case-count document.
type CaseFormat int

const (
	// CasesJSON is an array of {location, date, cases} objects.
	CasesJSON CaseFormat = iota
	// CasesTSV is a tab-separated table with a location/date/cases header.
	CasesTSV
)

// CaseFormatFor guesses the format from a file name or URL.
func CaseFormatFor(location string) CaseFormat {
	l := strings.ToLower(location)
	if strings.HasSuffix(l, ".tsv") {
		return CasesTSV
	}
	return CasesJSON
}

// DecodeCaseCounts reads auxiliary case counts in the given format.
func DecodeCaseCounts(r io.Reader, format CaseFormat) ([]CaseCount, error) {
	if format == CasesTSV {
		return decodeCaseTSV(r)
	}
	var rows []CaseCount
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode case counts: %w", err)
	}
	return rows, nil
}

func decodeCaseTSV(r io.Reader) ([]CaseCount, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read case counts header: %w", err)
	}
	col := map[string]int{"location": -1, "date": -1, "cases": -1}
	for i, h := range header {
		if _, ok := col[strings.TrimSpace(h)]; ok {
			col[strings.TrimSpace(h)] = i
		}
	}
	for name, i := range col {
		if i < 0 {
			return nil, fmt.Errorf("case counts: missing %q column", name)
		}
	}

	var rows []CaseCount
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read case counts line %d: %w", line, err)
		}
		cases, err := parseCases(rec[col["cases"]])
		if err != nil {
			return nil, fmt.Errorf("case counts line %d: %w", line, err)
		}
		rows = append(rows, CaseCount{
			Location: rec[col["location"]],
			Date:     rec[col["date"]],
			Cases:    cases,
		})
	}
	return rows, nil
}

func parseCases(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid cases value %q", s)
	}
	return int64(math.Trunc(f)), nil
}
