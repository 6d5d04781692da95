package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrNoCounts is returned when a counts file has no data rows.
var ErrNoCounts = errors.New("sim: counts file is empty")

// ParseCounts returns the surviving human count from a counts CSV: column 1
// of the last non-empty row. Blank lines are ignored and rows may differ in
// width.
func ParseCounts(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var last []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("sim: read counts: %w", err)
		}
		last = rec
	}
	if last == nil {
		return 0, ErrNoCounts
	}
	if len(last) < 2 {
		return 0, fmt.Errorf("sim: last counts row %q has no human column", strings.Join(last, ","))
	}
	return parseCount(last[1])
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("sim: human count %q is not a non-negative integer", s)
	}
	return int(f), nil
}
