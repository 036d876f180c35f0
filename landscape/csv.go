package landscape

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/forage/patch"
)

// WriteCSV writes all rows with a header line (t,state,F0,F1,patch).
func (tb *Table) WriteCSV(w io.Writer) error {
	if err := gocsv.Marshal(tb.records, w); err != nil {
		return fmt.Errorf("writing landscape csv: %w", err)
	}
	return nil
}

// ReadCSV reads rows written by WriteCSV. The CSV carries no bounds, so the
// caller supplies them and every row must fall inside.
func ReadCSV(r io.Reader, b patch.Bounds) (*Table, error) {
	var rows []Record
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("reading landscape csv: %w", err)
	}
	return FromRecords(b, rows)
}

// Format prints one line per row: position, t, state, F0, F1, patch.
func (tb *Table) Format(w io.Writer) error {
	for i, r := range tb.records {
		if _, err := fmt.Fprintf(w, "[%3d] %3d %3d %6.3f %6.3f %2d\n",
			i, r.T, r.State, r.FitnessNow, r.FitnessNext, r.ChosenPatch); err != nil {
			return err
		}
	}
	return nil
}
