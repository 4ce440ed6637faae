package audioio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteEnvelopeCSV writes one column per named sequence, indexed by frame.
// Shorter sequences leave their cells empty.
func WriteEnvelopeCSV(path string, names []string, series [][]float64) error {
	if len(names) != len(series) {
		return fmt.Errorf("envelope csv: %d names for %d series", len(names), len(series))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"index"}, names...)); err != nil {
		return err
	}
	rows := 0
	for _, s := range series {
		rows = max(rows, len(s))
	}
	rec := make([]string, len(series)+1)
	for i := 0; i < rows; i++ {
		rec[0] = strconv.Itoa(i)
		for j, s := range series {
			rec[j+1] = ""
			if i < len(s) {
				rec[j+1] = strconv.FormatFloat(s[i], 'g', 8, 64)
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
