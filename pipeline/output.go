package pipeline

import (
	"fmt"
	"io"

	"github.com/raj347/nanocall/fast5"
)

// WriteFasta writes one record with the sequence wrapped at width.
func WriteFasta(w io.Writer, name, seq string, width int) error {
	if width < 1 {
		width = 80
	}
	if _, err := fmt.Fprintf(w, ">%s\n", name); err != nil {
		return err
	}
	for pos := 0; pos < len(seq); pos += width {
		end := pos + width
		if end > len(seq) {
			end = len(seq)
		}
		if _, err := fmt.Fprintln(w, seq[pos:end]); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats emits the per-read TSV summary.
func WriteStats(w io.Writer, reads []*fast5.Summary) error {
	for _, rs := range reads {
		if err := rs.WriteTSV(w); err != nil {
			return err
		}
	}
	return nil
}
