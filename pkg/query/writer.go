package query

import (
	"fmt"
	"hash/crc32"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/go-pkgz/stringutils"
)

// Writer prints results as tab aligned tables, each prefixed by its statement.
// Prefix colors are picked by statement text unless monochrome.
type Writer struct {
	wr         io.Writer
	monochrome bool
}

// NewWriter makes a Writer for wr.
func NewWriter(wr io.Writer, monochrome bool) *Writer {
	return &Writer{wr: wr, monochrome: monochrome}
}

// Write prints a single result.
func (w *Writer) Write(res Result) error {
	colorizer := w.colorizer(res.SQL)
	prefix := fmt.Sprintf("[%s]", stringutils.Truncate(strings.Join(strings.Fields(res.SQL), " "), 60))

	if res.Err != nil {
		_, err := io.WriteString(w.wr, colorizer("%s ! %v\n", prefix, res.Err))
		return err
	}
	if _, err := io.WriteString(w.wr, colorizer("%s %d row(s) in %v\n", prefix, len(res.Rows), res.Duration)); err != nil {
		return err
	}
	if len(res.Columns) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w.wr, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = Format(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// WriteAll prints all results, stops on the first write error.
func (w *Writer) WriteAll(res []Result) error {
	for _, r := range res {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("can't write result: %w", err)
		}
	}
	return nil
}

// Format renders a scanned value for display.
func Format(v any) string {
	switch vv := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(vv)
	}
	return fmt.Sprint(v)
}

func (w *Writer) colorizer(key string) func(format string, a ...any) string {
	if w.monochrome {
		return fmt.Sprintf
	}
	colors := []color.Attribute{
		color.FgHiRed, color.FgHiGreen, color.FgHiYellow,
		color.FgHiBlue, color.FgHiMagenta, color.FgHiCyan,
	}
	c := colors[int(crc32.ChecksumIEEE([]byte(key)))%len(colors)]
	return color.New(c).SprintfFunc()
}
