package export

import "errors"

var errNoHeaders = errors.New("dataset has no headers")

// Dataset is a header-keyed table shared by the CSV, XLSX and PDF renderers.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Append adds a row keyed by header. Keys outside Headers are ignored on render.
func (d *Dataset) Append(row map[string]string) {
	d.Rows = append(d.Rows, row)
}

// record projects row i onto the header order, reusing buf when it fits.
func (d *Dataset) record(i int, buf []string) []string {
	if cap(buf) < len(d.Headers) {
		buf = make([]string, len(d.Headers))
	}
	buf = buf[:len(d.Headers)]
	for c, h := range d.Headers {
		buf[c] = d.Rows[i][h]
	}
	return buf
}
