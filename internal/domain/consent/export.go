package consent

import (
	"bytes"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
)

// Export is a rendered usage log download.
type Export struct {
	Filename string
	Data     []byte
	// Count is the number of exported entries.
	Count int
}

// Gzip returns a copy of x compressed with pgzip and suffixed ".gz".
func (x Export) Gzip() (Export, error) {
	data, err := Compress(x.Data)
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: x.Filename + ".gz", Data: data, Count: x.Count}, nil
}

// Filename returns usage_<YYYY-MM-DD-HH-MM-SS>.csv for t in UTC.
func Filename(t time.Time) string {
	return "usage_" + t.UTC().Format("2006-01-02-15-04-05") + ".csv"
}

// CSV renders entries with a header that is the union of all keys in
// first-seen order. Data fields are always quoted; missing fields are empty.
// Header cells are quoted only when the key holds a comma, quote or line
// break.
func CSV(entries []Entry) []byte {
	var keys []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, f := range e {
			if _, ok := seen[f.Key]; ok {
				continue
			}
			seen[f.Key] = struct{}{}
			keys = append(keys, f.Key)
		}
	}

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if strings.ContainsAny(k, ",\"\r\n") {
			writeQuoted(&buf, k)
		} else {
			buf.WriteString(k)
		}
	}
	for _, e := range entries {
		buf.WriteByte('\n')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			var v string
			if f, ok := e.Get(k); ok && f.Kind != KindNull {
				v = f.Value
			}
			writeQuoted(&buf, v)
		}
	}
	return buf.Bytes()
}

func writeQuoted(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	buf.WriteString(strings.ReplaceAll(s, `"`, `""`))
	buf.WriteByte('"')
}

// Compress gzips data using parallel compression.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}
