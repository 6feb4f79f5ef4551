// Package ingest turns ping log text into typed records.
//
// A log line reads "YYYYMMDDhhmmss,<addr>/<prefix>,<msec>", where any
// response that is not a decimal number (conventionally "-") is a timeout.
// Files start with a header line which is skipped.
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gustycube/pingscope/internal/types"
)

// TimestampLayout is the fixed-width timestamp of a log line, read as UTC.
const TimestampLayout = "20060102150405"

// ErrMalformedRecord is returned for a line that cannot be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// ParseRecord parses one log line.
func ParseRecord(line string) (types.Record, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return types.Record{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedRecord, len(fields))
	}
	at, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(fields[0]), time.UTC)
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRecord, err)
	}
	addr, err := netip.ParsePrefix(strings.TrimSpace(fields[1]))
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: address: %v", ErrMalformedRecord, err)
	}
	return types.Record{At: at, Addr: addr, Response: parseResponse(strings.TrimSpace(fields[2]))}, nil
}

// parseResponse reads the third field. Anything but plain digits, a signed
// value like "-5" included, is a timeout, so a negative round-trip time
// never reaches types.OK.
func parseResponse(s string) types.Response {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return types.Timeout
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Too many digits to be a round-trip time.
		return types.Timeout
	}
	return types.OK(ms)
}

// FormatRecord renders rec as a log line.
func FormatRecord(rec types.Record) string {
	return rec.At.UTC().Format(TimestampLayout) + "," + rec.Addr.String() + "," + rec.Response.String()
}

// Reader reads records from a log stream, skipping the header line and blank
// lines.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	return &Reader{sc: sc}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (types.Record, error) {
	for r.sc.Scan() {
		r.line++
		if r.line == 1 {
			continue
		}
		text := strings.TrimSpace(r.sc.Text())
		if text == "" {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			return types.Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return types.Record{}, err
	}
	return types.Record{}, io.EOF
}

// ReadAll reads every record of the stream.
func ReadAll(r io.Reader) ([]types.Record, error) {
	rd := NewReader(r)
	var out []types.Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// LoadFile reads every record of a log file.
func LoadFile(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	recs, err := ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}
