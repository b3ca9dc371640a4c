package command

import (
	"github.com/pkg/errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned by ParseLine for lines not of the form "[<timestamp>] <VERB>;<arg>;...".
var ErrMalformed = errors.New("malformed external command")

// ParseLine splits an external command line into its timestamp, verb and arguments.
// The timestamp is given in seconds since the epoch and may have a fractional part.
func ParseLine(line string) (time.Time, string, []string, error) {
	line = strings.TrimRight(line, "\r\n")

	if !strings.HasPrefix(line, "[") {
		return time.Time{}, "", nil, errors.Wrap(ErrMalformed, "missing timestamp")
	}

	end := strings.IndexByte(line, ']')
	if end < 0 {
		return time.Time{}, "", nil, errors.Wrap(ErrMalformed, "unterminated timestamp")
	}

	ts, err := parseTime(line[1:end])
	if err != nil || !ts.After(time.Unix(0, 0)) {
		return time.Time{}, "", nil, errors.Wrapf(ErrMalformed, "invalid timestamp %q", line[1:end])
	}

	fields := strings.Split(strings.TrimLeft(line[end+1:], " \t"), ";")
	verb := fields[0]
	if verb == "" {
		return time.Time{}, "", nil, errors.Wrap(ErrMalformed, "missing command")
	}

	return ts, verb, fields[1:], nil
}

// parseTime parses seconds since the epoch.
func parseTime(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp %q", s)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, errors.Errorf("invalid timestamp %q", s)
	}

	sec, frac := math.Modf(f)

	return time.Unix(int64(sec), int64(frac*1e9)), nil
}
