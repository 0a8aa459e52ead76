package preview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span of the served file.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

func (r ByteRange) Header(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange parses a single-range Range header against a file of size bytes.
// ok is false when the header is empty. For a multi-range header only the
// first range is honoured; video players never send more than one.
func ParseRange(header string, size int64) (r ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}

	ranges, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}
	if first, _, multi := strings.Cut(ranges, ","); multi {
		ranges = first
	}

	startStr, endStr, found := strings.Cut(strings.TrimSpace(ranges), "-")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}

	if startStr == "" {
		suffix, perr := strconv.ParseInt(endStr, 10, 64)
		if perr != nil || suffix <= 0 {
			return ByteRange{}, false, ErrInvalidRange
		}
		r.Start = max(size-suffix, 0)
		r.End = size - 1
	} else {
		start, perr := strconv.ParseInt(startStr, 10, 64)
		if perr != nil || start < 0 {
			return ByteRange{}, false, ErrInvalidRange
		}
		r.Start = start
		r.End = size - 1
		if endStr != "" {
			end, perr := strconv.ParseInt(endStr, 10, 64)
			if perr != nil {
				return ByteRange{}, false, ErrInvalidRange
			}
			r.End = min(end, size-1)
		}
	}

	if r.Start > r.End || r.Start >= size {
		return ByteRange{}, false, ErrUnsatisfiable
	}
	return r, true, nil
}
