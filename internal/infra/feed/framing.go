package feed

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/medkit/livefeed/internal/biz/domain"
)

const (
	// DefaultEventMarker prefixes every event line of the feed
	DefaultEventMarker = "data:"

	maxLineSize = 1024 * 1024
)

// ErrLineTooLong is reported through onMalformed for a line that outgrew the read buffer
var ErrLineTooLong = errors.New("feed line exceeds maximum size")

// lineReader turns a byte stream into feed events
type lineReader struct {
	marker  []byte
	maxLine int
	now     func() time.Time

	// onMalformed is called with the offending line (or its head, when too long) and the error
	onMalformed func(line []byte, err error)

	// discarding is set while skipping the rest of an oversized line
	discarding bool
}

func newLineReader(marker string) *lineReader {
	if marker == "" {
		marker = DefaultEventMarker
	}
	return &lineReader{
		marker:  []byte(marker),
		maxLine: maxLineSize,
		now:     time.Now,
	}
}

// split is a bufio.SplitFunc that only yields lines whose '\n' has arrived.
// Unlike bufio.ScanLines, an unterminated tail at EOF is discarded, never returned truncated.
// A line that fills the whole buffer is skipped up to its terminator instead of failing the scan.
func (lr *lineReader) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	i := bytes.IndexByte(data, '\n')
	if lr.discarding {
		if i < 0 {
			return len(data), nil, nil
		}
		lr.discarding = false
		return i + 1, nil, nil
	}
	if i >= 0 {
		line := data[:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		return i + 1, line, nil
	}
	if len(data) >= lr.maxLine {
		lr.discarding = true
		if lr.onMalformed != nil {
			lr.onMalformed(data[:min(len(data), 64)], ErrLineTooLong)
		}
		return len(data), nil, nil
	}
	// Request more data; at EOF the scanner stops with the partial line unconsumed
	return 0, nil, nil
}

// read consumes r until EOF or an I/O error, calling deliver for every decoded event.
// It returns nil on a clean end of stream.
func (lr *lineReader) read(r io.Reader, deliver func(domain.StreamEvent) bool) error {
	lr.discarding = false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, min(64*1024, lr.maxLine)), lr.maxLine)
	scanner.Split(lr.split)

	for scanner.Scan() {
		ev, ok := lr.parseLine(scanner.Bytes())
		if !ok {
			continue
		}
		if !deliver(ev) {
			return nil
		}
	}
	return scanner.Err()
}

// parseLine decodes one complete line; ok is false for non-event and malformed lines
func (lr *lineReader) parseLine(line []byte) (domain.StreamEvent, bool) {
	if !bytes.HasPrefix(line, lr.marker) {
		return domain.StreamEvent{}, false
	}
	doc := bytes.TrimSpace(line[len(lr.marker):])
	if len(doc) == 0 {
		return domain.StreamEvent{}, false
	}

	ev, err := domain.DecodeStreamEvent(doc, lr.now())
	if err != nil {
		if lr.onMalformed != nil {
			lr.onMalformed(line, err)
		}
		return domain.StreamEvent{}, false
	}
	return ev, true
}
