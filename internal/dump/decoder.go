package dump

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrIncomplete = errors.New("dump ended before MAC_SNIFF_DUMP_END")

// File is one file recovered from a dump session.
type File struct {
	Path     string
	Declared int
	Data     []byte
}

// SizeMatches reports whether the received bytes agree with FILE_SIZE.
func (f File) SizeMatches() bool {
	return f.Declared == len(f.Data)
}

// Result is the decoded session. TotalBytes is the sender's figure, -1 when the
// trailer was missing.
type Result struct {
	ExpectedFiles int
	TotalBytes    int64
	Files         []File
}

type decoderState int

const (
	stateIdle decoderState = iota
	stateSession
	stateTrailer
	stateDone
)

// Decoder rebuilds files from protocol lines. Lines before MAC_SNIFF_DUMP_BEGIN
// are ignored so boot logs on the same port do not matter.
type Decoder struct {
	state   decoderState
	current *File
	result  Result
}

func NewDecoder() *Decoder {
	return &Decoder{result: Result{TotalBytes: -1}}
}

// Feed consumes one line and reports whether the session is complete.
func (d *Decoder) Feed(line string) (bool, error) {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return d.state == stateDone, nil
	}

	switch d.state {
	case stateIdle:
		if line == SessionBegin {
			d.state = stateSession
		}
		return false, nil
	case stateTrailer:
		d.state = stateDone
		if v, ok := strings.CutPrefix(line, TotalBytesPrefix); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return true, fmt.Errorf("%w: %q", ErrMalformed, line)
			}
			d.result.TotalBytes = n
		}
		return true, nil
	case stateDone:
		return true, nil
	}

	switch {
	case line == SessionEnd:
		d.flush()
		d.state = stateTrailer
	case line == FileEnd:
		d.flush()
	case strings.HasPrefix(line, NumFilesPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(line, NumFilesPrefix))
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		d.result.ExpectedFiles = n
	case strings.HasPrefix(line, FileBeginPrefix):
		d.flush()
		d.current = &File{Path: strings.TrimPrefix(line, FileBeginPrefix)}
	case strings.HasPrefix(line, FileSizePrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(line, FileSizePrefix))
		if err != nil || d.current == nil {
			return false, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
		d.current.Declared = n
	case strings.HasPrefix(line, ChunkPrefix):
		if d.current == nil {
			return false, fmt.Errorf("%w: chunk outside file", ErrMalformed)
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(line, ChunkPrefix))
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		d.current.Data = append(d.current.Data, raw...)
	}

	return false, nil
}

// Result returns what has been decoded so far.
func (d *Decoder) Result() Result {
	return d.result
}

// Done reports whether the trailer has been seen.
func (d *Decoder) Done() bool {
	return d.state == stateDone
}

func (d *Decoder) flush() {
	if d.current == nil {
		return
	}
	d.result.Files = append(d.result.Files, *d.current)
	d.current = nil
}

// Decode reads a whole session from r. A stream that stops after
// MAC_SNIFF_DUMP_END but before the trailer still decodes.
func Decode(r io.Reader) (Result, error) {
	d := NewDecoder()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	for sc.Scan() {
		done, err := d.Feed(sc.Text())
		if err != nil {
			return d.Result(), err
		}
		if done {
			return d.Result(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return d.Result(), fmt.Errorf("read dump: %w", err)
	}
	if d.state == stateTrailer {
		return d.Result(), nil
	}

	return d.Result(), ErrIncomplete
}
