package dump

import (
	"errors"

	"github.com/skobkin/macsniff/internal/transport"
)

// Wire protocol markers. Every marker is one line; values follow a colon.
const (
	SessionBegin = "MAC_SNIFF_DUMP_BEGIN"
	SessionEnd   = "MAC_SNIFF_DUMP_END"
	FileEnd      = "FILE_END"

	NumFilesPrefix   = "NUM_FILES:"
	TotalBytesPrefix = "TOTAL_BYTES:"
	FileBeginPrefix  = "FILE_BEGIN:"
	FileSizePrefix   = "FILE_SIZE:"
	ChunkPrefix      = "CHUNK:"
)

const (
	DefaultChunkSize = 64
	// MaxChunkSize keeps a hex CHUNK line within the transport line limit.
	MaxChunkSize = (transport.MaxLineLen - len(ChunkPrefix)) / 2
)

var ErrMalformed = errors.New("malformed dump line")

// LineWriter is the host channel. Implementations append the line terminator.
type LineWriter interface {
	WriteLine(line string) error
}

// LineWriterFunc adapts a function to LineWriter.
type LineWriterFunc func(line string) error

func (f LineWriterFunc) WriteLine(line string) error {
	return f(line)
}
