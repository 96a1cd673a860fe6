package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/skobkin/macsniff/internal/capture"
)

const (
	HeaderLen = 4
	RecordLen = capture.MACLen

	// maxPrealloc caps the slice capacity taken from an untrusted count header.
	maxPrealloc = 4096
)

var ErrShortHeader = errors.New("record file shorter than its header")

// EncodedSize is the on-flash size of a file holding n addresses.
func EncodedSize(n int) uint64 {
	return HeaderLen + uint64(n)*RecordLen
}

// EncodeRecords writes the u32 little-endian count followed by each address.
func EncodeRecords(w io.Writer, macs []capture.MAC) (int64, error) {
	bw := bufio.NewWriter(w)

	var header [HeaderLen]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(macs))) // #nosec G115 -- a scan never holds 2^32 addresses
	if _, err := bw.Write(header[:]); err != nil {
		return 0, fmt.Errorf("write record header: %w", err)
	}
	for _, mac := range macs {
		if _, err := bw.Write(mac[:]); err != nil {
			return 0, fmt.Errorf("write record: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flush records: %w", err)
	}

	return int64(EncodedSize(len(macs))), nil // #nosec G115
}

// DecodeRecords reads up to the header count of addresses. A short trailing
// record ends decoding without error, so a file cut off mid-write still yields
// every complete record before the cut. The returned count is the header value.
func DecodeRecords(r io.Reader) ([]capture.MAC, uint32, error) {
	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrShortHeader
		}
		return nil, 0, fmt.Errorf("read record header: %w", err)
	}
	count := binary.LittleEndian.Uint32(header[:])

	macs := make([]capture.MAC, 0, min(int(count), maxPrealloc))
	for i := uint32(0); i < count; i++ {
		var mac capture.MAC
		if _, err := io.ReadFull(r, mac[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return macs, count, fmt.Errorf("read record %d: %w", i, err)
		}
		macs = append(macs, mac)
	}

	return macs, count, nil
}
