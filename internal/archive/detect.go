// Package archive detects and safely extracts the per-batch archives
// produced upstream. Format detection reads the first bytes of the file
// rather than trusting any filename or extension, since the producer is an
// external system outside this pipeline's control.
package archive

import (
	"bufio"
	"io"

	"github.com/contentmod/audio-pipeline/domain/model"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{0x42, 0x5a, 0x68} // "BZh"
	tarMagic   = []byte("ustar")
)

// tarMagicOffset is where the "ustar" magic sits inside a 512-byte tar header.
const tarMagicOffset = 257

// Detect reads the leading bytes of r and reports the archive format,
// without consuming more of the stream than buffering requires. Callers
// that need to read the payload afterward should wrap their source in a
// bufio.Reader and pass that same reader in, since Detect only peeks.
func Detect(r *bufio.Reader) (model.ArchiveFormat, error) {
	head, err := r.Peek(512)
	if err != nil && err != io.EOF {
		return model.ArchiveFormatUnknown, err
	}

	if len(head) >= 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		return model.ArchiveFormatGzip, nil
	}
	if len(head) >= 3 && head[0] == bzip2Magic[0] && head[1] == bzip2Magic[1] && head[2] == bzip2Magic[2] {
		return model.ArchiveFormatBzip2, nil
	}
	if len(head) >= tarMagicOffset+5 && string(head[tarMagicOffset:tarMagicOffset+5]) == string(tarMagic) {
		return model.ArchiveFormatPlainTar, nil
	}

	return model.ArchiveFormatUnknown, nil
}
