// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors covering the taxonomy from the on-disk format down to
// model assembly. Callers should compare against these with errors.Is,
// or recover them from a wrapped error with errors.Cause.
var (
	// ErrInvalidFileSize is returned when the buffer is smaller than a
	// single file header.
	ErrInvalidFileSize = errors.New("not an evtx file, smaller than the file header")

	// ErrFileMagicNotFound is returned when the file header signature does
	// not read "ElfFile\x00".
	ErrFileMagicNotFound = errors.New("file header magic not found")

	// ErrInvalidHeaderBlockSize is returned when header_block_size exceeds
	// the total file size.
	ErrInvalidHeaderBlockSize = errors.New("header block size exceeds file size")

	// ErrFileHeaderChecksum is returned when the file header's CRC32 does
	// not match the recomputed value in strict validation mode.
	ErrFileHeaderChecksum = errors.New("file header checksum mismatch")

	// ErrChunkMagicNotFound is returned when a chunk's signature does not
	// read "ElfChnk\x00" and the chunk is not all-zero (unused).
	ErrChunkMagicNotFound = errors.New("chunk header magic not found")

	// ErrChunkChecksum is returned when a chunk's header or events CRC32
	// does not match the recomputed value in strict validation mode.
	ErrChunkChecksum = errors.New("chunk checksum mismatch")

	// ErrRecordMagicNotFound is returned when a record header's magic does
	// not read 0x00002a2a, terminating iteration for that chunk.
	ErrRecordMagicNotFound = errors.New("record header magic not found")

	// ErrRecordTooSmall is returned when a record's declared size is
	// smaller than the 24-byte record header.
	ErrRecordTooSmall = errors.New("record size smaller than its header")

	// ErrOutsideBoundary is returned when a read would cross the bounds of
	// the backing byte region.
	ErrOutsideBoundary = errors.New("read outside buffer boundary")

	// ErrUnexpectedValueType is returned when a value-type byte is not one
	// of the documented BinXML value types.
	ErrUnexpectedValueType = errors.New("unexpected value type")

	// ErrUnexpectedToken is returned when a token byte is not one of the
	// documented BinXML tokens.
	ErrUnexpectedToken = errors.New("unexpected token")

	// ErrBadName is returned when a name blob is truncated or reports an
	// impossible length.
	ErrBadName = errors.New("malformed name blob")

	// ErrTemplateMissing is returned when a TemplateInstance references an
	// offset that is neither cached nor parseable on the fly.
	ErrTemplateMissing = errors.New("template definition not found")

	// ErrTemplateRecursion is returned when template/embedded-BinXML
	// expansion exceeds the configured recursion depth.
	ErrTemplateRecursion = errors.New("template expansion recursion limit exceeded")

	// ErrModelState is returned when the model assembler receives a token
	// stream violating its state machine's preconditions.
	ErrModelState = errors.New("invalid model assembly state")

	// ErrUnknownCodec is returned when Options.ANSICodec names a codec this
	// package does not implement.
	ErrUnknownCodec = errors.New("unknown ansi codec")
)

// offsetError wraps a sentinel error with the byte offset and, when known,
// the record id and chunk index at which it was detected. It satisfies the
// unwrap protocol so errors.Is/errors.As still see the sentinel.
type offsetError struct {
	cause      error
	offset     uint32
	chunkIndex int
	recordID   uint64
	hasRecord  bool
}

func (e *offsetError) Error() string {
	if e.hasRecord {
		return fmt.Sprintf("%v (chunk %d, record %d, offset 0x%x)",
			e.cause, e.chunkIndex, e.recordID, e.offset)
	}
	return fmt.Sprintf("%v (chunk %d, offset 0x%x)", e.cause, e.chunkIndex, e.offset)
}

func (e *offsetError) Unwrap() error { return e.cause }
func (e *offsetError) Cause() error  { return e.cause }

// wrapAt attaches chunk/offset context to err, suitable for chunk-level
// failures that occur before any record id is known.
func wrapAt(err error, chunkIndex int, offset uint32) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&offsetError{cause: err, offset: offset, chunkIndex: chunkIndex})
}

// wrapRecordAt attaches chunk/record/offset context to err for a failure
// encountered while decoding a specific record.
func wrapRecordAt(err error, chunkIndex int, recordID uint64, offset uint32) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&offsetError{
		cause: err, offset: offset, chunkIndex: chunkIndex,
		recordID: recordID, hasRecord: true,
	})
}
