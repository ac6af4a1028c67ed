// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package evtx

import (
	"os"

	"github.com/evtxgo/evtx/internal/elog"
)

// Options configures how a File is opened and decoded, mirroring the
// teacher's zero-value-friendly Options struct: every field has a usable
// default when left unset.
type Options struct {
	// ValidateChecksums, when true, turns a chunk header/events checksum
	// mismatch into ErrChunkChecksum instead of a logged warning.
	ValidateChecksums bool

	// Indent is a per-level indent string a caller can keep alongside the
	// other options. File does not read it: EventRecord.XML and
	// EventRecord.JSON take the indent as an argument, and only that
	// argument affects their output.
	Indent string

	// SeparateJSONAttributes records whether a caller wants element
	// attributes nested under an "#attributes" key instead of flattened as
	// "@name" keys. File does not read it: only the separateAttrs argument
	// of EventRecord.JSON selects the layout.
	SeparateJSONAttributes bool

	// ANSICodec names the single-byte codec used to decode AnsiString
	// values and arrays. Empty selects DefaultANSICodec.
	ANSICodec string

	// NumThreads bounds how many chunks are decoded concurrently.
	// Zero or negative selects a sequential, single-goroutine decode.
	NumThreads int

	// Logger receives warnings for tolerated anomalies: file header and
	// chunk checksum mismatches, skipped chunks, and skipped records.
	// Substitution-array cursor resynchronization and
	// dependency-identifier fallbacks are not logged. A nil Logger gets a
	// default elog.Helper writing to os.Stderr at warn level.
	Logger elog.Logger
}

func (o Options) resolveLogger() *elog.Helper {
	if o.Logger == nil {
		base := elog.NewStdLogger(os.Stderr)
		return elog.NewHelper(elog.NewFilter(base, elog.FilterLevel(elog.LevelWarn)))
	}
	return elog.NewHelper(o.Logger)
}
