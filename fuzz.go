// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build gofuzz

package evtx

// Fuzz is the entry point github.com/dvyukov/go-fuzz drives: it attempts
// to open data as an in-memory EVTX image and fully drain its records,
// returning 1 when decoding produced at least one record so the fuzzer
// prioritizes inputs that get deep into the format.
func Fuzz(data []byte) int {
	f, err := OpenBytes(data, Options{})
	if err != nil {
		return 0
	}
	defer f.Close()

	records := f.Records()
	if len(records) == 0 {
		return 0
	}
	for _, rec := range records {
		_ = rec.XML("")
		if _, err := rec.JSON("", false); err != nil {
			return 0
		}
	}
	return 1
}
