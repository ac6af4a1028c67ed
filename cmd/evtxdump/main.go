// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/evtxgo/evtx"
	"github.com/spf13/cobra"
)

var (
	asJSON         bool
	separateAttrs  bool
	indent         string
	strict         bool
	numThreads     int
	summary        bool
)

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func dumpFile(path string) {
	log.Printf("Processing filename %s", path)

	opts := evtx.Options{
		ValidateChecksums: strict,
		Indent:            indent,
		NumThreads:        numThreads,
	}
	f, err := evtx.Open(path, opts)
	if err != nil {
		log.Printf("error while opening file: %s, reason: %s", path, err)
		return
	}
	defer f.Close()

	it := f.Iterator()
	defer it.Close()
	for it.Next() {
		rec := it.Record()
		if asJSON {
			buf, err := rec.JSON(indent, separateAttrs)
			if err != nil {
				log.Printf("error rendering record %d: %s", rec.RecordID, err)
				continue
			}
			fmt.Println(string(buf))
			continue
		}
		fmt.Println(rec.XML(indent))
	}

	if summary {
		report := f.Report()
		fmt.Printf("chunks with checksum mismatch: %v\n", report.ChecksumMismatches)
		fmt.Printf("skipped chunks: %v\n", report.SkippedChunks)
		fmt.Printf("skipped records: %d\n", len(report.SkippedRecords))
	}
}

func dump(cmd *cobra.Command, args []string) {
	path := args[0]

	if !isDirectory(path) {
		dumpFile(path)
		return
	}

	var fileList []string
	filepath.Walk(path, func(p string, f os.FileInfo, err error) error {
		if !isDirectory(p) {
			fileList = append(fileList, p)
		}
		return nil
	})
	for _, file := range fileList {
		dumpFile(file)
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "evtxdump",
		Short: "A Windows Event Log (EVTX) file parser",
		Long:  "Reads Windows Event Log files and prints their records as XML or JSON",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.0.1")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dumps records from an EVTX file",
		Long:  "Decodes every record in the given EVTX file (or every file under a directory) and prints it",
		Args:  cobra.MinimumNArgs(1),
		Run:   dump,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Print records as JSON instead of XML")
	dumpCmd.Flags().BoolVarP(&separateAttrs, "separate-attributes", "", false, "Nest JSON attributes under #attributes")
	dumpCmd.Flags().StringVarP(&indent, "indent", "i", "  ", "Indent string, empty for compact output")
	dumpCmd.Flags().BoolVarP(&strict, "strict", "", false, "Reject a file header or skip a chunk whose checksum does not match, instead of decoding it with a warning")
	dumpCmd.Flags().IntVarP(&numThreads, "threads", "t", 1, "Number of chunks to decode concurrently")
	dumpCmd.Flags().BoolVarP(&summary, "summary", "", false, "Print a validation summary after dumping")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
