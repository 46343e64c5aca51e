package main

import (
	"flag"
	"os"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		addr     string
		filename string
		erase    bool
		verify   bool
	)
	jedec := jedecFlag(fs)
	fs.StringVar(&addr, "a", "0", "start address")
	fs.StringVar(&filename, "f", "", "input file")
	fs.BoolVar(&erase, "e", false, "erase the target range first")
	fs.BoolVar(&verify, "v", false, "check the target range is erased before writing")
	fs.Parse(args)

	if filename == "" {
		fatalUsage("input file is required")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		fatalf("failed to read file: %v", err)
	}

	f := openFlash(*jedec)
	defer f.End()

	start := parseAddr(addr)

	if erase {
		if err := f.Erase(start, len(data)); err != nil {
			fatalf("erase flash failed: %v", err)
		}
	}

	if verify {
		// Check page by page; RegionIsEmpty reads the range into memory.
		for off := 0; off < len(data); off += 256 {
			n := min(len(data)-off, 256)
			empty, err := f.RegionIsEmpty(start+uint32(off), n)
			if err != nil {
				fatalf("read flash failed: %v", err)
			}
			if !empty {
				fatalf("target range is not erased at 0x%06X", start+uint32(off))
			}
		}
	}

	if err := f.WriteBytes(start, data); err != nil {
		fatalf("write flash failed: %v", err)
	}

	// The last page program still runs inside the chip.
	if err := f.WaitReady(2 * f.Timings().PageProgram); err != nil {
		fatalf("flash not ready: %v", err)
	}
}
