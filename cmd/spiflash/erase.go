package main

import (
	"flag"
)

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		addr string
		size int
		chip bool
	)
	jedec := jedecFlag(fs)
	fs.StringVar(&addr, "a", "0", "start address (4KB aligned)")
	fs.IntVar(&size, "n", 4096, "number of bytes to erase (rounded up to whole blocks)")
	fs.BoolVar(&chip, "chip", false, "erase the entire chip")
	fs.Parse(args)

	f := openFlash(*jedec)
	defer f.End()

	if chip {
		if err := f.EraseChip(); err != nil {
			fatalf("chip erase failed: %v", err)
		}
		if err := f.WaitReady(2 * f.Timings().EraseChip); err != nil {
			fatalf("flash not ready: %v", err)
		}
		return
	}

	if err := f.Erase(parseAddr(addr), size); err != nil {
		fatalf("erase flash failed: %v", err)
	}
	if err := f.WaitReady(2 * f.Timings().Erase64K); err != nil {
		fatalf("flash not ready: %v", err)
	}
}
