package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		addr    string
		nread   int
		outFile string
	)
	jedec := jedecFlag(fs)
	fs.StringVar(&addr, "a", "0", "start address")
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	f := openFlash(*jedec)
	defer f.End()

	data := make([]byte, nread)
	if err := f.ReadBytes(parseAddr(addr), data); err != nil {
		fatalf("read flash failed: %v", err)
	}

	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fatalf("write file failed: %v", err)
	}
}
