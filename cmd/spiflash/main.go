package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	spiflash "github.com/davidfobar/SPIFlash"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	spiflash <command> [arguments]

Commands:
	id	 print JEDEC ID and chip name
	uid	 print the 64-bit unique ID
	status	 print the status register
	read	 read flash memory
	write	 write flash memory
	erase	 erase flash memory
	sleep	 put the chip into power-down mode
	wake	 release the chip from power-down mode
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	switch cmd := flag.Arg(0); cmd {
	case "id", "uid", "status", "sleep", "wake":
		infoCommand(cmd, flag.Args()[1:])
	case "read":
		readCommand(flag.Args()[1:])
	case "write":
		writeCommand(flag.Args()[1:])
	case "erase":
		eraseCommand(flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

// jedecFlag registers the common -jedec flag on fs.
func jedecFlag(fs *flag.FlagSet) *uint {
	return fs.Uint("jedec", 0, "expected JEDEC ID, e.g. 0xEF30 (0 disables the check)")
}

func openFlash(jedecID uint) *spiflash.Flash {
	port, cs, err := spiflash.OpenFTDI()
	if err != nil {
		fatalf("%v", err)
	}

	f := spiflash.New(port, cs, spiflash.Config{JEDECID: uint16(jedecID)})
	if err := f.Init(); err != nil {
		fatalf("flash initialization failed: %v", err)
	}
	return f
}

// parseAddr accepts decimal or 0x-prefixed 24-bit addresses.
func parseAddr(s string) uint32 {
	addr, err := strconv.ParseUint(s, 0, 32)
	if err != nil || addr > 0xFFFFFF {
		fatalUsage("invalid address: %q", s)
	}
	return uint32(addr)
}
