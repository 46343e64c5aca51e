package main

import (
	"flag"
	"fmt"
	"os"
)

func infoCommand(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	jedec := jedecFlag(fs)
	fs.Parse(args)

	f := openFlash(*jedec)
	defer f.End()

	switch cmd {
	case "id":
		if !f.Found() {
			fatalf("no flash chip found")
		}
		id, err := f.ReadDeviceID()
		if err != nil {
			fatalf("read device ID failed: %v", err)
		}
		name := f.DeviceName()
		if name == "" {
			fmt.Fprintf(os.Stderr, "unknown flash ID\n")
		}
		fmt.Printf("%04X\t%s\n", id, name)

	case "uid":
		uid, err := f.ReadUniqueID()
		if err != nil {
			fatalf("read unique ID failed: %v", err)
		}
		fmt.Printf("%X\n", uid)

	case "status":
		sr, err := f.ReadStatus()
		if err != nil {
			fatalf("read status register failed: %v", err)
		}
		fmt.Println(sr)

	case "sleep":
		if err := f.Sleep(); err != nil {
			fatalf("power down failed: %v", err)
		}

	case "wake":
		if err := f.Wakeup(); err != nil {
			fatalf("release power down failed: %v", err)
		}
	}
}
