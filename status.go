package spiflash

import (
	"fmt"
	"strings"
	"time"
)

// StatusRegister is the chip's status register byte.
//
//	Bits| [W25X40CL|7.1 Status Register]       | [AT25DF041A|Table 8. Status Register Format]
//	----+--------------------------------------+---------------------------------------------
//	7   | SRP: Status Register Protect         | SPRL: Sector Protection Registers Locked
//	6:5 | Reserved                             | RES / EPE: Erase/Program Error
//	4:2 | BP2-0: Block Protect bit 2-0         | SWP: Software Protection Status
//	1   | WEL: Write Enable Latch              | WEL: Write Enable Latch
//	0   | BUSY: Erase/Write in progress        | RDY/BSY: Ready/Busy
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	s := []string{}
	if sr.StatusRegisterProtect() {
		s = append(s, "SRP")
	}
	if sr.BlockProtect2() {
		s = append(s, "BP2")
	}
	if sr.BlockProtect1() {
		s = append(s, "BP1")
	}
	if sr.BlockProtect0() {
		s = append(s, "BP0")
	}
	if sr.WriteEnabled() {
		s = append(s, "WEL")
	}
	if sr.Busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// ReadStatus returns the status register. It issues its command cycle
// directly, outside the dispatcher's busy gate, so it can be used to poll
// an in-progress program or erase.
func (f *Flash) ReadStatus() (StatusRegister, error) {
	buf := []byte{cmdReadStatus, 0}
	if err := f.tx(buf); err != nil {
		return 0, err
	}
	return StatusRegister(buf[1]), nil
}

// Busy reports whether an internal program or erase cycle is in progress.
func (f *Flash) Busy() (bool, error) {
	sr, err := f.ReadStatus()
	return sr.Busy(), err
}

// WaitReady polls the status register until the busy bit clears, pacing
// polls by Config.PollInterval. A timeout of 0 waits indefinitely; erase
// cycles can take many seconds, so any hard bound has to be generous (see
// Timings for per-chip expectations). When the timeout expires WaitReady
// returns ErrTimeout.
func (f *Flash) WaitReady(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		sr, err := f.ReadStatus()
		if err != nil {
			return err
		}
		if !sr.Busy() {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ErrTimeout
		}
		if f.cfg.PollInterval > 0 {
			time.Sleep(f.cfg.PollInterval)
		}
	}
}

// writeStatus writes the status register. Writing 0 clears all block
// protection bits (global unprotect).
func (f *Flash) writeStatus(v byte) error {
	return f.exec([]byte{cmdWriteStatus, v}, true)
}
