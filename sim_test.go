package spiflash

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// chipSim emulates a 4Mbit SPI NOR flash chip behind a spi.Conn. It models
// the properties the driver depends on: the write-enable latch, the busy
// bit, power-down unresponsiveness, and in-page address wraparound of the
// page-program command, so a driver bug that crosses a page boundary
// corrupts the simulated array exactly as it would the real one.
type chipSim struct {
	cs  *gpiotest.Pin
	mem []byte

	id    uint16
	idSeq []uint16 // overrides id per successive read when non-empty
	uid   [8]byte

	wel        bool
	asleep     bool
	protection byte

	// busyPolls is the number of status reads left that report busy.
	// busyPerWrite re-arms it after each program/erase.
	busyPolls    int
	busyPerWrite int

	frames       [][]byte // every transferred frame, in order
	programs     []programOp
	statusWrites []byte
	idReads      int
	uidReads     int
}

type programOp struct {
	addr uint32
	n    int
}

func newChipSim(cs *gpiotest.Pin) *chipSim {
	mem := make([]byte, 512<<10)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &chipSim{
		cs:  cs,
		mem: mem,
		id:  0xEF30,
		uid: [8]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04},
	}
}

func (c *chipSim) String() string { return "chipsim" }

func (c *chipSim) Duplex() conn.Duplex { return conn.Full }

func (c *chipSim) TxPackets(p []spi.Packet) error {
	return errors.New("chipsim: TxPackets not supported")
}

func (c *chipSim) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("chipsim: w/r length mismatch: %d != %d", len(w), len(r))
	}

	c.cs.Lock()
	selected := c.cs.L == gpio.Low
	c.cs.Unlock()
	if !selected {
		return errors.New("chipsim: transfer without chip select asserted")
	}

	// The driver passes the same slice as w and r; decode from a copy.
	ww := append([]byte(nil), w...)
	c.frames = append(c.frames, ww)

	op := ww[0]

	if c.asleep {
		switch op {
		case cmdReleasePowerDown:
			c.asleep = false
		case cmdReadID:
			c.answerID(r)
		case cmdReadStatus:
			// Nothing drives the data line; it floats high.
			r[1] = 0xFF
		}
		// Everything else is silently ignored.
		return nil
	}

	switch op {
	case cmdWriteEnable:
		c.wel = true

	case cmdReadStatus:
		var st byte
		if c.busyPolls > 0 {
			c.busyPolls--
			st |= 1
		}
		if c.wel {
			st |= 2
		}
		st |= c.protection
		r[1] = st

	case cmdWriteStatus:
		if !c.wel {
			return errors.New("chipsim: status write without write enable")
		}
		c.statusWrites = append(c.statusWrites, ww[1])
		c.protection = ww[1]
		c.wel = false

	case cmdReadID:
		c.answerID(r)

	case cmdReadUniqueID:
		c.uidReads++
		copy(r[5:], c.uid[:])

	case cmdReadLowFreq:
		addr := simAddr(ww[1:4])
		for i := range r[4:] {
			r[4+i] = c.mem[(int(addr)+i)%len(c.mem)]
		}

	case cmdRead:
		addr := simAddr(ww[1:4])
		for i := range r[5:] {
			r[5+i] = c.mem[(int(addr)+i)%len(c.mem)]
		}

	case cmdPageProgram:
		if !c.wel {
			return errors.New("chipsim: page program without write enable")
		}
		addr := simAddr(ww[1:4])
		data := ww[4:]
		c.programs = append(c.programs, programOp{addr: addr, n: len(data)})
		// The internal address counter wraps within the page.
		page := addr &^ (PageSize - 1)
		for i, b := range data {
			a := page | ((addr + uint32(i)) & (PageSize - 1))
			c.mem[int(a)%len(c.mem)] &= b // program only clears bits
		}
		c.wel = false
		c.busyPolls = c.busyPerWrite

	case cmdBlockErase4K:
		return c.erase(simAddr(ww[1:4]), 4<<10)
	case cmdBlockErase32K:
		return c.erase(simAddr(ww[1:4]), 32<<10)
	case cmdBlockErase64K:
		return c.erase(simAddr(ww[1:4]), 64<<10)

	case cmdChipErase:
		if !c.wel {
			return errors.New("chipsim: chip erase without write enable")
		}
		for i := range c.mem {
			c.mem[i] = 0xFF
		}
		c.wel = false
		c.busyPolls = c.busyPerWrite

	case cmdPowerDown:
		c.asleep = true

	case cmdReleasePowerDown:
		// Already awake.

	default:
		return fmt.Errorf("chipsim: unknown opcode %02X", op)
	}
	return nil
}

func (c *chipSim) answerID(r []byte) {
	id := c.id
	if len(c.idSeq) > 0 {
		id = c.idSeq[min(c.idReads, len(c.idSeq)-1)]
	}
	c.idReads++
	if len(r) >= 3 {
		r[1] = byte(id >> 8)
		r[2] = byte(id)
	}
}

func (c *chipSim) erase(addr uint32, size uint32) error {
	if !c.wel {
		// A real chip silently ignores an un-armed erase; surface it.
		return errors.New("chipsim: erase without write enable")
	}
	start := int(addr&^(size-1)) % len(c.mem)
	for i := 0; i < int(size); i++ {
		c.mem[(start+i)%len(c.mem)] = 0xFF
	}
	c.wel = false
	c.busyPolls = c.busyPerWrite
	return nil
}

// simAddr decodes a 24-bit big-endian address.
func simAddr(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// opcodes returns the first byte of every transferred frame, for
// command-sequencing assertions.
func (c *chipSim) opcodes() []byte {
	ops := make([]byte, len(c.frames))
	for i, fr := range c.frames {
		ops[i] = fr[0]
	}
	return ops
}

// simPort hands out the simulated chip as a spi.Conn.
type simPort struct {
	conn   *chipSim
	clock  physic.Frequency
	mode   spi.Mode
	closed bool
}

func (p *simPort) String() string { return "simport" }

func (p *simPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.clock = f
	p.mode = mode
	return p.conn, nil
}

func (p *simPort) Close() error {
	p.closed = true
	return nil
}

// newTestFlash returns an initialized Flash over a fresh simulated chip.
// The wait timeout is bounded so driver bugs fail tests instead of hanging
// them.
func newTestFlash(t *testing.T, cfg Config) (*Flash, *chipSim, *simPort) {
	t.Helper()
	cs := &gpiotest.Pin{N: "CS", Num: 4}
	sim := newChipSim(cs)
	port := &simPort{conn: sim}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	f := New(port, cs, cfg)
	if err := f.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f, sim, port
}
