package spiflash

import (
	"errors"
	"fmt"
	"io"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Flash commands:
//   - [W25X40CL|8.2 Instruction Set Table 1]
//   - [AT25DF041A|Table 1. Command Listing]
const (
	cmdWriteEnable      = 0x06
	cmdBlockErase4K     = 0x20
	cmdBlockErase32K    = 0x52
	cmdBlockErase64K    = 0xD8
	cmdChipErase        = 0x60
	cmdReadStatus       = 0x05
	cmdWriteStatus      = 0x01
	cmdRead             = 0x0B // fast array read, one dummy byte after the address
	cmdReadLowFreq      = 0x03 // array read, no dummy byte
	cmdPowerDown        = 0xB9
	cmdReleasePowerDown = 0xAB
	cmdPageProgram      = 0x02
	cmdReadID           = 0x9F // JEDEC manufacturer + device ID
	cmdReadUniqueID     = 0x4B // factory-programmed 64-bit ID
)

// PageSize is the program page size. A single page-program command must not
// cross a page boundary or the chip wraps the write within the page.
const PageSize = 256

const maxAddr = 1<<24 - 1 // 24-bit addressing, 0xFFFFFF

var (
	// ErrIDMismatch is returned by Init when the chip reports a JEDEC ID
	// different from Config.JEDECID.
	ErrIDMismatch = errors.New("jedec id mismatch")

	// ErrTimeout is returned when the chip does not clear its busy bit
	// within the configured wait bound.
	ErrTimeout = errors.New("device unresponsive")
)

// Config holds the bus and identification parameters of one flash chip.
// All fields are fixed at construction.
type Config struct {
	// Clock is the SPI clock rate for the bus session. Defaults to 20MHz,
	// within the W25X40CL normal-read limit.
	Clock physic.Frequency

	// Mode is the SPI mode. NOR flash chips support Mode0 and Mode3;
	// defaults to Mode0.
	Mode spi.Mode

	// JEDECID is the expected 16-bit manufacturer+device ID, e.g. 0xEF30
	// for a Winbond W25X40CL or 0x1F44 for an Atmel AT25DF041A. Init fails
	// when the chip reports a different value. Zero disables the check.
	JEDECID uint16

	// PollInterval paces busy polling. Zero polls continuously, matching
	// the chip's tight-loop status query model.
	PollInterval time.Duration

	// Timeout bounds each wait for the chip to become ready. Zero waits
	// forever: a disconnected or sleeping chip then blocks the caller
	// indefinitely, which is the historical contract of this driver.
	Timeout time.Duration

	// MaxTxSize caps the size of a single bus transaction. Defaults to
	// 65536 [FTDI-AN_108]. Reads larger than this are split into multiple
	// command cycles.
	MaxTxSize int
}

// Flash is the handle to one SPI NOR flash chip. It is not safe for
// concurrent use: every operation owns the bus for one or more full
// command cycles and must run to completion before the next begins.
type Flash struct {
	port spi.Port
	conn spi.Conn
	cs   gpio.PinIO
	cfg  Config

	id uint16 // last JEDEC ID read, 0 until ReadDeviceID
	pr *flashParams

	uid   [8]byte
	uidOK bool
}

// New returns a handle for a flash chip on the given port, selected by cs.
// The port may be shared with other devices; the driver acquires it only
// for the duration of each command cycle. Call Init before any other
// operation.
func New(p spi.Port, cs gpio.PinIO, cfg Config) *Flash {
	if cfg.Clock == 0 {
		cfg.Clock = 20 * physic.MegaHertz
	}
	if cfg.MaxTxSize == 0 {
		cfg.MaxTxSize = 65536 // [FTDI-AN_108]
	}
	return &Flash{port: p, cs: cs, cfg: cfg}
}

// Init starts the bus session, wakes the chip and clears all write
// protection bits. When Config.JEDECID is set, the chip's ID must match or
// Init fails with ErrIDMismatch and the chip is left protected.
func (f *Flash) Init() error {
	if err := f.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("deselect failed: %w", err)
	}

	conn, err := f.port.Connect(f.cfg.Clock, f.cfg.Mode, 8)
	if err != nil {
		return fmt.Errorf("SPI connection failed: %w", err)
	}
	f.conn = conn

	// The chip may have been left powered down by a previous run.
	if err := f.Wakeup(); err != nil {
		return err
	}

	if f.cfg.JEDECID != 0 {
		id, err := f.ReadDeviceID()
		if err != nil {
			return err
		}
		if id != f.cfg.JEDECID {
			return fmt.Errorf("%w: got %04X, want %04X", ErrIDMismatch, id, f.cfg.JEDECID)
		}
	}

	// Global unprotect.
	return f.writeStatus(0)
}

// End releases the bus session. The handle must not be used afterwards.
func (f *Flash) End() error {
	f.conn = nil
	if c, ok := f.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// tx wraps one SPI transaction with CS assertion. buf is clocked out and
// overwritten with the bytes clocked in.
func (f *Flash) tx(buf []byte) (err error) {
	if f.conn == nil {
		return errors.New("flash not initialized")
	}
	if err = f.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := f.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = f.conn.Tx(buf, buf)
	return
}

// exec runs one command cycle: frame[0] is the opcode, the rest address and
// payload bytes. Write commands are re-armed with a Write Enable cycle first,
// since the chip's write-enable latch clears after every program or erase.
// Except for Release Power-Down the dispatcher blocks until any in-progress
// program/erase completes before clocking the frame; a sleeping chip answers
// no status query, so the wake command must not be gated on one.
func (f *Flash) exec(frame []byte, isWrite bool) error {
	if isWrite {
		if err := f.exec([]byte{cmdWriteEnable}, false); err != nil {
			return err
		}
	}
	if frame[0] != cmdReleasePowerDown {
		if err := f.WaitReady(f.cfg.Timeout); err != nil {
			return err
		}
	}
	return f.tx(frame)
}

// putAddr writes the 24-bit address, most significant byte first.
func putAddr(b []byte, addr uint32) {
	b[0] = byte(addr >> 16)
	b[1] = byte(addr >> 8)
	b[2] = byte(addr)
}

// ReadByte reads one byte via the low-frequency array-read path.
func (f *Flash) ReadByte(addr uint32) (byte, error) {
	buf := make([]byte, 5)
	buf[0] = cmdReadLowFreq
	putAddr(buf[1:], addr)

	if err := f.exec(buf, false); err != nil {
		return 0, err
	}
	return buf[4], nil
}

// ReadBytes reads len(p) bytes starting at addr via the fast array-read
// path. The chip auto-increments its address pointer, so the whole read is
// one command cycle unless it would exceed Config.MaxTxSize, in which case
// it is split into multiple cycles.
func (f *Flash) ReadBytes(addr uint32, p []byte) error {
	const cmdBytes = 5 // opcode + 24-bit address + dummy byte
	maxData := f.cfg.MaxTxSize - cmdBytes

	for off := 0; off < len(p); {
		chunk := min(len(p)-off, maxData)
		buf := make([]byte, cmdBytes+chunk)
		buf[0] = cmdRead
		putAddr(buf[1:], addr)
		// buf[4] dummy, buf[5:] clock out the data

		if err := f.exec(buf, false); err != nil {
			return err
		}
		copy(p[off:], buf[cmdBytes:])

		addr += uint32(chunk)
		off += chunk
	}
	return nil
}

// RegionIsEmpty reports whether every byte in [addr, addr+n) is in the
// erased 0xFF state and can be programmed. It is a pre-write sanity check,
// not a substitute for erasing.
func (f *Flash) RegionIsEmpty(addr uint32, n int) (bool, error) {
	buf := make([]byte, n)
	if err := f.ReadBytes(addr, buf); err != nil {
		return false, err
	}
	for _, b := range buf {
		if b != 0xFF {
			return false, nil
		}
	}
	return true, nil
}

// WriteByte programs a single byte. The location must be erased first.
func (f *Flash) WriteByte(addr uint32, b byte) error {
	return f.pageProgram(addr, []byte{b})
}

// pageProgram issues one page-program command cycle. The data must fit in
// the page containing addr; callers are responsible for not crossing a
// page boundary.
func (f *Flash) pageProgram(addr uint32, data []byte) error {
	if addr > maxAddr {
		return fmt.Errorf("address 0x%X out of 24-bit range", addr)
	}
	if len(data) > PageSize {
		return fmt.Errorf("data must not exceed %d bytes", PageSize)
	}
	buf := make([]byte, 4+len(data))
	buf[0] = cmdPageProgram
	putAddr(buf[1:], addr)
	copy(buf[4:], data)

	return f.exec(buf, true)
}

// WriteBytes programs an arbitrary-length buffer starting at addr, splitting
// it into page-program commands that never cross a 256-byte page boundary:
// the first chunk is clipped to the remainder of the page containing addr
// and every following chunk starts page-aligned. Each chunk is an
// independent command cycle with its own write-enable and busy-wait.
// The target region must be erased (all 0xFF) beforehand.
func (f *Flash) WriteBytes(addr uint32, data []byte) error {
	chunk := PageSize - int(addr%PageSize) // room left in the first page
	for off := 0; off < len(data); {
		n := min(len(data)-off, chunk)
		if err := f.pageProgram(addr, data[off:off+n]); err != nil {
			return err
		}
		addr += uint32(n)
		off += n
		chunk = PageSize
	}
	return nil
}

// WriteFrom programs the contents of r starting at addr, page by page.
func (f *Flash) WriteFrom(addr uint32, r io.Reader) error {
	buf := [PageSize]byte{}
	for {
		n, err := r.Read(buf[:])
		if err != nil && err != io.EOF {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := f.WriteBytes(addr, buf[:n]); err != nil {
			return err
		}
		addr += uint32(n)
	}
}

// blockErase issues one addressed erase command cycle.
func (f *Flash) blockErase(opcode byte, addr uint32) error {
	buf := make([]byte, 4)
	buf[0] = opcode
	putAddr(buf[1:], addr)
	return f.exec(buf, true)
}

// Erase4K erases the 4KB block containing addr. The erase runs inside the
// chip after the command returns; the next command waits for it, or poll
// with WaitReady.
func (f *Flash) Erase4K(addr uint32) error {
	return f.blockErase(cmdBlockErase4K, addr)
}

// Erase32K erases the 32KB block containing addr.
func (f *Flash) Erase32K(addr uint32) error {
	return f.blockErase(cmdBlockErase32K, addr)
}

// Erase64K erases the 64KB block containing addr.
func (f *Flash) Erase64K(addr uint32) error {
	return f.blockErase(cmdBlockErase64K, addr)
}

// EraseChip erases the entire memory array. This can take many seconds;
// the command itself returns as soon as it is sent.
func (f *Flash) EraseChip() error {
	return f.exec([]byte{cmdChipErase}, true)
}

// Erase erases size bytes starting at baseAddr using the largest block
// granularity that fits. baseAddr should be 4KB-aligned; the erased range
// is rounded up to whole blocks.
func (f *Flash) Erase(baseAddr uint32, size int) error {
	const (
		blk64K = 64 << 10
		blk32K = 32 << 10
		blk4K  = 4 << 10
	)

	addr := baseAddr
	remaining := size

	for remaining >= blk64K {
		if err := f.Erase64K(addr); err != nil {
			return err
		}
		addr += blk64K
		remaining -= blk64K
	}
	for remaining >= blk32K {
		if err := f.Erase32K(addr); err != nil {
			return err
		}
		addr += blk32K
		remaining -= blk32K
	}
	for remaining > 0 {
		if err := f.Erase4K(addr); err != nil {
			return err
		}
		addr += blk4K
		remaining -= blk4K
	}
	return nil
}

// ReadDeviceID returns the 16-bit JEDEC manufacturer+device ID, high byte
// first, and configures the chip's timing parameters for known IDs. It
// bypasses the busy gate: the ID read is one of the two commands a
// powered-down chip still answers.
func (f *Flash) ReadDeviceID() (uint16, error) {
	buf := []byte{cmdReadID, 0, 0}
	if err := f.tx(buf); err != nil {
		return 0, err
	}

	f.id = uint16(buf[1])<<8 | uint16(buf[2])
	if params, ok := knownFlash[f.id]; ok {
		f.pr = &params
	}
	return f.id, nil
}

// ReadUniqueID returns the chip's factory-programmed 64-bit unique ID.
// The value is read once per handle and cached.
func (f *Flash) ReadUniqueID() ([8]byte, error) {
	if f.uidOK {
		return f.uid, nil
	}

	buf := make([]byte, 13) // opcode + 4 dummy bytes + 8 ID bytes
	buf[0] = cmdReadUniqueID
	if err := f.exec(buf, false); err != nil {
		return [8]byte{}, err
	}

	copy(f.uid[:], buf[5:])
	f.uidOK = true
	return f.uid, nil
}

// Found probes for a live chip: it wakes the chip, then reads the device ID
// ten times, requiring every read to be non-zero, not all-ones and identical
// to the first. A floating or noisy data line fails the consistency check
// instead of masquerading as a present chip. Bus errors count as not found.
func (f *Flash) Found() bool {
	if err := f.Wakeup(); err != nil {
		return false
	}

	var ref uint16
	for i := 0; i < 10; i++ {
		id, err := f.ReadDeviceID()
		if err != nil {
			return false
		}
		if id == 0 || id == 0xFFFF || (i > 0 && id != ref) {
			return false
		}
		ref = id
	}
	return true
}

// Sleep puts the chip into power-down mode. Afterwards the chip answers
// nothing but Release Power-Down and the ID read; Wakeup must be called
// before any other operation or the chip silently ignores commands.
func (f *Flash) Sleep() error {
	if err := f.exec([]byte{cmdPowerDown}, false); err != nil {
		return err
	}
	time.Sleep(f.tDP())
	return nil
}

// Wakeup releases the chip from power-down mode. It is the one command that
// skips the dispatcher's busy gate, since a sleeping chip answers no status
// query until woken.
func (f *Flash) Wakeup() error {
	if err := f.exec([]byte{cmdReleasePowerDown}, false); err != nil {
		return err
	}
	time.Sleep(f.tRES1())
	return nil
}
