package spiflash

import "time"

// Timings are the expected operation durations of a flash chip, taken from
// the datasheet maximums. They bound how long WaitReady should be given for
// each operation; they are not enforced by the driver.
type Timings struct {
	PowerUp     time.Duration // tRES1: CS high to standby mode
	PowerDown   time.Duration // tDP: CS high to power-down mode
	PageProgram time.Duration // tPP
	Erase4K     time.Duration
	Erase32K    time.Duration
	Erase64K    time.Duration
	EraseChip   time.Duration
}

type flashParams struct {
	name string
	t    Timings
}

// knownFlash is keyed by the 16-bit JEDEC manufacturer+device ID as
// returned by ReadDeviceID.
var knownFlash = map[uint16]flashParams{
	0xEF30: {
		name: "Winbond W25X40CL 4Mb",

		// [W25X40CL|9.6 AC Electrical Characteristics]
		t: Timings{
			PowerUp:     3 * time.Microsecond,   // tRES1
			PowerDown:   3 * time.Microsecond,   // tDP
			PageProgram: 3 * time.Millisecond,   // tPP
			Erase4K:     300 * time.Millisecond, // tSE
			Erase32K:    800 * time.Millisecond, // tBE1
			Erase64K:    1 * time.Second,        // tBE2
			EraseChip:   4 * time.Second,        // tCE
		},
	},

	0x1F44: {
		name: "Atmel AT25DF041A 4Mb",

		// [AT25DF041A|Table 13. AC Characteristics]
		t: Timings{
			PowerUp:     3 * time.Microsecond,
			PowerDown:   3 * time.Microsecond,
			PageProgram: 5 * time.Millisecond,    // tPP
			Erase4K:     200 * time.Millisecond,  // tBLKE4
			Erase32K:    600 * time.Millisecond,  // tBLKE32
			Erase64K:    950 * time.Millisecond,  // tBLKE64
			EraseChip:   3800 * time.Millisecond, // tCHPE
		},
	},
}

// timingOrMax returns the chip's parameter when the chip has been
// identified, and otherwise the maximum over all known chips, which is
// always a safe bound.
func (f *Flash) timingOrMax(get func(*Timings) time.Duration) time.Duration {
	if f.pr != nil {
		return get(&f.pr.t)
	}

	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param.t))
	}
	return tmax
}

// Timings returns the expected operation durations for the chip identified
// by the last ReadDeviceID, or the maximum over all known chips when the
// chip has not been identified or is unknown.
func (f *Flash) Timings() Timings {
	return Timings{
		PowerUp:     f.timingOrMax(func(t *Timings) time.Duration { return t.PowerUp }),
		PowerDown:   f.timingOrMax(func(t *Timings) time.Duration { return t.PowerDown }),
		PageProgram: f.timingOrMax(func(t *Timings) time.Duration { return t.PageProgram }),
		Erase4K:     f.timingOrMax(func(t *Timings) time.Duration { return t.Erase4K }),
		Erase32K:    f.timingOrMax(func(t *Timings) time.Duration { return t.Erase32K }),
		Erase64K:    f.timingOrMax(func(t *Timings) time.Duration { return t.Erase64K }),
		EraseChip:   f.timingOrMax(func(t *Timings) time.Duration { return t.EraseChip }),
	}
}

// DeviceName returns the marketing name of the identified chip, or "" when
// the chip is unknown or ReadDeviceID has not been called.
func (f *Flash) DeviceName() string {
	if f.pr == nil {
		return ""
	}
	return f.pr.name
}

func (f *Flash) tRES1() time.Duration {
	return f.timingOrMax(func(t *Timings) time.Duration { return t.PowerUp })
}

func (f *Flash) tDP() time.Duration {
	return f.timingOrMax(func(t *Timings) time.Duration { return t.PowerDown })
}
