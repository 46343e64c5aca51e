package spiflash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimingsForIdentifiedChip(t *testing.T) {
	f, _, _ := newTestFlash(t, Config{JEDECID: 0xEF30})

	_, err := f.ReadDeviceID()
	require.NoError(t, err)

	tm := f.Timings()
	assert.Equal(t, 3*time.Millisecond, tm.PageProgram)
	assert.Equal(t, 4*time.Second, tm.EraseChip)
	assert.Equal(t, "Winbond W25X40CL 4Mb", f.DeviceName())
}

func TestTimingsFallBackToMaximum(t *testing.T) {
	f, sim, _ := newTestFlash(t, Config{})
	sim.id = 0xABCD // not in the known-chip table

	_, err := f.ReadDeviceID()
	require.NoError(t, err)
	assert.Equal(t, "", f.DeviceName())

	// Unknown chips get the maximum of every known parameter, which is
	// always a safe wait bound.
	tm := f.Timings()
	assert.Equal(t, 5*time.Millisecond, tm.PageProgram) // AT25DF041A tPP
	assert.Equal(t, 4*time.Second, tm.EraseChip)        // W25X40CL tCE
	for _, p := range knownFlash {
		assert.GreaterOrEqual(t, tm.Erase64K, p.t.Erase64K)
	}
}
