package spiflash

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

var hostInitialized atomic.Bool

// OpenFTDI finds an FT2232H USB adapter and returns its SPI port and the
// ADBUS4 pin for chip select. The returned port should be handed to New;
// Flash.End closes it.
//
// Wiring [FTDI-AN_114]:
//
//	ADBUS0 | SCK
//	ADBUS1 | MOSI
//	ADBUS2 | MISO
//	ADBUS4 | CS
func OpenFTDI() (spi.PortCloser, gpio.PinIO, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	ft, err := findFT2232H()
	if err != nil {
		return nil, nil, err
	}

	port, err := ft.SPI()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get SPI port: %w", err)
	}

	return port, ft.D4, nil
}

func findFT2232H() (*ftdi.FT232H, error) {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			return ft, nil
		}
	}

	return nil, errors.New("FT2232H device not found")
}
