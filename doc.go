// Package spiflash drives standard SPI NOR serial flash chips (256-byte
// pages, 24-bit addressing, up to 16 MiB) over a periph.io SPI port with a
// dedicated chip-select GPIO. It provides byte and block reads,
// page-boundary-aware multi-byte writes, 4K/32K/64K/chip erase, JEDEC and
// unique-ID identification, and power-down/release power management.
//
// NOR flash can only clear bits (1→0) when programming; a region must be in
// the erased all-0xFF state before it is written. The driver does not
// emulate read-modify-write over unerased memory.
//
// # References:
//
// SPI Flash
//   - [W25X40CL]: Winbond W25X40CL Serial Flash Memory datasheet (https://www.winbond.com/NR/rdonlyres/6E25084C-0BFE-4B25-903D-AE10221A0929/0/W25X40CL.pdf)
//   - [AT25DF041A]: Atmel-Adesto AT25DF041A datasheet (http://www.adestotech.com/sites/default/files/datasheets/doc3668.pdf)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
package spiflash
