// Package nkt drives NKT SuperK supercontinuum sources, the white light
// illuminator of the rig.
package nkt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/snksoft/crc"
)

// the interbus protocol frames messages as [SOT][MESSAGE][EOT], where the
// message is [DEST][SRC][TYPE][REGISTER][0..240 data bytes][CRC16].  Any
// occurrence of SOT, EOT or the escape byte inside the message is replaced
// by the escape byte followed by the offender shifted up by 0x40.

const (
	sot = 0x0D
	eot = 0x0A

	escapeByte  = 0x5E
	escapeShift = 0x40

	// host source addresses rotate through [minHostAddr, 0xFF) so that a
	// stale response in a buffer cannot be mistaken for a fresh one
	minHostAddr = 0xA1
)

var (
	specialChars = []byte{eot, sot, escapeByte}

	crcTable = crc.NewTable(crc.XMODEM)

	// ErrCRCMismatch is generated when a received telegram fails its
	// checksum; the device state is unknown
	ErrCRCMismatch = errors.New("nkt: CRC mismatch, data lost in transmission")

	hostAddrMu sync.Mutex
	hostAddr   byte = minHostAddr
)

// message type codes
const (
	TypeNack     = 0
	TypeCRCError = 1
	TypeBusy     = 2
	TypeAck      = 3
	TypeRead     = 4
	TypeWrite    = 5
	TypeDatagram = 8
)

var typeNames = map[byte]string{
	TypeNack:     "Nack",
	TypeCRCError: "CRC Error",
	TypeBusy:     "Busy",
	TypeAck:      "Ack",
	TypeRead:     "Read",
	TypeWrite:    "Write",
	TypeDatagram: "Datagram",
}

// nextHostAddr returns the source address for the next telegram
func nextHostAddr() byte {
	hostAddrMu.Lock()
	defer hostAddrMu.Unlock()
	a := hostAddr
	hostAddr++
	if hostAddr == 0xFF {
		hostAddr = minHostAddr
	}
	return a
}

// Message is one interbus message before framing, escaping and CRC
type Message struct {
	Dest, Src, Register byte
	Type                byte
	Data                []byte
}

func crc16(buf []byte) []byte {
	v := crcTable.InitCrc()
	v = crcTable.UpdateCrc(v, buf)
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, crcTable.CRC16(v))
	return out
}

func escape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if bytes.IndexByte(specialChars, b) >= 0 {
			out = append(out, escapeByte, b+escapeShift)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	shifted := false
	for _, b := range data {
		if b == escapeByte {
			shifted = true
			continue
		}
		if shifted {
			b -= escapeShift
			shifted = false
		}
		out = append(out, b)
	}
	return out
}

// Encode frames a Message into the bytes to put on the wire
func Encode(m Message) []byte {
	body := append([]byte{m.Dest, m.Src, m.Type, m.Register}, m.Data...)
	body = append(body, crc16(body)...)
	body = escape(body)
	out := make([]byte, 0, len(body)+2)
	out = append(out, sot)
	out = append(out, body...)
	out = append(out, eot)
	return out
}

// Decode renders a raw byte stream, which may have leading garbage before
// the start byte, into a Message.  The CRC is verified.
func Decode(raw []byte) (Message, error) {
	iStart := bytes.IndexByte(raw, sot)
	if iStart < 0 {
		return Message{}, fmt.Errorf("nkt: telegram start byte %#x not found", sot)
	}
	iEnd := bytes.IndexByte(raw[iStart:], eot)
	if iEnd < 0 {
		return Message{}, fmt.Errorf("nkt: telegram end byte %#x not found", eot)
	}
	body := unescape(raw[iStart+1 : iStart+iEnd])
	if len(body) < 6 { // header (4) + CRC (2)
		return Message{}, fmt.Errorf("nkt: telegram too short, %d bytes after unescaping", len(body))
	}
	payload, sum := body[:len(body)-2], body[len(body)-2:]
	if !bytes.Equal(sum, crc16(payload)) {
		return Message{}, ErrCRCMismatch
	}
	return Message{
		Dest:     payload[0],
		Src:      payload[1],
		Type:     payload[2],
		Register: payload[3],
		Data:     payload[4:],
	}, nil
}
