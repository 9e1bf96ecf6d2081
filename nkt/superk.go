package nkt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/oplab/gonio/comm"

	"github.com/tarm/serial"
)

// SuperK Extreme main module registers used by the rig
const (
	superKDefaultAddr = 0x0F

	regEmission  = 0x30
	regInterlock = 0x32
	regPower     = 0x37
	regStatus    = 0x66
)

// MakeSerConf makes a serial config with the SuperK's parameters
func MakeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        115200,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 1 * time.Second}
}

// RemoteError is a non-Ack reply from the source
type RemoteError struct {
	Type byte
}

func (e RemoteError) Error() string {
	name, ok := typeNames[e.Type]
	if !ok {
		name = "unknown"
	}
	return fmt.Sprintf("nkt: device replied %s (%d)", name, e.Type)
}

// SuperK represents a SuperK Extreme main module
type SuperK struct {
	pool *comm.Pool

	// Dest is the module address, almost always superKDefaultAddr
	Dest byte
}

// NewSuperK returns a new SuperK.  addr is a serial device path or a
// host:port for a source behind a terminal server.
func NewSuperK(addr string, connectSerial bool) *SuperK {
	var maker comm.CreationFunc
	if connectSerial {
		maker = comm.SerialConnMaker(MakeSerConf(addr))
	} else {
		maker = comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	}
	// the sources close idle connections themselves after ~60s
	pool := comm.NewPool(1, 30*time.Second, maker)
	return &SuperK{pool: pool, Dest: superKDefaultAddr}
}

// exchange writes a telegram and decodes the reply
func (sk *SuperK) exchange(typ, register byte, data []byte) (Message, error) {
	msg := Message{
		Dest:     sk.Dest,
		Src:      nextHostAddr(),
		Type:     typ,
		Register: register,
		Data:     data,
	}
	conn, err := sk.pool.Get()
	if err != nil {
		return Message{}, err
	}
	_, err = conn.Write(Encode(msg))
	if err != nil {
		sk.pool.Destroy(conn)
		return Message{}, err
	}
	var raw []byte
	raw, err = readToEOT(conn)
	sk.pool.ReturnWithError(conn, err)
	if err != nil {
		return Message{}, err
	}
	return Decode(raw)
}

func readToEOT(r io.Reader) ([]byte, error) {
	return bufio.NewReader(r).ReadBytes(eot)
}

// readRegister reads a register and returns the reply payload
func (sk *SuperK) readRegister(register byte) ([]byte, error) {
	resp, err := sk.exchange(TypeRead, register, nil)
	if err != nil {
		return nil, err
	}
	if resp.Type != TypeDatagram && resp.Type != TypeAck {
		return nil, RemoteError{Type: resp.Type}
	}
	return resp.Data, nil
}

// writeRegister writes a register and checks for an Ack
func (sk *SuperK) writeRegister(register byte, data []byte) error {
	resp, err := sk.exchange(TypeWrite, register, data)
	if err != nil {
		return err
	}
	if resp.Type != TypeAck {
		return RemoteError{Type: resp.Type}
	}
	return nil
}

// SetEmission turns emission (light output) on or off.  Open loop; the
// source does not confirm optical output, only the register write.
func (sk *SuperK) SetEmission(on bool) error {
	payload := []byte{0}
	if on {
		payload[0] = 3
	}
	return sk.writeRegister(regEmission, payload)
}

// GetEmission queries if emission is enabled
func (sk *SuperK) GetEmission() (bool, error) {
	data, err := sk.readRegister(regEmission)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, fmt.Errorf("nkt: empty emission register reply")
	}
	return data[0] > 0, nil
}

// SetShutterOpen opens or closes the beam path.  The SuperK exposes this
// through the interlock register: writing 1 arms it (beam allowed), 0
// disarms it (beam blocked).
func (sk *SuperK) SetShutterOpen(open bool) error {
	payload := []byte{0, 0}
	if open {
		payload[0] = 1
	}
	return sk.writeRegister(regInterlock, payload)
}

// SetPower sets the output power level as a percentage (0-100)
func (sk *SuperK) SetPower(level float64) error {
	permille := uint16(level * 10)
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, permille)
	return sk.writeRegister(regPower, payload)
}

// GetPower retrieves the output power level as a percentage
func (sk *SuperK) GetPower() (float64, error) {
	data, err := sk.readRegister(regPower)
	if err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("nkt: short power register reply, %d bytes", len(data))
	}
	return float64(binary.LittleEndian.Uint16(data)) / 10, nil
}
