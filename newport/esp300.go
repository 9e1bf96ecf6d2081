// Package newport provides a driver for Newport ESP300 series motion
// controllers, which drive the rotation stages of the goniometer.
package newport

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/oplab/gonio/comm"

	"github.com/tarm/serial"
)

const (
	// Terminator is the command terminator used by the ESP300 on both
	// sides of the link
	Terminator = '\r'

	// RemoteBufferSize is the number of ASCII characters that fit in the
	// command buffer on the controller
	RemoteBufferSize = 80
)

// espErrorsGeneral maps non axis-specific error codes to strings,
// from the ESP300/ESP301 programming manual
var espErrorsGeneral = map[int]string{
	0:  "NO ERROR DETECTED",
	1:  "PCI COMMUNICATION TIME-OUT",
	4:  "EMERGENCY STOP ACTIVATED",
	6:  "COMMAND DOES NOT EXIST",
	7:  "PARAMETER OUT OF RANGE",
	8:  "CABLE INTERLOCK ERROR",
	9:  "AXIS NUMBER OUT OF RANGE",
	10: "MAXIMUM VELOCITY EXCEEDED",
	13: "MOTOR NOT ENABLED",
	16: "MAXIMUM ACCELERATION EXCEEDED",
	27: "COMMAND NOT ALLOWED",
	37: "AXIS NUMBER MISSING",
	38: "COMMAND PARAMETER MISSING",
	40: "LAST COMMAND CANNOT BE REPEATED",
}

// espErrorsAxis maps the trailing two digits of an axis-specific error
// code to strings.  The leading digit(s) are the axis number.
var espErrorsAxis = map[int]string{
	0:  "MOTOR TYPE NOT DEFINED",
	1:  "PARAMETER OUT OF RANGE",
	2:  "AMPLIFIER FAULT DETECTED",
	3:  "FOLLOWING ERROR THRESHOLD EXCEEDED",
	4:  "POSITIVE HARDWARE LIMIT REACHED",
	5:  "NEGATIVE HARDWARE LIMIT REACHED",
	6:  "POSITIVE SOFTWARE LIMIT REACHED",
	7:  "NEGATIVE SOFTWARE LIMIT REACHED",
	8:  "MOTOR / STAGE NOT CONNECTED",
	9:  "FEEDBACK SIGNAL FAULT DETECTED",
	10: "MAXIMUM VELOCITY EXCEEDED",
	11: "MAXIMUM ACCELERATION EXCEEDED",
	13: "MOTOR NOT ENABLED",
	20: "HOMING ABORTED",
	24: "SPEED OUT OF RANGE",
	30: "COMMAND NOT ALLOWED DURING HOMING",
}

// ESPError is an error reported by the controller itself, via the TB? query
type ESPError struct {
	// Code is the raw error code with any axis prefix stripped
	Code int

	// Axis is the axis the error pertains to, or 0 if not axis-specific
	Axis int
}

func (e ESPError) Error() string {
	if e.Axis != 0 {
		msg, ok := espErrorsAxis[e.Code]
		if !ok {
			msg = "UNKNOWN ERROR"
		}
		return fmt.Sprintf("esp300: axis %d error %d: %s", e.Axis, e.Code, msg)
	}
	msg, ok := espErrorsGeneral[e.Code]
	if !ok {
		msg = "UNKNOWN ERROR"
	}
	return fmt.Sprintf("esp300: error %d: %s", e.Code, msg)
}

// parseESPError converts the leading field of a TB? response into an error,
// or nil for code 0.  Axis-specific codes have the axis number prepended to
// a two digit code, e.g. 106 is code 06 on axis 1.
func parseESPError(field string) error {
	field = strings.TrimSpace(field)
	code, err := strconv.Atoi(field)
	if err != nil {
		return fmt.Errorf("esp300: malformed error response %q: %w", field, err)
	}
	if code == 0 {
		return nil
	}
	if code >= 100 {
		return ESPError{Code: code % 100, Axis: code / 100}
	}
	return ESPError{Code: code}
}

// command formats an ESP ASCII telegram, e.g. command("1", "PA", 10.5) => "1PA10.5"
// and command("1", "TP") => "1TP?"
func command(axis, mnemonic string, arg ...float64) string {
	b := strings.Builder{}
	b.WriteString(axis)
	b.WriteString(mnemonic)
	if len(arg) == 0 {
		b.WriteString("?")
	} else {
		b.WriteString(strconv.FormatFloat(arg[0], 'g', -1, 64))
	}
	return b.String()
}

// makeSerConf makes a serial.Config with the ESP300's fixed parameters
func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        19200,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 1 * time.Second}
}

// ESP300 represents an ESP300 or ESP301 motion controller
type ESP300 struct {
	pool *comm.Pool

	timeout time.Duration
}

// NewESP300 makes a new ESP300 instance.  addr is either a serial device
// path or a host:port for a controller behind a terminal server.
func NewESP300(addr string, connectSerial bool) *ESP300 {
	var maker comm.CreationFunc
	if connectSerial {
		maker = comm.SerialConnMaker(makeSerConf(addr))
	} else {
		maker = comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	}
	pool := comm.NewPool(1, 30*time.Second, maker)
	return &ESP300{pool: pool, timeout: 10 * time.Second}
}

func (esp *ESP300) writeRead(msg string) (string, error) {
	conn, err := esp.pool.Get()
	if err != nil {
		return "", err
	}
	wrap, err := comm.NewTimeout(conn, esp.timeout)
	if err == comm.ErrTimeoutUnsupported {
		wrap = conn // serial, timeout lives in the port config
	} else if err != nil {
		esp.pool.ReturnWithError(conn, err)
		return "", err
	}
	wrap = comm.NewTerminator(wrap, Terminator, Terminator)
	_, err = io.WriteString(wrap, msg)
	if err != nil {
		esp.pool.Destroy(conn)
		return "", err
	}
	buf := make([]byte, RemoteBufferSize)
	n, err := wrap.Read(buf)
	esp.pool.ReturnWithError(conn, err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

// writeCheck sends a command which has no response, then drains the error
// buffer so a rejected command surfaces immediately rather than three
// commands later.  This mirrors how the controller is used from the front
// panel; the error LED is the only feedback for writes.
func (esp *ESP300) writeCheck(msg string) error {
	conn, err := esp.pool.Get()
	if err != nil {
		return err
	}
	wrap, err := comm.NewTimeout(conn, esp.timeout)
	if err == comm.ErrTimeoutUnsupported {
		wrap = conn
	} else if err != nil {
		esp.pool.ReturnWithError(conn, err)
		return err
	}
	wrap = comm.NewTerminator(wrap, Terminator, Terminator)
	_, err = io.WriteString(wrap, msg+";TB?")
	if err != nil {
		esp.pool.Destroy(conn)
		return err
	}
	buf := make([]byte, RemoteBufferSize)
	n, err := wrap.Read(buf)
	esp.pool.ReturnWithError(conn, err)
	if err != nil {
		return err
	}
	resp := string(buf[:n])
	pieces := strings.SplitN(resp, ",", 2)
	return parseESPError(pieces[0])
}

// Raw sends a command to the controller as-is and returns the response as-is.
// An escape hatch for anything not wrapped by a method.
func (esp *ESP300) Raw(msg string) (string, error) {
	return esp.writeRead(msg)
}

// MoveAbs commands an absolute move of an axis in controller units (degrees
// for the rotation stages on this rig)
func (esp *ESP300) MoveAbs(axis string, pos float64) error {
	return esp.writeCheck(command(axis, "PA", pos))
}

// MoveRel commands a relative move of an axis in controller units
func (esp *ESP300) MoveRel(axis string, dist float64) error {
	return esp.writeCheck(command(axis, "PR", dist))
}

// GetPos returns the current position of an axis in controller units
func (esp *ESP300) GetPos(axis string) (float64, error) {
	resp, err := esp.writeRead(command(axis, "TP"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

// GetInPosition queries the motion done status of an axis
func (esp *ESP300) GetInPosition(axis string) (bool, error) {
	resp, err := esp.writeRead(command(axis, "MD"))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(resp) == "1", nil
}

// Home triggers a home search on an axis.  The search mode should have been
// set beforehand with SetHomeMode; mode 0 (zero position count) matches how
// the goniometer stages are referenced.
func (esp *ESP300) Home(axis string) error {
	return esp.writeCheck(axis + "OR")
}

// SetHomeMode sets the home search mode for an axis
func (esp *ESP300) SetHomeMode(axis string, mode int) error {
	return esp.writeCheck(command(axis, "OM", float64(mode)))
}

// SetVelocity sets the velocity of an axis in controller units per second
func (esp *ESP300) SetVelocity(axis string, vel float64) error {
	return esp.writeCheck(command(axis, "VA", vel))
}

// GetVelocity returns the velocity of an axis in controller units per second
func (esp *ESP300) GetVelocity(axis string) (float64, error) {
	resp, err := esp.writeRead(command(axis, "TV"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

// DefineHome redefines the current position of an axis as pos
func (esp *ESP300) DefineHome(axis string, pos float64) error {
	return esp.writeCheck(command(axis, "DH", pos))
}

// ReadErrors drains the controller's error buffer, returning the messages.
// The slice may be partially filled if a communication error interrupts the
// sequence of reads.
func (esp *ESP300) ReadErrors() ([]string, error) {
	msgs := []string{}
	for {
		resp, err := esp.writeRead("TB?")
		if err != nil {
			return msgs, err
		}
		pieces := strings.SplitN(resp, ",", 2)
		espErr := parseESPError(pieces[0])
		if espErr == nil {
			return msgs, nil
		}
		msgs = append(msgs, espErr.Error())
	}
}
