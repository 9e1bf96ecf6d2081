package nkt

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/oplab/gonio/comm"
)

// scriptedConn plays the role of the source: each write is decoded and a
// canned reply is queued for the next read
type scriptedConn struct {
	reply   func(Message) Message
	pending bytes.Buffer
	last    []Message
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	msg, err := Decode(p)
	if err != nil {
		return 0, err
	}
	c.last = append(c.last, msg)
	resp := c.reply(msg)
	c.pending.Write(Encode(resp))
	return len(p), nil
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	return c.pending.Read(p)
}

func (c *scriptedConn) Close() error { return nil }

func scriptedSuperK(reply func(Message) Message) (*SuperK, *scriptedConn) {
	conn := &scriptedConn{reply: reply}
	sk := &SuperK{
		pool: comm.NewPool(1, time.Minute, func() (io.ReadWriteCloser, error) {
			return conn, nil
		}),
		Dest: superKDefaultAddr,
	}
	return sk, conn
}

func ack(m Message) Message {
	return Message{Dest: m.Src, Src: m.Dest, Register: m.Register, Type: TypeAck}
}

func TestSetEmissionWritesRegister(t *testing.T) {
	sk, conn := scriptedSuperK(ack)
	err := sk.SetEmission(true)
	if err != nil {
		t.Fatalf("set emission returned error %v", err)
	}
	if len(conn.last) != 1 {
		t.Fatalf("source saw %d telegrams, expected 1", len(conn.last))
	}
	sent := conn.last[0]
	if sent.Register != regEmission || sent.Type != TypeWrite {
		t.Errorf("telegram was type %d register %#x, expected write to emission", sent.Type, sent.Register)
	}
	if len(sent.Data) != 1 || sent.Data[0] != 3 {
		t.Errorf("emission-on payload was %v, expected [3]", sent.Data)
	}
}

func TestGetPowerDecodesPermille(t *testing.T) {
	sk, _ := scriptedSuperK(func(m Message) Message {
		data := make([]byte, 2)
		binary.LittleEndian.PutUint16(data, 755)
		return Message{Dest: m.Src, Src: m.Dest, Register: m.Register, Type: TypeDatagram, Data: data}
	})
	p, err := sk.GetPower()
	if err != nil {
		t.Fatalf("get power returned error %v", err)
	}
	if p != 75.5 {
		t.Errorf("power decoded as %g, expected 75.5", p)
	}
}

func TestNackSurfacesAsError(t *testing.T) {
	sk, _ := scriptedSuperK(func(m Message) Message {
		return Message{Dest: m.Src, Src: m.Dest, Register: m.Register, Type: TypeNack}
	})
	err := sk.SetPower(50)
	if err == nil {
		t.Fatal("nack reply did not surface as an error")
	}
	if _, ok := err.(RemoteError); !ok {
		t.Errorf("error is %T, expected RemoteError", err)
	}
}
