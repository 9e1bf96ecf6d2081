package nkt

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msgs := []Message{
		{Dest: 0x0F, Src: 0xA1, Type: TypeWrite, Register: 0x30, Data: []byte{3}},
		{Dest: 0x0F, Src: 0xA2, Type: TypeRead, Register: 0x37},
		// payload containing every special character forces escaping
		{Dest: 0x0F, Src: 0xA3, Type: TypeWrite, Register: 0x37, Data: []byte{sot, eot, escapeByte, 0x00, 0xFF}},
	}
	for _, msg := range msgs {
		raw := Encode(msg)
		if raw[0] != sot {
			t.Errorf("encoded telegram began with %x, expected SOT", raw[0])
		}
		if raw[len(raw)-1] != eot {
			t.Errorf("encoded telegram ended with %x, expected EOT", raw[len(raw)-1])
		}
		// no special byte may appear in the interior
		for _, b := range raw[1 : len(raw)-1] {
			if b == sot || b == eot {
				t.Errorf("unescaped framing byte %x inside telegram", b)
			}
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode returned error %v", err)
		}
		if got.Dest != msg.Dest || got.Src != msg.Src || got.Type != msg.Type || got.Register != msg.Register {
			t.Errorf("header mangled in round trip, got %+v expected %+v", got, msg)
		}
		if !bytes.Equal(got.Data, msg.Data) && len(msg.Data) > 0 {
			t.Errorf("payload mangled in round trip, got %x expected %x", got.Data, msg.Data)
		}
	}
}

func TestDecodeRejectsCorruption(t *testing.T) {
	raw := Encode(Message{Dest: 0x0F, Src: 0xA1, Type: TypeWrite, Register: 0x30, Data: []byte{3}})
	// flip a payload bit, CRC must catch it
	raw[5] ^= 0x01
	_, err := Decode(raw)
	if err != ErrCRCMismatch {
		t.Errorf("expected CRC mismatch, got %v", err)
	}
}

func TestDecodeRejectsUnframed(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Error("decode of unframed garbage did not return an error")
	}
}

func TestHostAddrRotates(t *testing.T) {
	a := nextHostAddr()
	b := nextHostAddr()
	if a == b {
		t.Errorf("consecutive host addresses identical, %x", a)
	}
	if a < minHostAddr || b < minHostAddr {
		t.Errorf("host address below minimum, %x %x", a, b)
	}
}
