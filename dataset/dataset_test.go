package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oplab/gonio/camera"
)

func synthFrame(seed int) camera.Frame {
	w, h := 8, 6
	pix := make([]uint16, w*h)
	for i := range pix {
		pix[i] = uint16((i*seed + seed) % 65536)
	}
	return camera.Frame{
		Pix:       pix,
		Width:     w,
		Height:    h,
		Channels:  1,
		Exposure:  15 * time.Millisecond,
		Gain:      2,
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRoundTrip(t *testing.T) {
	ds := Dataset{
		{Incidence: 0, Observation: 0, Polarization: 0, Frame: synthFrame(1)},
		{Incidence: 0, Observation: 45, Polarization: 1, Frame: synthFrame(7)},
		{Incidence: 10, Observation: 45, Polarization: 2, Frame: synthFrame(31)},
	}
	path := filepath.Join(t.TempDir(), "run.fits")
	err := ds.Write(path)
	if err != nil {
		t.Fatalf("write returned error %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("read returned error %v", err)
	}
	if len(got) != len(ds) {
		t.Fatalf("read %d records, expected %d", len(got), len(ds))
	}
	for i := range ds {
		want, have := ds[i], got[i]
		if have.Incidence != want.Incidence || have.Observation != want.Observation || have.Polarization != want.Polarization {
			t.Errorf("record %d coordinates (%g, %g, %d), expected (%g, %g, %d)",
				i, have.Incidence, have.Observation, have.Polarization,
				want.Incidence, want.Observation, want.Polarization)
		}
		if len(have.Frame.Pix) != len(want.Frame.Pix) {
			t.Fatalf("record %d has %d pixels, expected %d", i, len(have.Frame.Pix), len(want.Frame.Pix))
		}
		for j := range want.Frame.Pix {
			if have.Frame.Pix[j] != want.Frame.Pix[j] {
				t.Fatalf("record %d pixel %d is %d, expected %d", i, j, have.Frame.Pix[j], want.Frame.Pix[j])
			}
		}
	}
}

func TestRoundTripMultiChannel(t *testing.T) {
	w, h, c := 4, 3, 3
	pix := make([]uint16, w*h*c)
	for i := range pix {
		pix[i] = uint16((i*257 + 11) % 65536)
	}
	ds := Dataset{{
		Incidence:    20,
		Observation:  35,
		Polarization: 4,
		Frame: camera.Frame{
			Pix:       pix,
			Width:     w,
			Height:    h,
			Channels:  c,
			Exposure:  2 * time.Millisecond,
			Gain:      1,
			Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
	path := filepath.Join(t.TempDir(), "rgb.fits")
	err := ds.Write(path)
	if err != nil {
		t.Fatalf("write returned error %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("read returned error %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("read %d records, expected 1", len(got))
	}
	fr := got[0].Frame
	if fr.Width != w || fr.Height != h || fr.Channels != c {
		t.Fatalf("read geometry (%d, %d, %d), expected (%d, %d, %d)",
			fr.Width, fr.Height, fr.Channels, w, h, c)
	}
	for i := range pix {
		if fr.Pix[i] != pix[i] {
			t.Fatalf("pixel %d is %d, expected %d", i, fr.Pix[i], pix[i])
		}
	}
}

func TestWriteEmptyRefuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.fits")
	err := Dataset{}.Write(path)
	if err == nil {
		t.Error("writing an empty dataset did not return an error")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("empty dataset write left a file behind")
	}
}

func TestWriteBadPathErrors(t *testing.T) {
	ds := Dataset{{Frame: synthFrame(1)}}
	err := ds.Write(filepath.Join(t.TempDir(), "no", "such", "dir", "run.fits"))
	if err == nil {
		t.Error("write into a missing directory did not return an error")
	}
}
