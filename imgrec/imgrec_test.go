package imgrec

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oplab/gonio/camera"
	"github.com/oplab/gonio/dataset"
)

func record() dataset.Record {
	return dataset.Record{
		Incidence:    10,
		Observation:  45,
		Polarization: 2,
		Frame: camera.Frame{
			Pix:      []uint16{1, 2, 3, 4, 5, 6},
			Width:    3,
			Height:   2,
			Channels: 1,
			Exposure: 5 * time.Millisecond,
			Gain:     1,
		},
	}
}

func TestSaveRecordIncrementsNames(t *testing.T) {
	r := Recorder{Root: t.TempDir(), Prefix: "shell"}
	p1, err := r.SaveRecord(record())
	if err != nil {
		t.Fatalf("first save returned error %v", err)
	}
	p2, err := r.SaveRecord(record())
	if err != nil {
		t.Fatalf("second save returned error %v", err)
	}
	if p1 == p2 {
		t.Fatalf("two saves landed at the same path %s", p1)
	}
	if !strings.HasSuffix(p1, "shell000000.fits") || !strings.HasSuffix(p2, "shell000001.fits") {
		t.Errorf("filenames did not increment, %s then %s", p1, p2)
	}
	for _, p := range []string{p1, p2} {
		ds, err := dataset.Read(p)
		if err != nil {
			t.Fatalf("reading %s back returned error %v", p, err)
		}
		if len(ds) != 1 || ds[0].Incidence != 10 {
			t.Errorf("%s did not round trip the record", p)
		}
	}
}

func TestIncrResumesAfterExistingFiles(t *testing.T) {
	r := Recorder{Root: t.TempDir(), Prefix: "shell"}
	_, err := r.SaveRecord(record())
	if err != nil {
		t.Fatalf("save returned error %v", err)
	}
	fresh := Recorder{Root: r.Root, Prefix: "shell"}
	fresh.Incr()
	p, err := fresh.SaveRecord(record())
	if err != nil {
		t.Fatalf("save after Incr returned error %v", err)
	}
	if !strings.HasSuffix(p, "shell000001.fits") {
		t.Errorf("counter did not resume past existing files, wrote %s", p)
	}
}

func TestSaveRecordBadRoot(t *testing.T) {
	// a file where the root dir should be makes MkdirAll fail
	dir := t.TempDir()
	blocker := dir + "/blocked"
	err := os.WriteFile(blocker, []byte("x"), 0666)
	if err != nil {
		t.Fatal(err)
	}
	r := Recorder{Root: blocker, Prefix: "shell"}
	_, err = r.SaveRecord(record())
	if err == nil {
		t.Error("save into an unusable root did not return an error")
	}
}
