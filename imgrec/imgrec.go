// Package imgrec contains a recorder used to automatically save sweep frames to disk.
package imgrec

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/oplab/gonio/dataset"
)

// Recorder saves measurement records as individual FITS files with
// incrementing filenames in yyyy-mm-dd subfolders.  It is not thread safe.
type Recorder struct {
	// counter is the internally incrementing counter
	counter int

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// timeFldr is the subfolder with yyyy-mm-dd format
	timeFldr string

	// Enabled is a flag unused by this struct that allows consumers to
	// disable its use in their code
	Enabled bool
}

// updateFolder checks the current time and updates the folder as needed
func (r *Recorder) updateFolder() {
	now := time.Now()
	y, m, d := now.Year(), now.Month(), now.Day()
	r.timeFldr = fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

// mkDir makes the folder and returns it
func (r *Recorder) mkDir() (string, error) {
	fldr := path.Join(r.Root, r.timeFldr)
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// NextPath returns the path the next saved record will land at
func (r *Recorder) NextPath() string {
	r.updateFolder()
	fn := fmt.Sprintf("%s%06d.fits", r.Prefix, r.counter)
	return path.Join(r.Root, r.timeFldr, fn)
}

// SaveRecord writes one measurement record to its own FITS file and
// advances the counter.  The counter does not advance on error.
func (r *Recorder) SaveRecord(rec dataset.Record) (string, error) {
	r.updateFolder()
	_, err := r.mkDir()
	if err != nil {
		return "", err
	}
	fn := r.NextPath()
	err = dataset.Dataset{rec}.Write(fn)
	if err != nil {
		return "", err
	}
	r.counter++
	return fn, nil
}

// Incr updates the filename counter by scanning the folder.  If there is an
// error, the counter is not changed.
func (r *Recorder) Incr() {
	r.updateFolder()
	dn, _ := r.mkDir()
	files, err := ioutil.ReadDir(dn)
	if err != nil {
		return
	}
	count := 0
	for _, file := range files {
		// skip directories, non-fits, and wrong prefix
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasSuffix(fn, ".fits") || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.TrimPrefix(fn, r.Prefix)
		bit = bit[:len(bit)-5] // pop .fits
		n, err := strconv.Atoi(bit)
		if err != nil {
			return
		}
		if count < n {
			count = n
		}
	}
	r.counter = count + 1
}
