/*Package dataset holds the in-memory measurement sequence for one sweep run
and its FITS persistence.

Each record becomes one image HDU in the container file, in sweep order, so
records are retrievable by sequential index.  The coordinate fields ride in
the HDU header.
*/
package dataset

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oplab/gonio/camera"
	"github.com/oplab/gonio/util"

	"github.com/astrogo/fitsio"
)

// header card names for the coordinate and metadata fields
const (
	cardIncidence    = "ANGINC"
	cardObservation  = "ANGOBS"
	cardPolarization = "POLIDX"
	cardExposure     = "EXPTIME"
	cardGain         = "GAIN"
	cardDateObs      = "DATE-OBS"
)

// Record is one measurement: where the rig was pointed, which polarization
// configuration was selected, and the frame captured there.  Never mutated
// after creation.
type Record struct {
	// Incidence is the illumination arm angle in degrees
	Incidence float64

	// Observation is the camera arm angle in degrees
	Observation float64

	// Polarization is the index of the polarization configuration
	Polarization int

	// Frame is the captured image
	Frame camera.Frame
}

// Dataset is the ordered record sequence for one run
type Dataset []Record

// Write serializes the dataset to a FITS file at path.  The file is either
// written completely or removed; there are no partial writes left behind.
func (ds Dataset) Write(path string) error {
	if len(ds) == 0 {
		return fmt.Errorf("dataset: refusing to write empty dataset to %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = ds.Encode(f)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// Encode streams the dataset as FITS to w
func (ds Dataset) Encode(w io.Writer) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	for _, rec := range ds {
		err = writeRecord(fits, rec)
		if err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(fits *fitsio.File, rec Record) error {
	fr := rec.Frame
	dims := []int{fr.Width, fr.Height}
	if fr.Channels > 1 {
		dims = append(dims, fr.Channels)
	}
	im := fitsio.NewImage(16, dims)
	defer im.Close()
	err := im.Header().Append(
		fitsio.Card{Name: "BZERO", Value: 32768},
		fitsio.Card{Name: "BSCALE", Value: 1.0},
		fitsio.Card{Name: cardIncidence, Value: rec.Incidence, Comment: "incidence angle, deg"},
		fitsio.Card{Name: cardObservation, Value: rec.Observation, Comment: "observation angle, deg"},
		fitsio.Card{Name: cardPolarization, Value: rec.Polarization, Comment: "polarization config index"},
		fitsio.Card{Name: cardExposure, Value: fr.Exposure.Seconds(), Comment: "exposure time, sec"},
		fitsio.Card{Name: cardGain, Value: fr.Gain, Comment: "gain setting"},
		fitsio.Card{Name: cardDateObs, Value: fr.Timestamp.UTC().Format(time.RFC3339), Comment: "capture time, UTC"},
	)
	if err != nil {
		return err
	}
	ints := make([]int16, len(fr.Pix))
	for i, v := range fr.Pix {
		ints[i] = int16(v - 32768)
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return fits.Write(im)
}

// Read loads a dataset previously written by Write
func Read(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fits, err := fitsio.Open(f)
	if err != nil {
		return nil, err
	}
	defer fits.Close()
	var ds Dataset
	for i := 0; i < len(fits.HDUs()); i++ {
		im, ok := fits.HDU(i).(fitsio.Image)
		if !ok {
			return ds, fmt.Errorf("dataset: HDU %d of %s is not an image", i, path)
		}
		rec, err := readRecord(im)
		if err != nil {
			return ds, fmt.Errorf("dataset: HDU %d of %s: %w", i, path, err)
		}
		ds = append(ds, rec)
	}
	return ds, nil
}

func readRecord(im fitsio.Image) (Record, error) {
	var rec Record
	hdr := im.Header()
	axes := hdr.Axes()
	if len(axes) < 2 {
		return rec, fmt.Errorf("image has %d axes, expected at least 2", len(axes))
	}
	rec.Frame.Width = axes[0]
	rec.Frame.Height = axes[1]
	rec.Frame.Channels = 1
	if len(axes) > 2 {
		rec.Frame.Channels = axes[2]
	}
	var err error
	rec.Incidence, err = floatCard(hdr, cardIncidence)
	if err != nil {
		return rec, err
	}
	rec.Observation, err = floatCard(hdr, cardObservation)
	if err != nil {
		return rec, err
	}
	polCard := hdr.Get(cardPolarization)
	if polCard == nil {
		return rec, fmt.Errorf("missing card %s", cardPolarization)
	}
	pol, ok := polCard.Value.(int)
	if !ok {
		return rec, fmt.Errorf("card %s is not an integer", cardPolarization)
	}
	rec.Polarization = pol
	expS, err := floatCard(hdr, cardExposure)
	if err != nil {
		return rec, err
	}
	rec.Frame.Exposure = util.SecsToDuration(expS)
	rec.Frame.Gain, err = floatCard(hdr, cardGain)
	if err != nil {
		return rec, err
	}
	if c := hdr.Get(cardDateObs); c != nil {
		if s, ok := c.Value.(string); ok {
			rec.Frame.Timestamp, _ = time.Parse(time.RFC3339, s)
		}
	}
	n := rec.Frame.Width * rec.Frame.Height * rec.Frame.Channels
	ints := make([]int16, n)
	err = im.Read(&ints)
	if err != nil {
		return rec, err
	}
	pix := make([]uint16, n)
	for i, v := range ints {
		pix[i] = uint16(v) + 32768
	}
	rec.Frame.Pix = pix
	return rec, nil
}

func floatCard(hdr *fitsio.Header, name string) (float64, error) {
	c := hdr.Get(name)
	if c == nil {
		return 0, fmt.Errorf("missing card %s", name)
	}
	switch v := c.Value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("card %s is not numeric", name)
	}
}
