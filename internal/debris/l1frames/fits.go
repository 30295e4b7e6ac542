package l1frames

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	fitsRecordLen = 80
	fitsBlockLen  = 2880
)

// FITSHeader holds the primary HDU cards that matter for frame loading.
// Cards keeps every keyword/value pair as read (quotes stripped).
type FITSHeader struct {
	BitPix int
	Width  int
	Height int
	BZero  float64
	BScale float64
	Cards  map[string]string
}

// Observed returns DATE-OBS if present and parseable.
func (h FITSHeader) Observed() (time.Time, bool) {
	v, ok := h.Cards["DATE-OBS"]
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DecodeFITS reads the primary image HDU of a FITS stream into a Frame.
//
// BITPIX 8 yields an 8-bit frame and BITPIX 16 a 16-bit frame after
// applying BZERO/BSCALE. BITPIX 32 and -32 are linearly rescaled from the
// data range onto 16 bits. The frame timestamp comes from DATE-OBS when
// present.
func DecodeFITS(r io.Reader) (Frame, FITSHeader, error) {
	br := bufio.NewReader(r)
	hdr, err := readFITSHeader(br)
	if err != nil {
		return Frame{}, hdr, err
	}
	n := hdr.Width * hdr.Height

	var (
		samples  []float64
		bitDepth = 16
		rescale  bool
	)
	// Copy rather than allocate up front: a header that promises more data
	// than the stream holds fails at EOF instead of reserving the full size.
	var data bytes.Buffer
	want := int64(n) * int64(fitsSampleBytes(hdr.BitPix))
	if _, err := io.CopyN(&data, br, want); err != nil {
		return Frame{}, hdr, fmt.Errorf("reading FITS data: want %d bytes, got %d: %w", want, data.Len(), err)
	}
	raw := data.Bytes()
	samples = make([]float64, n)
	switch hdr.BitPix {
	case 8:
		for i, b := range raw {
			samples[i] = float64(b)*hdr.BScale + hdr.BZero
		}
		bitDepth = 8
	case 16:
		for i := range samples {
			v := int16(binary.BigEndian.Uint16(raw[2*i:]))
			samples[i] = float64(v)*hdr.BScale + hdr.BZero
		}
	case 32:
		for i := range samples {
			v := int32(binary.BigEndian.Uint32(raw[4*i:]))
			samples[i] = float64(v)*hdr.BScale + hdr.BZero
		}
		rescale = true
	case -32:
		for i := range samples {
			v := math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:]))
			samples[i] = float64(v)*hdr.BScale + hdr.BZero
		}
		rescale = true
	}

	if rescale {
		stretchTo16(samples)
	}

	ts, _ := hdr.Observed()
	f, err := NewFrameFromSamples(hdr.Width, hdr.Height, bitDepth, samples, ts)
	if err != nil {
		return Frame{}, hdr, err
	}
	return f, hdr, nil
}

func readFITSHeader(br *bufio.Reader) (FITSHeader, error) {
	hdr := FITSHeader{BScale: 1, Cards: make(map[string]string)}
	naxis := -1
	card := make([]byte, fitsRecordLen)
	read := 0
	for {
		if _, err := io.ReadFull(br, card); err != nil {
			return hdr, fmt.Errorf("reading FITS header: %w", err)
		}
		read += fitsRecordLen
		key := strings.TrimSpace(string(card[:8]))
		if key == "END" {
			break
		}
		if card[8] != '=' {
			continue
		}
		val := fitsValue(string(card[10:]))
		hdr.Cards[key] = val
		switch key {
		case "BITPIX":
			hdr.BitPix, _ = strconv.Atoi(val)
		case "NAXIS":
			naxis, _ = strconv.Atoi(val)
		case "NAXIS1":
			hdr.Width, _ = strconv.Atoi(val)
		case "NAXIS2":
			hdr.Height, _ = strconv.Atoi(val)
		case "BZERO":
			hdr.BZero, _ = strconv.ParseFloat(val, 64)
		case "BSCALE":
			hdr.BScale, _ = strconv.ParseFloat(val, 64)
		}
	}
	if pad := read % fitsBlockLen; pad != 0 {
		if _, err := br.Discard(fitsBlockLen - pad); err != nil {
			return hdr, fmt.Errorf("skipping FITS header padding: %w", err)
		}
	}
	if naxis < 2 || hdr.Width <= 0 || hdr.Height <= 0 {
		return hdr, fmt.Errorf("FITS primary HDU is not an image: NAXIS=%d NAXIS1=%d NAXIS2=%d", naxis, hdr.Width, hdr.Height)
	}
	if err := CheckDimensions(hdr.Width, hdr.Height); err != nil {
		return hdr, fmt.Errorf("FITS image: %w", err)
	}
	if fitsSampleBytes(hdr.BitPix) == 0 {
		return hdr, fmt.Errorf("unsupported FITS BITPIX %d", hdr.BitPix)
	}
	return hdr, nil
}

// fitsSampleBytes is the width of one data sample, or 0 for a BITPIX the
// decoder does not handle.
func fitsSampleBytes(bitpix int) int {
	switch bitpix {
	case 8:
		return 1
	case 16:
		return 2
	case 32, -32:
		return 4
	}
	return 0
}

// fitsValue strips the inline comment and string quotes from a card value.
func fitsValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "'") {
		if end := strings.Index(raw[1:], "'"); end >= 0 {
			return strings.TrimSpace(raw[1 : end+1])
		}
		return strings.Trim(raw, "' ")
	}
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func stretchTo16(samples []float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range samples {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	for i, v := range samples {
		if span <= 0 || math.IsNaN(v) {
			samples[i] = 0
			continue
		}
		samples[i] = (v - lo) / span * 65535
	}
}

// EncodeFITS writes f as a single-HDU FITS image. 16-bit frames are
// stored as BITPIX 16 with BZERO 32768; 8-bit and narrower as BITPIX 8.
func EncodeFITS(w io.Writer, f Frame) error {
	bitpix := 16
	if f.bitDepth <= 8 {
		bitpix = 8
	}
	cards := []string{
		fitsCard("SIMPLE", "T"),
		fitsCard("BITPIX", strconv.Itoa(bitpix)),
		fitsCard("NAXIS", "2"),
		fitsCard("NAXIS1", strconv.Itoa(f.width)),
		fitsCard("NAXIS2", strconv.Itoa(f.height)),
	}
	if bitpix == 16 {
		cards = append(cards, fitsCard("BZERO", "32768"), fitsCard("BSCALE", "1"))
	}
	if !f.Timestamp.IsZero() {
		cards = append(cards, fitsCard("DATE-OBS", "'"+f.Timestamp.UTC().Format("2006-01-02T15:04:05.999999")+"'"))
	}
	cards = append(cards, fmt.Sprintf("%-80s", "END"))

	bw := bufio.NewWriter(w)
	written := 0
	for _, c := range cards {
		n, err := bw.WriteString(c)
		if err != nil {
			return err
		}
		written += n
	}
	if err := writePadding(bw, written, ' '); err != nil {
		return err
	}

	written = 0
	if bitpix == 8 {
		for _, v := range f.pix {
			if err := bw.WriteByte(byte(v)); err != nil {
				return err
			}
		}
		written = len(f.pix)
	} else {
		var buf [2]byte
		for _, v := range f.pix {
			binary.BigEndian.PutUint16(buf[:], uint16(int32(v)-32768))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
		written = 2 * len(f.pix)
	}
	if err := writePadding(bw, written, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func fitsCard(key, value string) string {
	return fmt.Sprintf("%-80s", fmt.Sprintf("%-8s= %20s", key, value))
}

func writePadding(w *bufio.Writer, written int, fill byte) error {
	pad := (fitsBlockLen - written%fitsBlockLen) % fitsBlockLen
	for i := 0; i < pad; i++ {
		if err := w.WriteByte(fill); err != nil {
			return err
		}
	}
	return nil
}
