package l1frames

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Source yields frames in acquisition order. Next returns io.EOF once the
// sequence is exhausted.
type Source interface {
	Next() (Frame, error)
}

// SliceSource replays an in-memory sequence of frames.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource returns a Source over frames. Each frame is re-indexed
// by its position in the slice.
func NewSliceSource(frames ...Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next() (Frame, error) {
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos].WithIndex(s.pos)
	s.pos++
	return f, nil
}

var frameExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".fits": true,
	".fit":  true,
	".fts":  true,
}

// acquisition writes frame_<index>_<HHMMSS>_<micro>.png
var frameNamePattern = regexp.MustCompile(`frame_\d+_(\d{6})_(\d{6})`)

// DirSource reads image files from a directory in lexical name order.
type DirSource struct {
	dir   string
	files []string
	pos   int
}

// OpenDir lists the frame files in dir. Files with other extensions are
// ignored.
func OpenDir(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		opsf("no frame files found in %s", dir)
	} else {
		diagf("found %d frame files in %s", len(files), dir)
	}
	return &DirSource{dir: dir, files: files}, nil
}

// Len is the total number of frame files.
func (d *DirSource) Len() int { return len(d.files) }

func (d *DirSource) Next() (Frame, error) {
	if d.pos >= len(d.files) {
		return Frame{}, io.EOF
	}
	path := d.files[d.pos]
	f, err := LoadFrame(path)
	if err != nil {
		return Frame{}, err
	}
	f = f.WithIndex(d.pos)
	d.pos++
	tracef("loaded %s as frame %d (%dx%d, %d-bit)", filepath.Base(path), f.Index, f.width, f.height, f.bitDepth)
	return f, nil
}

// LoadFrame decodes a single image file into a Frame. FITS files keep their
// native depth; 16-bit grayscale PNG/TIFF stays 16-bit; anything else is
// converted to 8-bit luminance.
func LoadFrame(path string) (Frame, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".fits" || ext == ".fit" || ext == ".fts" {
		fh, err := os.Open(path)
		if err != nil {
			return Frame{}, err
		}
		defer fh.Close()
		f, _, err := DecodeFITS(fh)
		if err != nil {
			return Frame{}, fmt.Errorf("%s: %w", path, err)
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = frameTime(path)
		}
		return f, nil
	}

	if err := checkImageSize(path); err != nil {
		return Frame{}, err
	}
	img, err := imaging.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	f, err := FromImage(img, frameTime(path))
	if err != nil {
		return Frame{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// FromImage converts a decoded image to a Frame.
func FromImage(img image.Image, ts time.Time) (Frame, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if err := CheckDimensions(w, h); err != nil {
		return Frame{}, err
	}
	switch g := img.(type) {
	case *image.Gray16:
		pix := make([]uint16, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				pix = append(pix, g.Gray16At(x, y).Y)
			}
		}
		return NewFrame(w, h, 16, pix, ts)
	case *image.Gray:
		pix := make([]uint16, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				pix = append(pix, uint16(g.GrayAt(x, y).Y))
			}
		}
		return NewFrame(w, h, 8, pix, ts)
	}

	gray := imaging.Grayscale(img)
	pix := make([]uint16, w*h)
	for i := range pix {
		pix[i] = uint16(gray.Pix[i*4])
	}
	return NewFrame(w, h, 8, pix, ts)
}

// checkImageSize reads only the image header so an oversized file is
// rejected before its pixels are decoded.
func checkImageSize(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	cfg, _, err := image.DecodeConfig(fh)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := CheckDimensions(cfg.Width, cfg.Height); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// frameTime derives a capture time from the acquisition file name, falling
// back to the file modification time.
func frameTime(path string) time.Time {
	var mod time.Time
	if st, err := os.Stat(path); err == nil {
		mod = st.ModTime().UTC()
	}
	m := frameNamePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil || mod.IsZero() {
		return mod
	}
	hh, _ := strconv.Atoi(m[1][0:2])
	mm, _ := strconv.Atoi(m[1][2:4])
	ss, _ := strconv.Atoi(m[1][4:6])
	us, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 || ss > 59 {
		return mod
	}
	y, mo, d := mod.Date()
	return time.Date(y, mo, d, hh, mm, ss, us*1000, time.UTC)
}
