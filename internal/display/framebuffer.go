package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	pixelOn  = color.Gray{Y: 0xff}
	pixelOff = color.Gray{Y: 0x00}
)

// FlushFunc receives a copy of every flushed frame.
type FlushFunc func(frame *image.Gray, texts []string)

// Framebuffer is a software panel: an 8-bit gray image with only two levels in
// use. Text is rasterised with the fixed 7x13 face, top-left anchored.
type Framebuffer struct {
	mu      sync.Mutex
	back    *image.Gray
	front   *image.Gray
	face    font.Face
	texts   []string
	shown   []string
	onFlush []FlushFunc
}

func NewFramebuffer() *Framebuffer {
	rect := image.Rect(0, 0, Width, Height)

	return &Framebuffer{
		back:  image.NewGray(rect),
		front: image.NewGray(rect),
		face:  basicfont.Face7x13,
	}
}

// OnFlush registers fn to be called after each Flush.
func (f *Framebuffer) OnFlush(fn FlushFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFlush = append(f.onFlush, fn)
}

func (f *Framebuffer) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	draw.Draw(f.back, f.back.Bounds(), image.NewUniform(pixelOff), image.Point{}, draw.Src)
	f.texts = f.texts[:0]

	return nil
}

func (f *Framebuffer) DrawText(x, y int, text string, on bool) error {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return fmt.Errorf("%w: text at %d,%d", ErrOutOfBounds, x, y)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d := font.Drawer{
		Dst:  f.back,
		Src:  image.NewUniform(level(on)),
		Face: f.face,
		Dot:  fixed.P(x, y+f.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	if on {
		f.texts = append(f.texts, text)
	}

	return nil
}

// DrawRect strokes a one pixel outline. Parts outside the panel are clipped.
func (f *Framebuffer) DrawRect(x, y, w, h int, on bool) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: rect %dx%d", ErrOutOfBounds, w, h)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	c := level(on)
	for i := x; i < x+w; i++ {
		f.set(i, y, c)
		f.set(i, y+h-1, c)
	}
	for j := y; j < y+h; j++ {
		f.set(x, j, c)
		f.set(x+w-1, j, c)
	}

	return nil
}

func (f *Framebuffer) Flush() error {
	f.mu.Lock()
	copy(f.front.Pix, f.back.Pix)
	f.shown = append(f.shown[:0], f.texts...)
	frame := f.snapshotLocked()
	texts := append([]string(nil), f.shown...)
	listeners := append([]FlushFunc(nil), f.onFlush...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(frame, texts)
	}

	return nil
}

// Snapshot returns a copy of the visible frame.
func (f *Framebuffer) Snapshot() *image.Gray {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.snapshotLocked()
}

// Texts lists the strings drawn on the visible frame, in draw order.
func (f *Framebuffer) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.shown...)
}

// Lit reports whether the visible pixel at x,y is on.
func (f *Framebuffer) Lit(x, y int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.front.GrayAt(x, y).Y > 0x7f
}

func (f *Framebuffer) snapshotLocked() *image.Gray {
	out := image.NewGray(f.front.Rect)
	copy(out.Pix, f.front.Pix)

	return out
}

func (f *Framebuffer) set(x, y int, c color.Gray) {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return
	}
	f.back.SetGray(x, y, c)
}

func level(on bool) color.Gray {
	if on {
		return pixelOn
	}
	return pixelOff
}
