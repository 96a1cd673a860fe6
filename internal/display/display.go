package display

import "errors"

// Panel geometry of the SSD1306 module the firmware drives.
const (
	Width  = 128
	Height = 64
)

var ErrOutOfBounds = errors.New("drawing outside the panel")

// Display is the monochrome panel. Drawing goes to a back buffer that becomes
// visible on Flush.
type Display interface {
	Clear() error
	DrawText(x, y int, text string, on bool) error
	DrawRect(x, y, w, h int, on bool) error
	Flush() error
}
