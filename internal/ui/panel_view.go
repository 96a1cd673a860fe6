package ui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/skobkin/macsniff/internal/display"
)

const panelScale = 4

// newPanelView shows every flushed frame of fb, scaled up with hard pixel edges.
func newPanelView(fb *display.Framebuffer) *canvas.Image {
	img := canvas.NewImageFromImage(fb.Snapshot())
	img.ScaleMode = canvas.ImageScalePixels
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(display.Width*panelScale, display.Height*panelScale))

	fb.OnFlush(func(frame *image.Gray, _ []string) {
		fyne.Do(func() {
			img.Image = frame
			img.Refresh()
		})
	})

	return img
}
