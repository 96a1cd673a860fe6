package ui

import (
	"image/color"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const pushButtonSide float32 = 56

// EdgeHandler receives press (true) and release (false) edges, like the GPIO
// interrupt on the device.
type EdgeHandler interface {
	HandleEdge(pressed bool) error
}

// ButtonLine is the emulated button wire. The device loop samples its level
// through Pressed; unless poll-only mode is on, level changes are also
// delivered as edges to the attached handler.
type ButtonLine struct {
	level    atomic.Bool
	pollOnly atomic.Bool
	edges    atomic.Pointer[EdgeHandler]
}

func NewButtonLine() *ButtonLine {
	return &ButtonLine{}
}

// Attach wires the edge handler once the debouncer exists.
func (l *ButtonLine) Attach(edges EdgeHandler) {
	if edges == nil {
		l.edges.Store(nil)
		return
	}
	l.edges.Store(&edges)
}

func (l *ButtonLine) Pressed() bool {
	return l.level.Load()
}

func (l *ButtonLine) SetPollOnly(on bool) {
	l.pollOnly.Store(on)
}

func (l *ButtonLine) PollOnly() bool {
	return l.pollOnly.Load()
}

// Set drives the line. It reports whether the level changed and the edge
// handler's error, if an edge was delivered.
func (l *ButtonLine) Set(pressed bool) (bool, error) {
	if l.level.Swap(pressed) == pressed {
		return false, nil
	}
	if l.pollOnly.Load() {
		return true, nil
	}
	edges := l.edges.Load()
	if edges == nil {
		return true, nil
	}

	return true, (*edges).HandleEdge(pressed)
}

// PushButton is the clickable cap of a ButtonLine.
type PushButton struct {
	widget.BaseWidget

	line    *ButtonLine
	hovered bool
	onError func(error)
}

func NewPushButton(line *ButtonLine) *PushButton {
	if line == nil {
		line = NewButtonLine()
	}
	b := &PushButton{line: line}
	b.ExtendBaseWidget(b)
	return b
}

// OnEdgeError is called when the debouncer rejects an edge.
func (b *PushButton) OnEdgeError(fn func(error)) {
	b.onError = fn
}

func (b *PushButton) press(pressed bool) {
	changed, err := b.line.Set(pressed)
	if err != nil {
		appLogger.Warn("button edge rejected", "pressed", pressed, "error", err)
		if b.onError != nil {
			b.onError(err)
		}
	}
	if changed {
		b.Refresh()
	}
}

func (b *PushButton) MouseDown(ev *desktop.MouseEvent) {
	if ev != nil && ev.Button != desktop.MouseButtonPrimary {
		return
	}
	b.press(true)
}

func (b *PushButton) MouseUp(ev *desktop.MouseEvent) {
	if ev != nil && ev.Button != desktop.MouseButtonPrimary {
		return
	}
	b.press(false)
}

func (b *PushButton) MouseIn(_ *desktop.MouseEvent) {
	b.hovered = true
	b.Refresh()
}

func (b *PushButton) MouseMoved(_ *desktop.MouseEvent) {}

// MouseOut releases a held button so a drag off the widget cannot leave it stuck.
func (b *PushButton) MouseOut() {
	b.hovered = false
	b.press(false)
	b.Refresh()
}

func (b *PushButton) MinSize() fyne.Size {
	pad := b.Theme().Size(theme.SizeNamePadding) * 2
	return fyne.NewSquareSize(pushButtonSide + pad)
}

func (b *PushButton) CreateRenderer() fyne.WidgetRenderer {
	knob := canvas.NewCircle(color.Transparent)
	knob.StrokeWidth = 2

	return &pushButtonRenderer{
		button:  b,
		knob:    knob,
		objects: []fyne.CanvasObject{knob},
	}
}

type pushButtonRenderer struct {
	button  *PushButton
	knob    *canvas.Circle
	objects []fyne.CanvasObject
}

func (r *pushButtonRenderer) Layout(size fyne.Size) {
	pad := r.button.Theme().Size(theme.SizeNamePadding)
	side := min(size.Width, size.Height) - pad*2
	if side < 0 {
		side = 0
	}
	r.knob.Resize(fyne.NewSquareSize(side))
	r.knob.Move(fyne.NewPos((size.Width-side)/2, (size.Height-side)/2))
}

func (r *pushButtonRenderer) MinSize() fyne.Size {
	return r.button.MinSize()
}

func (r *pushButtonRenderer) Refresh() {
	th := r.button.Theme()
	v := fyne.CurrentApp().Settings().ThemeVariant()

	r.knob.StrokeColor = th.Color(theme.ColorNameForeground, v)
	switch {
	case r.button.line.Pressed():
		r.knob.FillColor = th.Color(theme.ColorNamePrimary, v)
	case r.button.hovered:
		r.knob.FillColor = th.Color(theme.ColorNameHover, v)
	default:
		r.knob.FillColor = th.Color(theme.ColorNameButton, v)
	}
	r.knob.Refresh()
}

func (r *pushButtonRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *pushButtonRenderer) Destroy() {}
