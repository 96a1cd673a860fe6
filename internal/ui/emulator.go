package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/sync/errgroup"

	macapp "github.com/skobkin/macsniff/internal/app"
	"github.com/skobkin/macsniff/internal/events"
	"github.com/skobkin/macsniff/internal/notifications"
	"github.com/skobkin/macsniff/internal/platform"
	"github.com/skobkin/macsniff/internal/resources"
)

const metricsRefreshInterval = time.Second

// Dependencies are built by cmd/gui before the window opens.
type Dependencies struct {
	Runtime *macapp.Runtime
	Line    *ButtonLine
	Actions platform.SystemActions
	// Notifier defaults to native fyne notifications.
	Notifier notifications.Sender
	// AutoWake starts a wake cycle as soon as the window opens.
	AutoWake bool
	OnQuit   func()
}

// Run shows the emulator window and blocks until it is closed. The device
// loop, bus listener and metrics refresher are stopped before Run returns.
func Run(dep Dependencies) error {
	rt := dep.Runtime
	if rt == nil || rt.Device == nil || rt.Display == nil {
		return errors.New("ui: runtime is not initialized")
	}
	if dep.Line == nil {
		return errors.New("ui: button line is required")
	}
	if dep.Actions == nil {
		dep.Actions = platform.NewSystemActions()
	}

	fyApp := app.NewWithID(macapp.Name)
	icon := resources.AppIconResource(fyApp.Settings().ThemeVariant())
	fyApp.SetIcon(icon)
	if dep.Notifier == nil {
		dep.Notifier = NewFyneNotificationSender(fyApp)
	}

	window := fyApp.NewWindow(macapp.Name + " " + macapp.BuildVersion())

	ctx, cancel := context.WithCancel(rt.Ctx)
	defer cancel()

	v := newEmulatorView(ctx, dep, window)
	window.SetContent(v.content)
	window.SetMaster()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenBus(gctx, rt.Bus, v.handleEvent)
	})
	g.Go(func() error {
		return v.refreshMetrics(gctx)
	})

	if dep.AutoWake {
		v.session.Wake(ctx)
	}

	window.ShowAndRun()
	appLogger.Info("emulator window closed")

	cancel()
	v.session.Wait()
	err := g.Wait()
	if dep.OnQuit != nil {
		dep.OnQuit()
	}

	return err
}

type emulatorView struct {
	ctx     context.Context
	dep     Dependencies
	window  fyne.Window
	session *deviceSession

	content fyne.CanvasObject
	phase   *widget.Label
	metrics *widget.Label
	status  *widget.Label
	log     *eventLog
	logList *widget.List
	wake    *widget.Button
}

func newEmulatorView(ctx context.Context, dep Dependencies, window fyne.Window) *emulatorView {
	rt := dep.Runtime
	v := &emulatorView{
		ctx:     ctx,
		dep:     dep,
		window:  window,
		session: newDeviceSession(rt.Device.Run),
		phase:   widget.NewLabel("phase: off"),
		metrics: widget.NewLabel(formatTotals(nil)),
		status:  widget.NewLabel(""),
		log:     newEventLog(defaultLogLines),
	}

	v.logList = widget.NewList(
		v.log.Len,
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(v.log.Line(id))
		},
	)

	push := NewPushButton(dep.Line)
	push.OnEdgeError(func(err error) {
		v.setStatus("button: " + err.Error())
	})
	pollOnly := widget.NewCheck("Poll only", dep.Line.SetPollOnly)
	pollOnly.SetChecked(dep.Line.PollOnly())

	v.wake = widget.NewButtonWithIcon("Wake", theme.MediaPlayIcon(), func() {
		v.session.Wake(ctx)
	})
	v.session.onState = func(running bool) {
		fyne.Do(func() {
			if running {
				v.wake.Disable()
				return
			}
			v.wake.Enable()
		})
	}
	v.session.onDone = func(err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		fyne.Do(func() {
			dialog.ShowError(err, window)
		})
	}

	erase := widget.NewButtonWithIcon("Erase flash", theme.DeleteIcon(), v.confirmErase)
	openFolder := widget.NewButtonWithIcon("Open flash folder", theme.FolderOpenIcon(), func() {
		if err := dep.Actions.OpenFolder(rt.Flash.Root()); err != nil {
			dialog.ShowError(err, window)
		}
	})
	clearLog := widget.NewButtonWithIcon("Clear log", theme.ContentClearIcon(), func() {
		v.log.Clear()
		v.logList.Refresh()
	})

	cfg := rt.CurrentConfig()
	info := widget.NewLabel(fmt.Sprintf("radio: %s  dump: %s  long press: %s",
		cfg.Radio.Source, rt.DumpChannel.StatusTarget(), cfg.Button.LongPress()))

	left := container.NewVBox(
		container.NewCenter(newPanelView(rt.Display)),
		container.NewHBox(layout.NewSpacer(), push, layout.NewSpacer()),
		container.NewHBox(layout.NewSpacer(), pollOnly, layout.NewSpacer()),
		v.phase,
		v.metrics,
		info,
		container.NewHBox(v.wake, erase, openFolder),
		v.status,
	)
	right := container.NewBorder(
		container.NewHBox(widget.NewLabel("Events"), layout.NewSpacer(), clearLog),
		nil, nil, nil,
		v.logList,
	)

	split := container.NewHSplit(left, right)
	split.Offset = 0.45
	v.content = split
	window.Resize(fyne.NewSize(1100, 640))

	return v
}

func (v *emulatorView) handleEvent(msg any) {
	if p, ok := notificationFor(msg); ok {
		v.dep.Notifier.Send(p)
	}

	line := formatEvent(msg)
	if line == "" {
		return
	}
	phase, isPhase := msg.(events.PhaseChange)

	fyne.Do(func() {
		if isPhase {
			v.phase.SetText("phase: " + string(phase.Phase))
		}
		v.log.Append(line)
		v.logList.Refresh()
		v.logList.ScrollToBottom()
	})
}

func (v *emulatorView) refreshMetrics(ctx context.Context) error {
	metrics := v.dep.Runtime.Metrics
	if metrics == nil {
		return nil
	}

	ticker := time.NewTicker(metricsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			totals, err := metrics.Totals()
			if err != nil {
				return err
			}
			text := formatTotals(totals)
			fyne.Do(func() {
				v.metrics.SetText(text)
			})
		}
	}
}

func (v *emulatorView) confirmErase() {
	if v.session.Running() {
		dialog.ShowInformation("Device busy", "Wait until the device is sleeping before erasing flash.", v.window)
		return
	}

	dialog.ShowConfirm("Erase flash", "Delete every stored scan file?", func(ok bool) {
		if !ok {
			return
		}
		n, err := v.dep.Runtime.EraseFlash()
		if err != nil {
			dialog.ShowError(err, v.window)
			return
		}
		v.log.Append(fmt.Sprintf("flash erased: %d files", n))
		v.logList.Refresh()
	}, v.window)
}

func (v *emulatorView) setStatus(text string) {
	fyne.Do(func() {
		v.status.SetText(text)
	})
}
