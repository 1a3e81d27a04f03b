package gui

import (
	"context"
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/keagan/cutline/internal/compositor"
	"github.com/keagan/cutline/internal/pipeline"
	"github.com/keagan/cutline/internal/playback"
)

// RunGUI opens the editor window and blocks until it is closed
func RunGUI(ctx context.Context, logger zerolog.Logger, p *pipeline.Pipeline) {
	logger = logger.With().Str("component", "gui").Logger()
	cfg := p.Config()
	model := NewModel(cfg)

	myApp := app.NewWithID("cutline")
	w := myApp.NewWindow("cutline editor")
	w.Resize(fyne.NewSize(720, 480))

	clock := playback.New(logger, model.State(), cfg.Timeline.PixelsPerSecond, cfg.Timeline.TickHz, model.MaxEnd)

	videoLabel := widget.NewLabel("No video loaded")
	clockLabel := widget.NewLabel("0:00 / 0:00")
	slider := widget.NewSlider(0, 1)
	slider.Step = 1
	progress := widget.NewProgressBar()
	progress.Hide()

	var view View
	syncing := false

	overlayList := widget.NewList(
		func() int { return len(view.Overlays) },
		func() fyne.CanvasObject { return widget.NewLabel("overlay") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			o := view.Overlays[id]
			label := string(o.Kind)
			if o.Text != nil {
				label = o.Text.Text
			}
			obj.(*widget.Label).SetText(fmt.Sprintf("%s  %.1fs - %.1fs", label, o.StartTime, o.EndTime))
		},
	)
	selected := ""
	overlayList.OnSelected = func(id widget.ListItemID) {
		if id < len(view.Overlays) {
			selected = view.Overlays[id].ID
		}
	}

	refresh := func() {
		view = model.View()
		syncing = true
		if view.MaxEnd > 0 {
			slider.Max = view.MaxEnd
		}
		slider.SetValue(view.Current)
		syncing = false
		clockLabel.SetText(view.Clock)
		overlayList.Refresh()
	}

	clock.OnTick(func() { fyne.Do(refresh) })

	slider.OnChanged = func(val float64) {
		if syncing {
			return
		}
		model.Scrub(val)
		refresh()
	}

	loadButton := widget.NewButton("Load Video", func() {
		fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
			if err != nil || ur == nil {
				return
			}
			defer ur.Close()
			path := ur.URI().Path()

			info, err := p.Probe(ctx, path)
			if err != nil {
				logger.Error().Err(err).Str("video", path).Msg("failed to probe video")
				dialog.ShowError(err, w)
				return
			}
			if err := model.LoadVideo(path, info); err != nil {
				dialog.ShowError(err, w)
				return
			}
			videoLabel.SetText("Loaded: " + path)
			logger.Info().Str("video", path).Dur("duration", info.Duration).Msg("video loaded")
			refresh()
		}, w)
		fd.SetFilter(storage.NewExtensionFileFilter([]string{".mp4", ".mov", ".mkv", ".webm"}))
		fd.Show()
	})

	playButton := widget.NewButton("Play / Pause", func() {
		clock.Toggle(ctx, model.Document())
		refresh()
	})

	textEntry := widget.NewEntry()
	textEntry.SetPlaceHolder("Overlay text")
	sizeEntry := widget.NewEntry()
	sizeEntry.SetText("48")

	addTextButton := widget.NewButton("Add Text", func() {
		if textEntry.Text == "" {
			return
		}
		size, err := strconv.ParseFloat(sizeEntry.Text, 64)
		if err != nil || size <= 0 {
			size = 48
		}
		model.AddText(textEntry.Text, size)
		textEntry.SetText("")
		refresh()
	})

	earlierButton := widget.NewButton("◀ 0.5s", func() {
		model.ShiftOverlay(selected, -0.5)
		refresh()
	})
	laterButton := widget.NewButton("0.5s ▶", func() {
		model.ShiftOverlay(selected, 0.5)
		refresh()
	})
	markInButton := widget.NewButton("Mark In", func() {
		model.MarkIn()
		refresh()
	})
	markOutButton := widget.NewButton("Mark Out", func() {
		model.MarkOut()
		refresh()
	})
	removeButton := widget.NewButton("Remove", func() {
		model.RemoveOverlay(selected)
		selected = ""
		overlayList.UnselectAll()
		refresh()
	})

	unsubscribe := p.Compositor().Subscribe(func(s compositor.Status) {
		fyne.Do(func() {
			progress.SetValue(float64(s.Progress) / 100)
		})
	})
	defer unsubscribe()

	renderButton := widget.NewButton("Render", func() {
		project := model.Project()
		if project.Video == "" {
			dialog.ShowInformation("Render", "Load a video first", w)
			return
		}

		dialog.ShowFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil || uc == nil {
				return
			}
			output := uc.URI().Path()
			uc.Close()

			progress.SetValue(0)
			progress.Show()
			go func() {
				_, err := p.Export(ctx, project, pipeline.ExportOptions{OutputPath: output})
				fyne.Do(func() {
					progress.Hide()
					if err != nil {
						logger.Error().Err(err).Msg("render failed")
						dialog.ShowError(err, w)
						return
					}
					dialog.ShowInformation("Render", "Saved "+output, w)
				})
			}()
		}, w)
	})

	w.SetContent(
		container.NewBorder(
			container.NewVBox(
				videoLabel,
				slider,
				container.NewHBox(playButton, markInButton, markOutButton, clockLabel),
				container.NewBorder(nil, nil, nil, container.NewHBox(sizeEntry, addTextButton), textEntry),
			),
			container.NewVBox(
				container.NewHBox(earlierButton, laterButton, removeButton),
				container.NewHBox(loadButton, renderButton),
				progress,
			),
			nil, nil,
			overlayList,
		),
	)

	w.SetOnClosed(clock.Stop)
	refresh()
	w.ShowAndRun()
}
