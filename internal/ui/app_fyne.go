//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"mattydesign/internal/crash"
	"mattydesign/internal/domain"
	"mattydesign/internal/editor"
	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
)

// Run starts the Fyne desktop editor and blocks until the window closes.
func Run(ctx context.Context, s Session) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	fyneApp := app.NewWithID("mattydesign")
	w := fyneApp.NewWindow("Matty Design Editor")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1100)
	winH := prefs.IntWithFallback("window.height", 780)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	width, height := s.Options.Width, s.Options.Height
	if width <= 0 || height <= 0 {
		width, height = scene.DefaultWidth, scene.DefaultHeight
	}
	win := &window{
		ctx:    ctx,
		w:      w,
		log:    l,
		list:   s.Designs,
		status: widget.NewLabel("Ready"),
		view:   NewDesignCanvas(width, height),
	}
	deps := s.Deps
	deps.Notifier, deps.Prompter, deps.Navigator = win, win, win
	win.ed = editor.New(deps, s.Options)
	defer crash.Recover(win.ed, s.CrashDir)

	win.view.OnTap = func(p scene.Pt) { win.ed.SelectAt(p) }
	win.view.OnDrag = func(dx, dy float64) { win.ed.MoveSelected(dx, dy) }
	w.Canvas().SetOnTypedKey(win.typedKey)
	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		win.ed.Close()
	})

	w.SetContent(win.editorView())
	win.open(s.DesignID)
	w.ShowAndRun()
	return nil
}

type window struct {
	ctx    context.Context
	w      fyne.Window
	log    *slog.Logger
	list   DesignLister
	ed     *editor.Editor
	view   *DesignCanvas
	status *widget.Label
	imgIn  editor.ImageInput
}

func (win *window) editorView() fyne.CanvasObject {
	tools := container.NewHBox(
		widget.NewButtonWithIcon("Designs", theme.HomeIcon(), func() { win.Navigate(editor.DashboardRoute) }),
		widget.NewSeparator(),
		widget.NewButtonWithIcon("Rectangle", theme.ContentAddIcon(), func() { win.ed.AddShape(editor.ShapeRectangle) }),
		widget.NewButtonWithIcon("Circle", theme.RadioButtonIcon(), func() { win.ed.AddShape(editor.ShapeCircle) }),
		widget.NewButtonWithIcon("Text", theme.DocumentCreateIcon(), func() { win.ed.AddText() }),
		widget.NewButtonWithIcon("Image", theme.FileImageIcon(), win.chooseImage),
		widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() { win.ed.DeleteSelected() }),
		widget.NewSeparator(),
		widget.NewButtonWithIcon("Save", theme.DocumentSaveIcon(), func() { go win.ed.Save(win.ctx) }),
		widget.NewButtonWithIcon("Export PNG", theme.DownloadIcon(), func() { go win.export() }),
	)
	return container.NewBorder(tools, win.status, nil, nil, win.view)
}

// open mounts a design off the UI goroutine and binds the canvas to the view.
func (win *window) open(id string) {
	win.setStatus("Loading...")
	go func() {
		res := win.ed.Mount(win.ctx, id)
		if c := win.ed.Canvas(); c != nil {
			c.OnRender(win.redraw)
		}
		win.redraw()
		title := "New design"
		if id != "" {
			title = "Design " + id
		}
		win.log.Info("design opened", slog.String("design_id", id), slog.String("result", res.String()))
		fyne.Do(func() {
			win.w.SetTitle("Matty Design Editor - " + title)
			win.w.SetContent(win.editorView())
			win.status.SetText("Ready")
		})
	}()
}

func (win *window) redraw() {
	img, err := win.ed.Render(win.ctx)
	if err != nil {
		if !errors.Is(err, editor.ErrNoCanvas) && !errors.Is(err, scene.ErrDisposed) {
			win.log.Warn("render failed", slog.Any("err", err))
		}
		return
	}
	fyne.Do(func() { win.view.SetImage(img) })
}

func (win *window) chooseImage() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, win.w)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		win.imgIn.Select(path)
		go func() {
			if _, err := win.ed.AddImage(win.ctx, &win.imgIn); err != nil {
				win.Error(fmt.Sprintf("Could not add image: %v", err))
			}
		}()
	}, win.w)
	fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"}))
	fd.Show()
}

func (win *window) export() {
	if path, err := win.ed.Export(win.ctx); err == nil && path != "" {
		win.setStatus("Exported to " + path)
	}
}

func (win *window) typedKey(ev *fyne.KeyEvent) {
	const step = 5
	switch ev.Name {
	case fyne.KeyDelete, fyne.KeyBackspace:
		win.ed.DeleteSelected()
	case fyne.KeyLeft:
		win.ed.MoveSelected(-step, 0)
	case fyne.KeyRight:
		win.ed.MoveSelected(step, 0)
	case fyne.KeyUp:
		win.ed.MoveSelected(0, -step)
	case fyne.KeyDown:
		win.ed.MoveSelected(0, step)
	}
}

func (win *window) setStatus(msg string) { fyne.Do(func() { win.status.SetText(msg) }) }

func (win *window) Info(msg string)    { win.setStatus(msg) }
func (win *window) Success(msg string) { win.setStatus(msg) }
func (win *window) Error(msg string) {
	fyne.Do(func() {
		win.status.SetText(msg)
		dialog.ShowError(errors.New(msg), win.w)
	})
}

// Prompt shows a modal form and blocks the calling goroutine until it closes.
// It must not be called from the UI goroutine.
func (win *window) Prompt(ctx context.Context, message, def string) (string, bool) {
	type answer struct {
		text string
		ok   bool
	}
	ch := make(chan answer, 1)
	fyne.Do(func() {
		entry := widget.NewEntry()
		entry.SetText(def)
		d := dialog.NewForm("Save design", "Save", "Cancel",
			[]*widget.FormItem{widget.NewFormItem(message, entry)},
			func(ok bool) { ch <- answer{text: entry.Text, ok: ok} }, win.w)
		d.Resize(fyne.NewSize(420, d.MinSize().Height))
		d.Show()
	})
	select {
	case a := <-ch:
		return a.text, a.ok
	case <-ctx.Done():
		return "", false
	}
}

// Navigate swaps the window content to the dashboard of cached designs.
func (win *window) Navigate(route string) {
	if route != editor.DashboardRoute {
		win.log.Warn("unknown route", slog.String("route", route))
		return
	}
	go func() {
		var designs []domain.Design
		if win.list != nil {
			var err error
			if designs, err = win.list.ListDesigns(win.ctx); err != nil {
				win.log.Warn("list designs failed", slog.Any("err", err))
			}
		}
		fyne.Do(func() { win.w.SetContent(win.dashboardView(designs)) })
	}()
}

func (win *window) dashboardView(designs []domain.Design) fyne.CanvasObject {
	list := widget.NewList(
		func() int { return len(designs) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			d := designs[i]
			title := d.Title
			if title == "" {
				title = domain.DefaultTitle
			}
			o.(*widget.Label).SetText(fmt.Sprintf("%s  (%s)", title, d.ID))
		},
	)
	list.OnSelected = func(i widget.ListItemID) {
		if i >= 0 && int(i) < len(designs) {
			win.open(designs[i].ID)
		}
	}
	header := container.NewHBox(
		widget.NewLabelWithStyle("Your designs", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewButtonWithIcon("New design", theme.ContentAddIcon(), func() { win.open("") }),
	)
	var body fyne.CanvasObject = list
	if len(designs) == 0 {
		body = widget.NewLabel("No designs yet.")
	}
	return container.NewBorder(header, win.status, nil, nil, body)
}

// DesignCanvas shows the rendered scene scaled to fit, and maps taps and
// drags back to scene coordinates.
type DesignCanvas struct {
	widget.BaseWidget

	width, height float32
	img           *canvas.Image

	OnTap  func(scene.Pt)
	OnDrag func(dx, dy float64)
}

func NewDesignCanvas(width, height int) *DesignCanvas {
	d := &DesignCanvas{width: float32(width), height: float32(height)}
	d.img = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, width, height)))
	d.img.FillMode = canvas.ImageFillStretch
	d.img.ScaleMode = canvas.ImageScaleSmooth
	d.ExtendBaseWidget(d)
	return d
}

// SetImage replaces the displayed bitmap. Call on the UI goroutine.
func (d *DesignCanvas) SetImage(img image.Image) {
	d.img.Image = img
	d.img.Refresh()
}

func (d *DesignCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})
	return &designCanvasRenderer{dc: d, bg: bg, objects: []fyne.CanvasObject{bg, d.img}}
}

func (d *DesignCanvas) MinSize() fyne.Size { return fyne.NewSize(d.width/2, d.height/2) }

// fit returns the top-left corner and scale of the scene inside size.
func (d *DesignCanvas) fit(size fyne.Size) (x, y, scale float32) {
	scale = size.Width / d.width
	if s := size.Height / d.height; s < scale {
		scale = s
	}
	if scale <= 0 {
		scale = 1
	}
	x = (size.Width - d.width*scale) / 2
	y = (size.Height - d.height*scale) / 2
	return x, y, scale
}

func (d *DesignCanvas) toScene(pos fyne.Position) scene.Pt {
	x, y, s := d.fit(d.Size())
	return scene.Pt{X: float64((pos.X - x) / s), Y: float64((pos.Y - y) / s)}
}

func (d *DesignCanvas) Tapped(e *fyne.PointEvent) {
	if d.OnTap != nil {
		d.OnTap(d.toScene(e.Position))
	}
}

func (d *DesignCanvas) Dragged(e *fyne.DragEvent) {
	if d.OnDrag == nil {
		return
	}
	_, _, s := d.fit(d.Size())
	d.OnDrag(float64(e.Dragged.DX/s), float64(e.Dragged.DY/s))
}

func (d *DesignCanvas) DragEnd() {}

type designCanvasRenderer struct {
	dc      *DesignCanvas
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *designCanvasRenderer) Destroy()                     {}
func (r *designCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *designCanvasRenderer) MinSize() fyne.Size           { return r.dc.MinSize() }
func (r *designCanvasRenderer) Refresh()                     { r.Layout(r.dc.Size()); canvas.Refresh(r.dc) }

func (r *designCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	x, y, s := r.dc.fit(size)
	r.dc.img.Move(fyne.NewPos(x, y))
	r.dc.img.Resize(fyne.NewSize(r.dc.width*s, r.dc.height*s))
}
