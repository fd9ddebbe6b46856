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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"mattydesign/internal/crash"
	"mattydesign/internal/editor"
	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
)

// Console drives the editor from text commands, one per line.
type Console struct {
	in   *bufio.Reader
	out  io.Writer
	ed   *editor.Editor
	list DesignLister
	img  editor.ImageInput
	log  *slog.Logger

	eof bool
}

const consoleHelp = `Commands:
  rect | circle | text        add a shape with default styling
  image <path>                insert an image file
  select <x> <y>              select the top-most object at a point
  move <dx> <dy>              move the selection
  delete                      remove the selection
  objects                     list the objects on the canvas
  save                        save the design (asks for a name)
  export                      export the canvas as PNG
  designs                     show the dashboard of cached designs
  open <id> | new             switch design
  help | quit`

// RunConsole reads commands from in until "quit" or end of input.
func RunConsole(ctx context.Context, s Session, in io.Reader, out io.Writer) error {
	c := &Console{in: bufio.NewReader(in), out: out, list: s.Designs, log: applog.WithComponent("console")}
	deps := s.Deps
	deps.Notifier, deps.Prompter, deps.Navigator = c, c, c
	c.ed = editor.New(deps, s.Options)
	defer c.ed.Close()
	defer crash.Recover(c.ed, s.CrashDir)

	c.mount(ctx, s.DesignID)
	c.println("Type 'help' for commands.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.printf("> ")
		line, ok := c.readLine()
		if !ok {
			return nil
		}
		quit, err := c.exec(ctx, line)
		if err != nil {
			c.printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) mount(ctx context.Context, id string) {
	res := c.ed.Mount(ctx, id)
	c.log.Debug("mounted", slog.String("design_id", id), slog.String("result", res.String()))
	if id != "" && res == editor.LoadNoDocument {
		c.printf("Design %s could not be loaded; starting from an empty canvas.\n", id)
	}
}

func (c *Console) readLine() (string, bool) {
	if c.eof {
		return "", false
	}
	line, err := c.in.ReadString('\n')
	if err != nil {
		c.eof = true
		if line == "" {
			return "", false
		}
	}
	return strings.TrimRight(line, "\r\n"), true
}

func (c *Console) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		c.println(consoleHelp)
	case "quit", "exit", "q":
		return true, nil
	case "rect", "rectangle":
		c.added(c.ed.AddShape(editor.ShapeRectangle))
	case "circle":
		c.added(c.ed.AddShape(editor.ShapeCircle))
	case "text":
		c.added(c.ed.AddText())
	case "image":
		if len(args) == 0 {
			return false, errors.New("image requires <path>")
		}
		c.img.Select(strings.Join(args, " "))
		obj, err := c.ed.AddImage(ctx, &c.img)
		if err != nil {
			return false, err
		}
		c.added(obj)
	case "select":
		x, y, err := twoFloats(args)
		if err != nil {
			return false, fmt.Errorf("select: %w", err)
		}
		if obj := c.ed.SelectAt(scene.Pt{X: x, Y: y}); obj != nil {
			c.printf("selected %s\n", describe(obj))
		} else {
			c.println("nothing there")
		}
	case "move":
		dx, dy, err := twoFloats(args)
		if err != nil {
			return false, fmt.Errorf("move: %w", err)
		}
		if !c.ed.MoveSelected(dx, dy) {
			c.println("nothing selected")
		}
	case "delete", "del", "rm":
		if !c.ed.DeleteSelected() {
			c.println("nothing selected")
		}
	case "objects", "ls":
		c.listObjects()
	case "save":
		res, _ := c.ed.Save(ctx)
		if res == editor.SaveCancelled {
			c.println("save cancelled")
		}
	case "export":
		if _, err := c.ed.Export(ctx); err != nil {
			return false, err
		}
	case "designs", "dashboard":
		c.Navigate(editor.DashboardRoute)
	case "open":
		if len(args) != 1 {
			return false, errors.New("open requires <id>")
		}
		c.mount(ctx, args[0])
	case "new":
		c.mount(ctx, "")
	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return false, nil
}

func twoFloats(args []string) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("expected two numbers")
	}
	a, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (c *Console) added(obj scene.Object) {
	if obj != nil {
		c.printf("added %s\n", describe(obj))
	}
}

func (c *Console) listObjects() {
	cv := c.ed.Canvas()
	if cv == nil {
		c.println("no canvas")
		return
	}
	active := cv.Active()
	for i, o := range cv.Objects() {
		mark := " "
		if o == active {
			mark = "*"
		}
		c.printf("%s %2d %s\n", mark, i, describe(o))
	}
}

func describe(o scene.Object) string {
	b := o.Bounds()
	return fmt.Sprintf("%s at (%.0f,%.0f) %.0fx%.0f", o.Kind(), b.X, b.Y, b.W, b.H)
}

func (c *Console) Info(msg string)    { c.println(msg) }
func (c *Console) Success(msg string) { c.println(msg) }
func (c *Console) Error(msg string)   { c.printf("error: %s\n", msg) }

// Prompt shows def in brackets; a blank answer accepts it and end of input cancels.
func (c *Console) Prompt(_ context.Context, message, def string) (string, bool) {
	c.printf("%s [%s] ", message, def)
	line, ok := c.readLine()
	if !ok {
		c.println("")
		return "", false
	}
	if strings.TrimSpace(line) == "" {
		return def, true
	}
	return line, true
}

// Navigate prints the dashboard; the console keeps the last canvas open.
func (c *Console) Navigate(route string) {
	if route != editor.DashboardRoute {
		c.log.Warn("unknown route", slog.String("route", route))
		return
	}
	c.println("Dashboard:")
	if c.list == nil {
		c.println("  (no cache)")
		return
	}
	designs, err := c.list.ListDesigns(context.Background())
	if err != nil {
		c.printf("  could not list designs: %v\n", err)
		return
	}
	if len(designs) == 0 {
		c.println("  (no designs yet)")
	}
	for _, d := range designs {
		c.printf("  %s  %s\n", d.ID, d.Title)
	}
}

func (c *Console) printf(format string, args ...any) { _, _ = fmt.Fprintf(c.out, format, args...) }
func (c *Console) println(s string)                  { _, _ = fmt.Fprintln(c.out, s) }
