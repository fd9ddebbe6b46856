/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"mattydesign/internal/backend"
	"mattydesign/internal/config"
	"mattydesign/internal/crash"
	"mattydesign/internal/domain"
	"mattydesign/internal/editor"
	"mattydesign/internal/export"
	applog "mattydesign/internal/log"
	"mattydesign/internal/scene"
	"mattydesign/internal/session"
	"mattydesign/internal/storage"
	"mattydesign/internal/telemetry"
	"mattydesign/internal/ui"
	"mattydesign/internal/version"
)

func usage() {
	fmt.Println("Matty Design Editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mattydesign version|-v|--version         Show version")
	fmt.Println("  mattydesign login <token> [username]     Store the session token in the OS keychain")
	fmt.Println("  mattydesign logout                       Forget the session token")
	fmt.Println("  mattydesign whoami                       Show the signed-in user")
	fmt.Println("  mattydesign list                         List cached designs")
	fmt.Println("  mattydesign fetch <id>                   Download a design into the cache")
	fmt.Println("  mattydesign edit [<id>]                  Edit a design in the console")
	fmt.Println("  mattydesign export <id> [<dir>]          Export a design as PNG")
	fmt.Println("  mattydesign batch web|print [<dir>]      Export every cached design with a preset")
	fmt.Println("  mattydesign ui [<id>]                    Launch desktop UI (build with -tags fyne)")
}

// env carries what most commands need once configuration is loaded.
type env struct {
	cfg    config.AppConfig
	log    *slog.Logger
	cache  storage.Cache
	client *backend.Client
	creds  *session.Store
}

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	defer crash.Recover(nil, "")

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Matty Design Editor")
		fmt.Println(version.String())
		return
	case "login":
		if len(args) < 3 {
			fmt.Println("login requires <token>")
			usage()
			os.Exit(2)
		}
		name := ""
		if len(args) >= 4 {
			name = args[3]
		}
		if err := session.NewStore().SignIn(args[2], name); err != nil {
			fail(l, "login failed", err)
		}
		fmt.Println("Signed in.")
		return
	case "logout":
		if err := session.NewStore().SignOut(); err != nil {
			fail(l, "logout failed", err)
		}
		fmt.Println("Signed out.")
		return
	case "whoami":
		u, err := session.NewStore().User()
		if err != nil {
			fmt.Println("Not signed in.")
			os.Exit(1)
		}
		if u.Username == "" {
			fmt.Println("Signed in (no username stored).")
		} else {
			fmt.Println("Signed in as", u.Username)
		}
		return
	}

	e, err := setup(ctx)
	if err != nil {
		fail(l, "startup failed", err)
	}
	defer func() {
		if err := e.cache.Close(); err != nil {
			l.Warn("close cache", slog.Any("err", err))
		}
		telemetry.Default().Flush(context.Background())
		telemetry.Default().Close()
	}()

	switch args[1] {
	case "list":
		designs, err := e.cache.ListDesigns(ctx)
		if err != nil {
			fail(l, "list failed", err)
		}
		if len(designs) == 0 {
			fmt.Println("No cached designs.")
		}
		for _, d := range designs {
			fmt.Printf("%s\t%s\n", d.ID, d.Title)
		}
	case "fetch":
		if len(args) < 3 {
			fmt.Println("fetch requires <id>")
			usage()
			os.Exit(2)
		}
		d, err := e.remote(ctx, args[2])
		if err != nil {
			fail(l, "fetch failed", err)
		}
		if err := e.cache.AddDesign(ctx, d); err != nil {
			fail(l, "cache design failed", err)
		}
		fmt.Printf("Cached %s (%s)\n", d.ID, d.Title)
	case "edit":
		s := e.session(argOr(args, 2, ""))
		if err := ui.RunConsole(ctx, s, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			fail(l, "editor failed", err)
		}
	case "ui":
		if err := ui.Run(ctx, e.session(argOr(args, 2, ""))); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	case "export":
		if len(args) < 3 {
			fmt.Println("export requires <id>")
			usage()
			os.Exit(2)
		}
		d, err := e.resolve(ctx, args[2])
		if err != nil {
			fail(l, "export failed", err)
		}
		path, err := export.ExportDesignPNG(ctx, d, argOr(args, 3, e.cfg.Editor.ExportDir), e.pngOptions())
		if err != nil {
			fail(l, "export failed", err)
		}
		fmt.Println("Exported", path)
	case "batch":
		if len(args) < 3 {
			fmt.Println("batch requires a preset (web or print)")
			usage()
			os.Exit(2)
		}
		designs, err := e.cache.ListDesigns(ctx)
		if err != nil {
			fail(l, "list failed", err)
		}
		results := export.BatchExport(ctx, designs, export.BatchOptions{
			Preset: export.PresetName(args[2]),
			OutDir: argOr(args, 3, e.cfg.Editor.ExportDir),
			PNG:    e.pngOptions(),
		})
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("%s\tFAILED: %v\n", r.ID, r.Err)
				continue
			}
			fmt.Printf("%s\t%s\n", r.ID, r.Path)
		}
		if failed > 0 {
			os.Exit(1)
		}
	default:
		usage()
	}
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applog.Init(cfg.Logging.Options())
	l := applog.WithComponent("cli")

	cache, err := storage.OpenCache(ctx, cfg.Cache.Driver, cfg.Cache.Path, cfg.Cache.DSN)
	if err != nil {
		return nil, fmt.Errorf("open design cache: %w", err)
	}
	client := backend.NewClient(cfg.Backend.BaseURL, backend.Options{
		Timeout:     cfg.Backend.Timeout(),
		TLSInsecure: cfg.Backend.TLSInsecure,
	})
	l.Debug("ready", slog.String("backend", cfg.Backend.BaseURL), slog.String("cache", cfg.Cache.Driver))
	return &env{cfg: cfg, log: l, cache: cache, client: client, creds: session.NewStore()}, nil
}

func (e *env) session(id string) ui.Session {
	return ui.Session{
		Deps: editor.Deps{
			Cache:       e.cache,
			Service:     e.client,
			Credentials: e.creds,
			Downloader:  export.DirDownloader{Dir: e.cfg.Editor.ExportDir},
			Events:      telemetry.Default(),
			Assets:      scene.DefaultAssets,
			Logger:      applog.WithComponent("editor"),
		},
		Options: editor.Options{
			Width:        e.cfg.Editor.Width,
			Height:       e.cfg.Editor.Height,
			Background:   e.cfg.Editor.Background,
			ExportPrefix: e.cfg.Editor.ExportPrefix,
		},
		Designs:  e.cache,
		DesignID: id,
		CrashDir: filepath.Dir(e.cfg.Cache.Path),
	}
}

func (e *env) pngOptions() export.PNGOptions {
	return export.PNGOptions{
		Width:      e.cfg.Editor.Width,
		Height:     e.cfg.Editor.Height,
		Background: e.cfg.Editor.Background,
		Multiplier: 1,
		Prefix:     e.cfg.Editor.ExportPrefix,
		Assets:     scene.DefaultAssets,
	}
}

func (e *env) remote(ctx context.Context, id string) (domain.Design, error) {
	cred, err := e.creds.Credential()
	if err != nil {
		return domain.Design{}, err
	}
	return e.client.GetDesign(ctx, cred, id)
}

// resolve prefers the cached copy and falls back to the service.
func (e *env) resolve(ctx context.Context, id string) (domain.Design, error) {
	if d, ok, err := e.cache.GetDesignByID(ctx, id); err == nil && ok {
		return d, nil
	} else if err != nil {
		e.log.Warn("cache lookup failed", slog.String("design_id", id), slog.Any("err", err))
	}
	return e.remote(ctx, id)
}

func argOr(args []string, i int, def string) string {
	if len(args) > i {
		return args[i]
	}
	return def
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}
