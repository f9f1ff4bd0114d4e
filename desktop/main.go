package main

import (
	"context"
	"os"
	goruntime "runtime"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"go.uber.org/zap"
)

const appTitle = "Tinkerdeck Presenter"

func main() {
	app := NewApp()
	defer app.log.Sync() //nolint:errcheck

	err := wails.Run(&options.App{
		Title:            appTitle,
		Width:            1280,
		Height:           800,
		MinWidth:         800,
		MinHeight:        600,
		BackgroundColour: &options.RGBA{R: 17, G: 17, B: 17, A: 1},
		Menu:             presenterMenu(app),
		AssetServer:      &assetserver.Options{Handler: app.GetHandler()},
		OnStartup:        onStartup(app, os.Args[1:]),
		OnShutdown:       app.shutdown,
		Bind:             []any{app},
		Mac: &mac.Options{
			About: &mac.AboutInfo{
				Title:   appTitle,
				Message: "Present HTML and markdown slide decks.",
			},
		},
	})
	if err != nil {
		app.log.Error("presenter exited", zap.Error(err))
		os.Exit(1)
	}
}

// onStartup opens the deck or directory given on the command line, if any,
// once the window exists.
func onStartup(app *App, args []string) func(context.Context) {
	return func(ctx context.Context) {
		app.startup(ctx)
		if len(args) == 0 {
			return
		}
		if err := app.Open(args[0]); err != nil {
			app.log.Error("failed to open deck", zap.String("path", args[0]), zap.Error(err))
		}
	}
}

func presenterMenu(app *App) *menu.Menu {
	m := menu.NewMenu()
	if goruntime.GOOS == "darwin" {
		m.Append(menu.AppMenu())
	}

	file := m.AddSubmenu("File")
	file.AddText("Open Deck...", keys.CmdOrCtrl("o"), func(*menu.CallbackData) { app.OpenFile() })
	file.AddText("Open Directory...", keys.CmdOrCtrl("shift+o"), func(*menu.CallbackData) { app.OpenDirectory() })
	if goruntime.GOOS != "darwin" {
		file.AddSeparator()
		file.AddText("Exit", keys.OptionOrAlt("F4"), func(*menu.CallbackData) { os.Exit(0) })
	} else {
		m.Append(menu.EditMenu())
	}

	view := m.AddSubmenu("View")
	view.AddText("Reload", keys.CmdOrCtrl("r"), func(*menu.CallbackData) { app.Reload() })
	view.AddText("Toggle Full Screen", keys.Key("F11"), func(*menu.CallbackData) { app.ToggleFullscreen() })
	return m
}
