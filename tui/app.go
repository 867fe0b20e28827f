package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"taglink/tagman"
)

// Tags is the tag manager surface the monitor displays.
type Tags interface {
	ListTags() []*tagman.ManagedTag
	GetPollStats() tagman.PollStats
	SetOnChange(fn func())
}

// Service is a background service shown in the status bar.
type Service struct {
	Name    string
	Running func() bool
}

// App is the main TUI application.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	header    *tview.TextView
	table     *tview.Table
	logView   *tview.TextView
	statusBar *tview.TextView

	tags      Tags
	services  []Service
	namespace string
	store     *DebugLogStore
	listener  DebugStoreListenerID

	refreshInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
}

// NewApp creates a new TUI application. store may be nil.
func NewApp(namespace string, tags Tags, services []Service, store *DebugLogStore) *App {
	a := &App{
		app:             tview.NewApplication(),
		tags:            tags,
		services:        services,
		namespace:       namespace,
		store:           store,
		refreshInterval: time.Second,
		stopChan:        make(chan struct{}),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetText(fmt.Sprintf("[yellow::b]taglink[-::-]  namespace [white::b]%s[-::-]", tview.Escape(a.namespace)))

	a.table = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.table.SetBorder(true).SetTitle(" Tags ").SetTitleColor(ColorAccent)

	a.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetMaxLines(500).
		SetTextColor(ColorText)
	a.logView.SetBorder(true).SetTitle(" Log ").SetTitleColor(ColorAccent)

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	main := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.table, 0, 3, true).
		AddItem(a.logView, 0, 1, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages = tview.NewPages().AddPage("main", main, true, true)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(a.pages, true)

	a.refresh()
	if a.store != nil {
		for _, msg := range a.store.GetMessages() {
			fmt.Fprintln(a.logView, msg.String())
		}
	}
}

func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	if event == nil {
		return nil
	}

	// Modals handle their own keys.
	if front, _ := a.pages.GetFrontPage(); front != "main" {
		return event
	}

	switch {
	case event.Key() == tcell.KeyEscape || event.Rune() == 'q':
		a.Stop()
		return nil
	case event.Key() == tcell.KeyTab:
		if a.table.HasFocus() {
			a.app.SetFocus(a.logView)
		} else {
			a.app.SetFocus(a.table)
		}
		return nil
	case event.Rune() == 'c':
		a.logView.Clear()
		if a.store != nil {
			a.store.Clear()
		}
		return nil
	case event.Rune() == '?':
		a.showHelp()
		return nil
	}
	return event
}

func (a *App) showHelp() {
	const pageName = "help"

	textView := tview.NewTextView().SetText(HelpText)
	textView.SetBorder(true).SetTitle(" Help ")
	textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyEnter || event.Rune() == '?' {
			a.pages.RemovePage(pageName)
			a.app.SetFocus(a.table)
			return nil
		}
		return event
	})

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(textView, 14, 0, true).
			AddItem(nil, 0, 1, false), 46, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(pageName, modal, true, true)
	a.app.SetFocus(textView)
}

// refresh redraws the table and status bar. Must run on the UI goroutine
// or before Run.
func (a *App) refresh() {
	rows := buildRows(a.tags.ListTags())

	a.table.Clear()
	for col, name := range tagColumns {
		a.table.SetCell(0, col, tview.NewTableCell(name).
			SetTextColor(ColorAccent).
			SetSelectable(false).
			SetExpansion(1))
	}
	for i, row := range rows {
		for col, text := range row.cells() {
			cell := tview.NewTableCell(tview.Escape(text)).SetExpansion(1)
			if col == 2 {
				cell.SetTextColor(row.Color)
			}
			a.table.SetCell(i+1, col, cell)
		}
	}

	a.statusBar.SetText(a.statusText())
}

func (a *App) statusText() string {
	stats := a.tags.GetPollStats()
	var b strings.Builder
	fmt.Fprintf(&b, " polls %d  changes %d", stats.TagsPolled, stats.ChangesFound)
	for _, svc := range a.services {
		fmt.Fprintf(&b, "  %s %s", statusIndicator(svc.Running()), svc.Name)
	}
	b.WriteString("  [gray]? help  q quit[-]")
	return b.String()
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	a.tags.SetOnChange(func() {
		a.app.QueueUpdateDraw(a.refresh)
	})
	if a.store != nil {
		a.listener = a.store.Subscribe(func(msg LogMessage) {
			a.app.QueueUpdateDraw(func() {
				fmt.Fprintln(a.logView, msg.String())
			})
		})
	}

	go a.periodicRefresh()

	err := a.app.Run()
	a.Stop()
	return err
}

// periodicRefresh keeps the last-poll column and service states current
// when no values change.
func (a *App) periodicRefresh() {
	ticker := time.NewTicker(a.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.refresh)
		}
	}
}

// Stop detaches from the manager and ends the TUI. Safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.tags.SetOnChange(nil)
		if a.store != nil {
			a.store.Unsubscribe(a.listener)
		}
		a.app.Stop()
	})
}
