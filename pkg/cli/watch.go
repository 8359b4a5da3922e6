/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/carverauto/devmirror/pkg/app"
	"github.com/carverauto/devmirror/pkg/models"
)

const (
	refreshInterval = time.Second
	chromeHeight    = 8
	minTableHeight  = 3
)

// dashboardActions is what the dashboard can see and do.
type dashboardActions interface {
	Devices() []models.DeviceRecord
	Sessions() []models.SessionInfo
	Reconnect(ctx context.Context, id string) error
	Launch(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
}

type appActions struct {
	app *app.App
}

func (x appActions) Devices() []models.DeviceRecord {
	return x.app.Reconciler.Devices()
}

func (x appActions) Sessions() []models.SessionInfo {
	return x.app.Launcher.Sessions()
}

func (x appActions) Reconnect(ctx context.Context, id string) error {
	return x.app.Reconciler.Reconnect(ctx, id)
}

func (x appActions) Launch(ctx context.Context, id string) error {
	_, err := x.app.Launcher.Launch(ctx, id, x.app.Store.Get().MirrorOptions())

	return err
}

func (x appActions) Stop(ctx context.Context, id string) error {
	return x.app.Launcher.Stop(ctx, id)
}

type tickMsg time.Time

type eventMsg models.DeviceEvent

type eventsClosedMsg struct{}

type actionMsg struct {
	verb string
	id   string
	err  error
}

type dashboard struct {
	ctx     context.Context
	actions dashboardActions
	events  <-chan models.DeviceEvent
	copy    func(string) error

	table     table.Model
	styles    styles
	status    string
	statusErr bool
}

func newDashboard(ctx context.Context, actions dashboardActions, events <-chan models.DeviceEvent) *dashboard {
	columns := []table.Column{
		{Title: deviceHeaders[0], Width: 22},
		{Title: deviceHeaders[1], Width: 16},
		{Title: deviceHeaders[2], Width: 9},
		{Title: deviceHeaders[3], Width: 11},
		{Title: deviceHeaders[4], Width: 9},
		{Title: deviceHeaders[5], Width: 20},
		{Title: deviceHeaders[6], Width: 11},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(draculaComment)).
		BorderBottom(true).
		Foreground(lipgloss.Color(draculaPurple)).
		Bold(true)
	ts.Selected = ts.Selected.
		Foreground(lipgloss.Color(draculaForeground)).
		Background(lipgloss.Color(draculaComment)).
		Bold(false)
	t.SetStyles(ts)

	d := &dashboard{
		ctx:     ctx,
		actions: actions,
		events:  events,
		copy:    clipboard.WriteAll,
		table:   t,
		styles:  newStyles(),
	}

	d.refresh()

	return d
}

func (d *dashboard) refresh() {
	rows := deviceRows(d.actions.Devices(), d.actions.Sessions())

	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row(r))
	}

	d.table.SetRows(out)
}

func (d *dashboard) selected() string {
	row := d.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}

	return row[0]
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForEvent(events <-chan models.DeviceEvent) tea.Cmd {
	if events == nil {
		return nil
	}

	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}

		return eventMsg(ev)
	}
}

func (d *dashboard) Init() tea.Cmd {
	return tea.Batch(tick(), waitForEvent(d.events))
}

func (d *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.table.SetHeight(max(msg.Height-chromeHeight, minTableHeight))

		return d, nil
	case tickMsg:
		d.refresh()

		return d, tick()
	case eventMsg:
		d.refresh()
		d.setStatus(fmt.Sprintf("%s: %s → %s", msg.DeviceID, msg.OldStatus, msg.NewStatus), false)

		return d, waitForEvent(d.events)
	case eventsClosedMsg:
		return d, nil
	case actionMsg:
		d.refresh()

		if msg.err != nil {
			d.setStatus(fmt.Sprintf("%s %s failed: %v", msg.verb, msg.id, msg.err), true)
		} else {
			d.setStatus(fmt.Sprintf("%s %s", msg.verb, msg.id), false)
		}

		return d, nil
	case tea.KeyMsg:
		return d.handleKey(msg)
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)

	return d, cmd
}

func (d *dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return d, tea.Quit
	case "r":
		return d, d.run("reconnected", d.actions.Reconnect)
	case "l":
		return d, d.run("launched", d.actions.Launch)
	case "s":
		return d, d.run("stopped", d.actions.Stop)
	case "c":
		d.copySelected()

		return d, nil
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)

	return d, cmd
}

// run performs an action on the selected device off the UI goroutine.
func (d *dashboard) run(verb string, fn func(context.Context, string) error) tea.Cmd {
	id := d.selected()
	if id == "" {
		d.setStatus("no device selected", true)

		return nil
	}

	ctx := d.ctx

	return func() tea.Msg {
		return actionMsg{verb: verb, id: id, err: fn(ctx, id)}
	}
}

func (d *dashboard) copySelected() {
	id := d.selected()
	if id == "" {
		d.setStatus("no device selected", true)
		return
	}

	if err := d.copy(id); err != nil {
		d.setStatus("Failed to copy to clipboard", true)
		return
	}

	d.setStatus("copied "+id+" to clipboard", false)
}

func (d *dashboard) setStatus(s string, isErr bool) {
	d.status = s
	d.statusErr = isErr
}

func (d *dashboard) View() string {
	var b strings.Builder

	b.WriteString(d.styles.title.Render("devmirror"))
	b.WriteString("\n\n")
	b.WriteString(d.table.View())
	b.WriteString("\n\n")

	if d.status != "" {
		style := d.styles.success
		if d.statusErr {
			style = d.styles.error
		}

		b.WriteString(style.Render(d.status))
		b.WriteString("\n")
	}

	b.WriteString(d.styles.help.Render("↑/↓ select • r reconnect • l launch • s stop • c copy id • q quit"))

	return d.styles.app.Render(b.String())
}

func runWatch(ctx context.Context, a *app.App, _ *CmdConfig, out io.Writer) error {
	events := a.Reconciler.Subscribe(ctx)

	p := tea.NewProgram(
		newDashboard(ctx, appActions{app: a}, events),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithOutput(out),
	)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	return nil
}
