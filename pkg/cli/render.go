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
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/carverauto/devmirror/pkg/models"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPink       = "#FF79C6"
	draculaPurple     = "#BD93F9"
	draculaRed        = "#FF5555"
	draculaYellow     = "#F1FA8C"
	draculaComment    = "#6272A4"
)

const cellPadding = 1

// styles holds the lipgloss styles shared by plain output and the dashboard.
type styles struct {
	title, header, cell, help, success, warning, error, app lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPurple)).
			Bold(true).
			Padding(0, cellPadding),
		cell: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaForeground)).
			Padding(0, cellPadding),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaOrange)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
		app: lipgloss.NewStyle().
			Padding(0, cellPadding).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(draculaCyan)),
	}
}

// statusColor picks the color a device status is rendered in.
func statusColor(status models.DeviceStatus) lipgloss.Color {
	switch status {
	case models.StatusOnline:
		return lipgloss.Color(draculaGreen)
	case models.StatusOffline:
		return lipgloss.Color(draculaRed)
	case models.StatusConnecting:
		return lipgloss.Color(draculaYellow)
	default:
		return lipgloss.Color(draculaComment)
	}
}

var deviceHeaders = []string{"ID", "NAME", "MODE", "STATUS", "ATTEMPTS", "LAST SEEN", "SESSION"}

// deviceRows flattens devices into table rows, marking the ones that have a
// running mirror session.
func deviceRows(devices []models.DeviceRecord, sessions []models.SessionInfo) [][]string {
	running := make(map[string]models.SessionInfo, len(sessions))
	for _, s := range sessions {
		running[s.DeviceID] = s
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	rows := make([][]string, 0, len(devices))

	for i := range devices {
		d := &devices[i]

		session := "-"
		if s, ok := running[d.ID]; ok {
			session = fmt.Sprintf("pid %d", s.PID)
		}

		rows = append(rows, []string{
			d.ID,
			d.Name,
			string(d.Mode),
			string(d.Status),
			fmt.Sprintf("%d", d.ReconnectAttempts),
			formatSeen(d.LastSeen),
			session,
		})
	}

	return rows
}

func formatSeen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return t.Local().Format("2006-01-02 15:04:05")
}

// renderDevices draws the device list as a bordered lipgloss table.
func renderDevices(w io.Writer, devices []models.DeviceRecord, sessions []models.SessionInfo) {
	st := newStyles()

	if len(devices) == 0 {
		fmt.Fprintln(w, st.help.Render("No devices known. Try `devmirror scan` or `devmirror connect <host>`."))
		return
	}

	rows := deviceRows(devices, sessions)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(draculaCyan))).
		Headers(deviceHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header
			}

			if col == 3 && row >= 0 && row < len(rows) {
				return st.cell.Foreground(statusColor(models.DeviceStatus(rows[row][col])))
			}

			return st.cell
		})

	fmt.Fprintln(w, t.Render())
}

func printResults(w io.Writer, verb string, results map[string]error) {
	st := newStyles()

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		if err := results[id]; err != nil {
			fmt.Fprintf(w, "%s %s: %s\n", st.error.Render("✗"), id, err)
			continue
		}

		fmt.Fprintf(w, "%s %s %s\n", st.success.Render("✓"), id, verb)
	}
}

func printOK(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, newStyles().success.Render(strings.TrimSpace(fmt.Sprintf(format, args...))))
}
