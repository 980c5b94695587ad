// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Perigee Space Systems

package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perigee-space/vela/pkg/controller"
	"github.com/perigee-space/vela/pkg/datahandler"
	"github.com/perigee-space/vela/pkg/logger"
	"github.com/perigee-space/vela/pkg/transport"
	"github.com/perigee-space/vela/pkg/vela_protocol"
)

const (
	tuiTickPeriod = 100 * time.Millisecond
	maxLogLines   = 200
	shownLogLines = 8
)

//////////////////////////////////////////////////////////////
// Event log sink
//////////////////////////////////////////////////////////////

// logSink captures controller log lines so the dashboard can render them
// instead of letting them scramble the alternate screen.
type logSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		s.lines = append(s.lines, line)
	}
	if len(s.lines) > maxLogLines {
		s.lines = s.lines[len(s.lines)-maxLogLines:]
	}
	return len(p), nil
}

func (s *logSink) tail(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) <= n {
		return append([]string(nil), s.lines...)
	}
	return append([]string(nil), s.lines[len(s.lines)-n:]...)
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type tuiTickMsg time.Time

// tuiModel is the Bubble Tea model for the control dashboard. The controller
// is ticked from Update, so all access stays on one goroutine.
type tuiModel struct {
	pc       *controller.PayloadController
	sink     *logSink
	connInfo string

	linkQuality progress.Model

	width    int
	height   int
	quitting bool
}

func newTUIModel(pc *controller.PayloadController, sink *logSink, connInfo string) tuiModel {
	return tuiModel{
		pc:          pc,
		sink:        sink,
		connInfo:    connInfo,
		linkQuality: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:       80,
		height:      24,
	}
}

// runControlTUI wires the controller to the dashboard and runs it.
func runControlTUI(tr transport.Transport, store *datahandler.FileStore, connInfo string) error {
	sink := &logSink{}
	log := logger.NewWithOutput(sink)
	pc := controller.New(tr, store, log, controller.NewRealClock())

	m := newTUIModel(pc, sink, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	// The payload may still be powered if the TUI was killed hard.
	if pc.State() != controller.StateOff {
		pc.AddRequest(controller.ReqForcePowerOff)
		pc.Tick()
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m tuiModel) Init() tea.Cmd {
	return tuiTickCmd()
}

func tuiTickCmd() tea.Cmd {
	return tea.Tick(tuiTickPeriod, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.linkQuality.Width = m.width/2 - 10

	case tuiTickMsg:
		m.pc.Tick()
		if m.quitting && m.pc.State() == controller.StateOff {
			return m, tea.Quit
		}
		return m, tuiTickCmd()
	}

	return m, nil
}

func (m tuiModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.pc.AddRequest(controller.ReqForcePowerOff)
		m.pc.Tick()
		return m, tea.Quit

	case "q":
		if m.pc.State() == controller.StateOff {
			return m, tea.Quit
		}
		m.quitting = true
		m.pc.AddRequest(controller.ReqTurnOff)

	case "o":
		m.pc.AddRequest(controller.ReqTurnOn)

	case "s":
		m.pc.AddRequest(controller.ReqTurnOff)

	case "r":
		m.pc.AddRequest(controller.ReqReboot)

	case "i":
		m.pc.AddRequest(controller.ReqRequestImage)

	case "c":
		m.pc.AddRequest(controller.ReqClearStorage)

	case "f":
		m.pc.AddRequest(controller.ReqForcePowerOff)
	}

	return m, nil
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m tuiModel) View() string {
	if m.quitting && m.pc.State() == controller.StateOff {
		return "Payload off, shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("VELA PAYLOAD CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | o=on s=off r=reboot i=image c=clear f=force q=quit", m.connInfo)))
	s.WriteString("\n\n")

	// State panel
	var state strings.Builder
	state.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("State:"), valueStyle.Render(m.pc.State().String())))
	if m.pc.MustReAttemptBoot() {
		state.WriteString(errorStyle.Render("Boot timed out, power on to retry") + "\n")
	}
	if code := m.pc.LastError(); code != vela_protocol.ErrOK {
		state.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Last error:"), errorStyle.Render(code.String())))
	}

	// Transfer panel
	if m.pc.FileTransferInProgress() {
		tr := m.pc.Transfer()
		stats := m.pc.Stats()
		state.WriteString(fmt.Sprintf("%s %s packet %d (received %d, retried %d, skipped %d)\n",
			labelStyle.Render("Transfer:"), tr.Type.String(), tr.PacketNb,
			stats.TotalPacketsReceived, stats.TotalPacketsRetried, stats.PacketsSkipped))
		state.WriteString(m.linkQuality.ViewAs(linkQualityRatio(stats)) + "\n")
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(strings.TrimRight(state.String(), "\n")))
	s.WriteString("\n\n")

	// Telemetry panel
	if tm, ok := m.pc.Telemetry(); ok {
		var t strings.Builder
		t.WriteString(labelStyle.Render("Telemetry") + "\n")
		t.WriteString(fmt.Sprintf("Uptime %ds  Boots %d  Cameras %d  Errors %d\n",
			tm.Uptime, tm.BootCount, tm.ActiveCameras, tm.ErrorCount))
		t.WriteString(fmt.Sprintf("RAM %d%%  Disk %d%%  CPU %d%%  GPU %d%%\n",
			tm.RAMUsage, tm.DiskUsage, tm.CPULoad, tm.GPULoad))
		t.WriteString(fmt.Sprintf("Temps: CPU %.1fC  GPU %.1fC  Board %.1fC",
			float64(tm.CPUTemp)/10.0, float64(tm.GPUTemp)/10.0, float64(tm.BoardTemp)/10.0))
		s.WriteString(boxStyle.Width(m.width - 4).Render(t.String()))
		s.WriteString("\n\n")
	}

	// Event log
	var lg strings.Builder
	lg.WriteString(labelStyle.Render("Events") + "\n")
	lines := m.sink.tail(shownLogLines)
	if len(lines) == 0 {
		lg.WriteString(headerStyle.Render("(no events yet)"))
	} else {
		lg.WriteString(strings.Join(lines, "\n"))
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(lg.String()))
	s.WriteString("\n")

	return s.String()
}

// linkQualityRatio maps transfer statistics onto a 0..1 progress value.
func linkQualityRatio(stats controller.TransferStats) float64 {
	attempts := stats.TotalPacketsReceived + stats.TotalPacketsRetried + stats.PacketsSkipped
	if attempts == 0 {
		return 1.0
	}
	return float64(stats.TotalPacketsReceived) / float64(attempts)
}
