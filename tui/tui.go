// Package tui renders the soundboard as a full-screen terminal application.
package tui

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"clipdeck/audio"
	"clipdeck/board"
	"clipdeck/catalog"
	"clipdeck/playback"
	"clipdeck/tui/styles"
)

// MeterMode selects what the level meter draws.
type MeterMode int

const (
	MeterOff MeterMode = iota
	MeterSpectrum
	MeterWave
)

const (
	volumeStep   = 0.05
	errorTTL     = 5 * time.Second
	tickInterval = time.Second
	toggleWait   = 30 * time.Second
)

// Model is the main TUI model
type Model struct {
	board  *board.Board
	width  int
	height int

	// Clip list state
	cat     *catalog.Catalog
	visible []catalog.Clip
	cursor  int

	// Filter state
	filter    textinput.Model
	filtering bool

	// Playback state mirrored from manager events
	playing  map[string]bool
	progress map[string][]float64
	subs     []*playback.Subscription

	// Output state
	loop     bool
	volume   float64
	meter    MeterMode
	meterKey string
	samples  []float64

	// Overlays
	showHelp bool

	// Error handling
	lastError   error
	errorExpiry time.Time

	quitting bool
}

// NewModel creates the TUI model for an initialized board.
func NewModel(b *board.Board) Model {
	ti := textinput.New()
	ti.Placeholder = "Filter clips by key, title or tag..."
	ti.CharLimit = 64
	ti.Width = 40

	m := Model{
		board:    b,
		filter:   ti,
		playing:  make(map[string]bool),
		progress: make(map[string][]float64),
		volume:   b.Engine().Volume(),
	}
	m.setCatalog(b.Catalog())
	return m
}

// Messages
type tickMsg time.Time
type catalogMsg *catalog.Catalog
type reloadsClosedMsg struct{}
type subClosedMsg struct{}
type errMsg error

// clipEventMsg carries one playback event plus the subscription it came
// from, so Update can rearm the wait on that subscription.
type clipEventMsg struct {
	event playback.Event
	sub   *playback.Subscription
}

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitEvent(sub *playback.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.C
		if !ok {
			return subClosedMsg{}
		}
		return clipEventMsg{event: ev, sub: sub}
	}
}

func (m Model) waitReload() tea.Cmd {
	b := m.board
	return func() tea.Msg {
		c, ok := <-b.Reloads()
		if !ok {
			return reloadsClosedMsg{}
		}
		return catalogMsg(c)
	}
}

// toggleClip starts or stops a clip off the UI goroutine. First plays can
// block on fetching and decoding the source.
func (m Model) toggleClip(key string, opts playback.Options) tea.Cmd {
	b := m.board
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), toggleWait)
		defer cancel()

		if err := b.ToggleKey(ctx, key, opts); err != nil {
			return errMsg(err)
		}
		return nil
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick(), m.waitReload()}
	for _, sub := range m.subs {
		cmds = append(cmds, m.waitEvent(sub))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.lastError != nil && time.Now().After(m.errorExpiry) {
			m.lastError = nil
		}
		m.volume = m.board.Engine().Volume()
		return m, m.tick()

	case clipEventMsg:
		m.applyEvent(msg.event)
		return m, m.waitEvent(msg.sub)

	case subClosedMsg:
		return m, nil

	case catalogMsg:
		m.setCatalog((*catalog.Catalog)(msg))
		cmds := []tea.Cmd{m.waitReload()}
		for _, sub := range m.subs {
			cmds = append(cmds, m.waitEvent(sub))
		}
		return m, tea.Batch(cmds...)

	case reloadsClosedMsg:
		return m, nil

	case errMsg:
		m.lastError = msg
		m.errorExpiry = time.Now().Add(errorTTL)
		return m, nil
	}

	// Forward other messages to the filter input while it is active
	if m.filtering {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys (always work)
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	// Help overlay
	if m.showHelp {
		switch msg.String() {
		case "?", "esc", "q":
			m.showHelp = false
		}
		return m, nil
	}

	// Filter input
	if m.filtering {
		return m.handleFilterKeyPress(msg)
	}

	// Normal mode
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink

	case "esc":
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}
		return m, nil

	case "j", "down":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m, nil

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "g", "home":
		m.cursor = 0
		return m, nil

	case "G", "end":
		if len(m.visible) > 0 {
			m.cursor = len(m.visible) - 1
		}
		return m, nil

	case "enter", " ":
		if len(m.visible) == 0 {
			return m, nil
		}
		return m, m.toggleClip(m.visible[m.cursor].Key, playback.Options{Loop: m.loop})

	case "s":
		if len(m.visible) == 0 {
			return m, nil
		}
		return m, m.toggleClip(m.visible[m.cursor].Key, playback.Options{Spam: true})

	case "x":
		if len(m.visible) > 0 {
			m.board.Manager().Stop(m.visible[m.cursor].Key)
		}
		return m, nil

	case "S":
		m.board.Manager().StopAll()
		return m, nil

	case "l":
		m.loop = !m.loop
		return m, nil

	case "v":
		m.meter = (m.meter + 1) % 3
		m.meterKey = ""
		m.samples = nil
		return m, nil

	case "+", "=":
		return m.adjustVolume(volumeStep)

	case "-":
		return m.adjustVolume(-volumeStep)
	}

	return m, nil
}

func (m Model) handleFilterKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil

	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil

	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "ctrl+n":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) adjustVolume(delta float64) (tea.Model, tea.Cmd) {
	v := m.volume + delta
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	m.volume = v
	m.board.Engine().SetVolume(v)
	return m, nil
}

// applyEvent folds one playback event into the mirrored playback state.
// Progress and analysis are pulled fresh from the manager; the event only
// says that something changed.
func (m *Model) applyEvent(ev playback.Event) {
	mgr := m.board.Manager()
	switch ev.Kind {
	case playback.EventPlay:
		m.playing[ev.Key] = true
		m.progress[ev.Key] = mgr.Progress(ev.Key)

	case playback.EventProgress:
		m.progress[ev.Key] = mgr.Progress(ev.Key)
		m.sample(ev.Key)

	case playback.EventEnded:
		delete(m.playing, ev.Key)
		delete(m.progress, ev.Key)
		if m.meterKey == ev.Key {
			m.meterKey = ""
			m.samples = nil
		}
	}
}

// sample refreshes the meter buffer when key is the clip the meter follows.
func (m *Model) sample(key string) {
	if m.meter == MeterOff || key != m.meterTarget() {
		return
	}
	tap := m.board.Manager().Analysis(key)
	if tap == nil {
		return
	}
	m.meterKey = key

	switch m.meter {
	case MeterSpectrum:
		if len(m.samples) != audio.SpectrumBins {
			m.samples = make([]float64, audio.SpectrumBins)
		}
		tap.Spectrum(m.samples)
	case MeterWave:
		if len(m.samples) != audio.WindowSize {
			m.samples = make([]float64, audio.WindowSize)
		}
		tap.Waveform(m.samples)
	}
}

// meterTarget picks the clip the meter follows: the selected clip when it
// is audible, otherwise the first playing key.
func (m Model) meterTarget() string {
	if len(m.visible) > 0 {
		if key := m.visible[m.cursor].Key; m.playing[key] {
			return key
		}
	}
	keys := m.playingKeys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func (m Model) playingKeys() []string {
	keys := make([]string, 0, len(m.playing))
	for k := range m.playing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setCatalog swaps in a catalog snapshot and resubscribes to playback
// events for its keys plus any keys still playing.
func (m *Model) setCatalog(c *catalog.Catalog) {
	m.cat = c
	m.offAll()
	m.subs = m.subscribe()
	m.applyFilter()

	for k := range m.playing {
		delete(m.playing, k)
	}
	for k := range m.progress {
		delete(m.progress, k)
	}
	mgr := m.board.Manager()
	for _, key := range mgr.Keys() {
		m.playing[key] = true
		m.progress[key] = mgr.Progress(key)
	}
}

func (m *Model) subscribe() []*playback.Subscription {
	mgr := m.board.Manager()

	keys := make(map[string]struct{})
	for _, clip := range m.cat.Clips() {
		keys[clip.Key] = struct{}{}
	}
	for _, key := range mgr.Keys() {
		keys[key] = struct{}{}
	}

	subs := make([]*playback.Subscription, 0, 3*len(keys))
	for key := range keys {
		subs = append(subs,
			mgr.On(playback.EventPlay, key),
			mgr.On(playback.EventProgress, key),
			mgr.On(playback.EventEnded, key))
	}
	return subs
}

func (m *Model) offAll() {
	for _, sub := range m.subs {
		sub.Off()
	}
	m.subs = nil
}

func (m *Model) applyFilter() {
	m.visible = m.cat.Search(m.filter.Value())
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	leftWidth := m.width * 55 / 100
	rightWidth := m.width - leftWidth - 2
	bodyHeight := m.height - 3

	clips := m.renderClips(leftWidth-2, bodyHeight-2)
	side := m.renderSide(rightWidth-2, bodyHeight-2)

	main := lipgloss.JoinHorizontal(lipgloss.Top, clips, side)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderFilter(), main, m.renderStatusBar())
}

func (m Model) renderFilter() string {
	if !m.filtering && m.filter.Value() == "" {
		return styles.Dim.Render(" / to filter")
	}
	return " " + m.filter.View()
}

func (m Model) renderClips(width, height int) string {
	title := styles.PanelTitle(fmt.Sprintf("Clips (%d)", len(m.visible)), !m.filtering)

	rowsAvail := height - 2
	if rowsAvail < 1 {
		rowsAvail = 1
	}
	start := 0
	if m.cursor >= rowsAvail {
		start = m.cursor - rowsAvail + 1
	}
	end := start + rowsAvail
	if end > len(m.visible) {
		end = len(m.visible)
	}

	keyWidth := 0
	for _, clip := range m.visible {
		if len(clip.Key) > keyWidth {
			keyWidth = len(clip.Key)
		}
	}

	var body string
	if len(m.visible) == 0 {
		body = styles.Muted.Render("No clips match")
	} else {
		rows := make([]string, 0, end-start)
		clamp := lipgloss.NewStyle().MaxWidth(width)
		for i := start; i < end; i++ {
			clip := m.visible[i]

			line := styles.StatusIcon(m.playing[clip.Key]) + " " +
				styles.Title.Render(fmt.Sprintf("%-*s", keyWidth, clip.Key)) + "  " +
				styles.Subtitle.Render(clip.Title)
			if len(clip.Tags) > 0 {
				line += "  " + styles.Dim.Render(strings.Join(clip.Tags, ","))
			}

			if i == m.cursor {
				line = styles.Selected.Render("> ") + line
			} else {
				line = "  " + line
			}
			rows = append(rows, clamp.Render(line))
		}
		body = strings.Join(rows, "\n")
	}

	panel := styles.Panel(!m.filtering).Width(width).Height(height)
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body))
}

func (m Model) renderSide(width, height int) string {
	title := styles.PanelTitle("Now Playing", false)

	barWidth := width - 10
	if barWidth < 8 {
		barWidth = 8
	}

	var lines []string
	keys := m.playingKeys()
	if len(keys) == 0 {
		lines = append(lines, styles.Muted.Render("Nothing playing"))
	}
	for _, key := range keys {
		fracs := m.progress[key]

		label := styles.StatusIcon(true) + " " + styles.Title.Render(key)
		if len(fracs) > 1 {
			label += styles.Dim.Render(fmt.Sprintf(" ×%d", len(fracs)))
		}
		lines = append(lines, label)

		if len(fracs) > 0 {
			frac := fracs[0]
			pct := "  --"
			if !math.IsNaN(frac) {
				pct = fmt.Sprintf("%3.0f%%", frac*100)
			}
			lines = append(lines, "  "+styles.ProgressBar(frac, barWidth)+" "+styles.Muted.Render(pct))
		}
	}

	if m.meter != MeterOff {
		lines = append(lines, "", m.renderMeter(width-2))
	}

	panel := styles.Panel(false).Width(width).Height(height)
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{title, ""}, lines...)...))
}

func (m Model) renderMeter(width int) string {
	label := "spectrum"
	if m.meter == MeterWave {
		label = "waveform"
	}
	header := styles.Label.Render(label)
	if m.meterKey != "" {
		header += styles.Dim.Render(" · " + m.meterKey)
	}

	if len(m.samples) == 0 {
		return header + "\n" + styles.Dim.Render(strings.Repeat("▁", width))
	}
	cols := meterColumns(m.samples, width, m.meter == MeterWave)
	return header + "\n" + styles.Playing.Render(styles.Sparkline(cols))
}

// meterColumns folds raw samples into one peak per output column. Waveform
// samples are signed, so absolute peaks are taken for those.
func meterColumns(values []float64, width int, absolute bool) []float64 {
	if width < 1 {
		width = 1
	}
	cols := make([]float64, width)
	per := len(values) / width
	if per < 1 {
		per = 1
	}
	for i := 0; i < width; i++ {
		lo := i * per
		if lo >= len(values) {
			break
		}
		hi := lo + per
		if hi > len(values) {
			hi = len(values)
		}
		peak := 0.0
		for _, v := range values[lo:hi] {
			if absolute {
				v = math.Abs(v)
			}
			if v > peak {
				peak = v
			}
		}
		cols[i] = peak
	}
	return cols
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("enter:toggle  s:spam  l:loop  x:stop  S:stop all  v:meter  /:filter  +/-:volume  ?:help  q:quit")
	if m.lastError != nil {
		status = styles.Alert.Render("Error: " + m.lastError.Error())
	}

	right := styles.Muted.Render(fmt.Sprintf("vol %3.0f%%", m.volume*100))
	if m.loop {
		right = styles.Flag.Render("LOOP") + "  " + right
	}

	gap := m.width - lipgloss.Width(status) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(status + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	title := "Clipdeck - Keyboard Shortcuts"
	divider := strings.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  /            Filter clips
  Esc          Clear filter

  Clips
  ─────
  j/↓          Move down
  k/↑          Move up
  g/G          First / last clip
  Enter        Toggle selected clip
  s            Spam selected clip (overlapping)
  l            Toggle loop mode
  x            Stop selected clip
  S            Stop everything

  Output
  ──────
  +/=          Volume up
  -            Volume down
  v            Cycle level meter

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

// Run drives the soundboard UI until the user quits.
func Run(b *board.Board) error {
	model := NewModel(b)
	p := tea.NewProgram(model, tea.WithAltScreen())

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.offAll()
	}
	return err
}
