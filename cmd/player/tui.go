// /cmd/player/tui.go
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/evictbot/playerlink/internal/enrich"
	"github.com/evictbot/playerlink/internal/history"
	"github.com/evictbot/playerlink/internal/session"
	"github.com/evictbot/playerlink/internal/version"
)

const (
	refreshInterval = 500 * time.Millisecond
	seekStepMs      = 5000
	volumeStep      = 5
	queueShown      = 5
)

type keymap struct {
	PlayPause key.Binding
	Skip      key.Binding
	SeekBack  key.Binding
	SeekFwd   key.Binding
	VolUp     key.Binding
	VolDown   key.Binding
	Shuffle   key.Binding
	Repeat    key.Binding
	Lyrics    key.Binding
	History   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeymap() keymap {
	return keymap{
		PlayPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Skip:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "skip")),
		SeekBack:  key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "seek -5s")),
		SeekFwd:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "seek +5s")),
		VolUp:     key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "volume up")),
		VolDown:   key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "volume down")),
		Shuffle:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		Repeat:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "cycle repeat")),
		Lyrics:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "toggle lyrics")),
		History:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "toggle history")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type (
	tickMsg   time.Time
	lyricsMsg struct {
		key    string
		result *enrich.LyricsResult
	}
)

type model struct {
	sess   *session.Session
	recent func() []history.PlayedTrack
	keys   keymap
	help   help.Model

	st        session.PlayerState
	connected bool
	connErr   string

	showHelp    bool
	showLyrics  bool
	showHistory bool
	lyrics      *enrich.LyricsResult
	lyricsKey   string

	width int
}

func newModel(sess *session.Session, recent func() []history.PlayedTrack) *model {
	return &model{
		sess:   sess,
		recent: recent,
		keys:   defaultKeymap(),
		help:   help.New(),
	}
}

func (m *model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) fetchLyricsCmd() tea.Cmd {
	cur := m.st.Current
	if cur == nil {
		return nil
	}
	key := cur.Title + "::" + cur.Artist
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res, err := sess.Lyrics(ctx)
		if err != nil {
			return lyricsMsg{key: key}
		}
		return lyricsMsg{key: key, result: res}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
		case key.Matches(msg, m.keys.PlayPause):
			if m.st.Controls.IsPlaying {
				m.sess.Pause()
			} else {
				m.sess.Play()
			}
		case key.Matches(msg, m.keys.Skip):
			m.sess.Skip()
		case key.Matches(msg, m.keys.SeekBack):
			if cur := m.st.Current; cur != nil {
				m.sess.Seek(lo.Clamp(cur.PositionMs-seekStepMs, 0, cur.DurationMs))
			}
		case key.Matches(msg, m.keys.SeekFwd):
			if cur := m.st.Current; cur != nil {
				m.sess.Seek(lo.Clamp(cur.PositionMs+seekStepMs, 0, cur.DurationMs))
			}
		case key.Matches(msg, m.keys.VolUp):
			m.sess.SetVolume(m.st.Controls.Volume + volumeStep)
		case key.Matches(msg, m.keys.VolDown):
			m.sess.SetVolume(m.st.Controls.Volume - volumeStep)
		case key.Matches(msg, m.keys.Shuffle):
			m.sess.ToggleShuffle()
		case key.Matches(msg, m.keys.Repeat):
			m.sess.SetRepeat(nextRepeat(m.st.Controls.RepeatMode))
		case key.Matches(msg, m.keys.Lyrics):
			m.showLyrics = !m.showLyrics
			if m.showLyrics && m.lyrics == nil {
				return m, m.fetchLyricsCmd()
			}
		case key.Matches(msg, m.keys.History):
			m.showHistory = !m.showHistory
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		prev := m.st.Current
		m.st = m.sess.State()
		m.connected = m.sess.IsConnected()
		m.connErr = m.sess.ConnectionError()

		// Track changed: drop lyrics, refetch if the panel is open.
		if cur := m.st.Current; cur != nil {
			key := cur.Title + "::" + cur.Artist
			if key != m.lyricsKey {
				m.lyricsKey = key
				m.lyrics = nil
				if m.showLyrics {
					return m, tea.Batch(tick(), m.fetchLyricsCmd())
				}
			}
		} else if prev != nil {
			m.lyrics = nil
			m.lyricsKey = ""
		}
		return m, tick()

	case lyricsMsg:
		if msg.key == m.lyricsKey {
			m.lyrics = msg.result
		}
	}

	return m, nil
}

func nextRepeat(mode session.RepeatMode) session.RepeatMode {
	switch mode {
	case session.RepeatOff:
		return session.RepeatTrack
	case session.RepeatTrack:
		return session.RepeatQueue
	default:
		return session.RepeatOff
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	lyricStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("147")).Italic(true)
)

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(version.AppName))
	b.WriteString(" " + dimStyle.Render("("+version.AppVersion+")"))
	b.WriteString("  " + labelStyle.Render("guild:") + " " + valueStyle.Render(m.sess.GuildID()))
	b.WriteString("\n")

	if m.connected {
		b.WriteString(playingStyle.Render("connected") + "\n")
	} else if m.connErr != "" {
		b.WriteString(errorStyle.Render(m.connErr) + "\n")
	} else {
		b.WriteString(dimStyle.Render("connecting...") + "\n")
	}
	b.WriteString("\n")

	cur := m.st.Current
	if cur == nil {
		b.WriteString(dimStyle.Render("Nothing playing") + "\n")
	} else {
		status := pausedStyle.Render("PAUSED")
		if m.st.Controls.IsPlaying {
			status = playingStyle.Render("PLAYING")
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", status, valueStyle.Render(trackLine(cur))))
		b.WriteString(progressLine(cur.PositionMs, cur.DurationMs, m.width) + "\n")
	}

	b.WriteString(fmt.Sprintf("%s %d%%  %s %s  %s %v\n",
		labelStyle.Render("volume:"), m.st.Controls.Volume,
		labelStyle.Render("repeat:"), string(m.st.Controls.RepeatMode),
		labelStyle.Render("shuffle:"), m.st.Controls.Shuffle,
	))

	if len(m.st.Queue) > 0 {
		b.WriteString("\n" + labelStyle.Render("Up next:") + "\n")
		for i, t := range lo.Slice(m.st.Queue, 0, queueShown) {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, trackLine(&t)))
		}
		if extra := len(m.st.Queue) - queueShown; extra > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ... and %d more\n", extra)))
		}
	}

	if m.showLyrics {
		b.WriteString("\n" + labelStyle.Render("Lyrics:") + "\n")
		b.WriteString(m.lyricsView())
	}

	if m.showHistory && m.recent != nil {
		b.WriteString("\n" + labelStyle.Render("Recently played:") + "\n")
		tracks := m.recent()
		if len(tracks) == 0 {
			b.WriteString(dimStyle.Render("  nothing yet\n"))
		}
		for _, t := range lo.Slice(tracks, 0, queueShown) {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s — %s\n", t.Title, t.Artist)))
		}
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView([][]key.Binding{
			{m.keys.PlayPause, m.keys.Skip, m.keys.SeekBack, m.keys.SeekFwd},
			{m.keys.VolUp, m.keys.VolDown, m.keys.Shuffle, m.keys.Repeat},
			{m.keys.Lyrics, m.keys.History, m.keys.Help, m.keys.Quit},
		}))
	} else {
		b.WriteString(m.help.ShortHelpView([]key.Binding{
			m.keys.PlayPause, m.keys.Skip, m.keys.Lyrics, m.keys.Help, m.keys.Quit,
		}))
	}

	return b.String()
}

// lyricsView shows the line matching the current position with one line of
// context either side.
func (m *model) lyricsView() string {
	if m.lyrics == nil || len(m.lyrics.Lines) == 0 {
		return dimStyle.Render("  no lyrics available\n")
	}
	cur := m.st.Current
	if cur == nil {
		return dimStyle.Render("  no lyrics available\n")
	}

	idx := 0
	for i, line := range m.lyrics.Lines {
		if line.OffsetMs > cur.PositionMs {
			break
		}
		idx = i
	}

	var b strings.Builder
	for i := idx - 1; i <= idx+1; i++ {
		if i < 0 || i >= len(m.lyrics.Lines) {
			continue
		}
		text := m.lyrics.Lines[i].Text
		if i == idx {
			b.WriteString("  " + lyricStyle.Render(text) + "\n")
		} else {
			b.WriteString("  " + dimStyle.Render(text) + "\n")
		}
	}
	return b.String()
}

func trackLine(t *session.TrackSnapshot) string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " — " + t.Artist
}

func progressLine(positionMs, durationMs int64, width int) string {
	barWidth := 30
	if width > 50 {
		barWidth = lo.Clamp(width-25, 30, 60)
	}

	filled := 0
	if durationMs > 0 {
		filled = int(positionMs * int64(barWidth) / durationMs)
		filled = lo.Clamp(filled, 0, barWidth)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("%s %s / %s", dimStyle.Render(bar), formatMs(positionMs), formatMs(durationMs))
}

func formatMs(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
