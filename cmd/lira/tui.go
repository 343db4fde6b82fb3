package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	pipeline "github.com/liravoice/lira-core/core"
	"github.com/muesli/reflow/wordwrap"
)

// agentEvent is one pipeline callback delivery, pumped into bubbletea
// through the event channel.
type agentEvent struct {
	kind    agentEventKind
	speaker string
	text    string
	isFinal bool
	state   pipeline.AgentState
	err     error
}

type agentEventKind int

const (
	eventTranscription agentEventKind = iota
	eventSentence
	eventResponse
	eventStateChanged
	eventError
)

// agentEventMsg wraps pipeline events for bubbletea.
type agentEventMsg agentEvent

type model struct {
	agent     *pipeline.Pipeline
	agentName string
	identity  string
	events    <-chan agentEvent

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	lines    []string
	speaking string // response in progress, grown sentence by sentence
	interim  string // live interim transcription
	state    pipeline.AgentState

	width  int
	height int
	ready  bool

	quitting bool
	styles   styles
}

func newModel(agent *pipeline.Pipeline, agentName, identity string, events <-chan agentEvent) model {
	input := textinput.New()
	input.Placeholder = "type to talk"
	input.Prompt = "> "
	input.CharLimit = 512
	input.Focus()

	return model{
		agent:     agent,
		agentName: agentName,
		identity:  identity,
		events:    events,
		input:     input,
		spin:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		state:     pipeline.StateIdle,
		styles:    newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.listenEvents(), m.spin.Tick, textinput.Blink)
}

func (m model) listenEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return agentEventMsg(event)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if text := strings.TrimSpace(m.input.Value()); text != "" {
				m.agent.SubmitUtterance(m.identity, text)
				m.input.Reset()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case agentEventMsg:
		m.handleEvent(agentEvent(msg))
		cmds = append(cmds, m.listenEvents())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) handleEvent(e agentEvent) {
	switch e.kind {
	case eventTranscription:
		if !e.isFinal {
			m.interim = e.speaker + ": " + e.text
			break
		}
		m.interim = ""
		m.addLine(m.styles.user.Render(e.speaker+":") + " " + e.text)

	case eventSentence:
		if m.speaking != "" {
			m.speaking += " "
		}
		m.speaking += e.text

	case eventResponse:
		m.speaking = ""
		if e.text != "" {
			m.addLine(m.styles.agent.Render(m.agentName+":") + " " + e.text)
		}

	case eventStateChanged:
		m.state = e.state

	case eventError:
		m.addLine(m.styles.errLine.Render("error: " + e.err.Error()))
	}

	m.refreshViewport()
}

func (m *model) addLine(line string) {
	m.lines = append(m.lines, line)
}

// refreshViewport rebuilds the conversation pane: settled lines first,
// then the response still being voiced, then the interim transcription.
func (m *model) refreshViewport() {
	if !m.ready {
		return
	}

	var lines []string
	lines = append(lines, m.lines...)
	if m.speaking != "" {
		lines = append(lines, m.styles.agent.Render(m.agentName+":")+" "+m.speaking)
	}
	if m.interim != "" {
		lines = append(lines, m.styles.dim.Render(m.interim))
	}

	m.viewport.SetContent(wordwrap.String(strings.Join(lines, "\n"), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m *model) resize() {
	headerHeight := 1
	footerHeight := 2
	viewportHeight := max(m.height-headerHeight-footerHeight, 1)

	if !m.ready {
		m.viewport = viewport.New(m.width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = viewportHeight
	}
	m.input.Width = max(m.width-len(m.input.Prompt)-1, 1)

	m.refreshViewport()
}

func (m model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if !m.ready {
		return "starting..."
	}

	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

func (m model) headerView() string {
	state := string(m.state)
	if m.state == pipeline.StateThinking || m.state == pipeline.StateSpeaking {
		state = m.spin.View() + " " + state
	}

	title := m.styles.title.Render(" " + m.agentName + " ")
	badge := m.styles.stateBadge(m.state).Render(" " + state + " ")
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(badge), 1)

	return title + strings.Repeat(" ", gap) + badge
}

func (m model) footerView() string {
	return m.input.View() + "\n" + m.styles.help.Render("enter=send  esc/ctrl+c=quit")
}

type styles struct {
	title   lipgloss.Style
	user    lipgloss.Style
	agent   lipgloss.Style
	dim     lipgloss.Style
	errLine lipgloss.Style
	help    lipgloss.Style

	idle      lipgloss.Style
	listening lipgloss.Style
	thinking  lipgloss.Style
	speaking  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("57")),
		user:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		agent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		dim:     lipgloss.NewStyle().Faint(true),
		errLine: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		help:    lipgloss.NewStyle().Faint(true),

		idle:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		listening: lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
		thinking:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		speaking:  lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
	}
}

func (s styles) stateBadge(state pipeline.AgentState) lipgloss.Style {
	switch state {
	case pipeline.StateListening:
		return s.listening
	case pipeline.StateThinking:
		return s.thinking
	case pipeline.StateSpeaking:
		return s.speaking
	default:
		return s.idle
	}
}
