// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package tui is the interactive chat client speaking the server's
// HTTP/SSE contract.
package tui

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	chatStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// eventMsg carries one SSE event into the Bubble Tea loop.
type eventMsg struct{ ev StreamEvent }

// streamDoneMsg signals the SSE stream ended.
type streamDoneMsg struct{ err error }

// Model is the Bubble Tea model for the chat client.
type Model struct {
	client   *Client
	input    textinput.Model
	viewport viewport.Model
	events   chan tea.Msg

	transcript string
	status     string
	model      string
	streaming  bool
	ready      bool
}

// New creates the chat model against a running server.
func New(client *Client, model string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask your notes anything"
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		client:   client,
		input:    ti,
		viewport: viewport.New(0, 0),
		events:   make(chan tea.Msg, 64),
		status:   "Connected. Type a question and press Enter.",
		model:    model,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := chatStyle.GetFrameSize()
		vh := msg.Height - fh - 4 // header, input, status, spacer
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = vh
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.streaming {
			question := strings.TrimSpace(m.input.Value())
			if question != "" {
				m.input.SetValue("")
				m.streaming = true
				m.status = "Thinking..."
				m.transcript += userStyle.Render("You: ") + question + "\n\n"
				m.refresh()
				return m, tea.Batch(m.startStream(question), m.waitEvent())
			}
		}

	case eventMsg:
		m.apply(msg.ev)
		m.refresh()
		return m, m.waitEvent()

	case streamDoneMsg:
		m.drain()
		m.streaming = false
		if msg.err != nil {
			m.status = errStyle.Render("Error: " + msg.err.Error())
		} else if !strings.HasPrefix(m.status, "Error") {
			m.status = "Ready."
		}
		m.transcript += "\n"
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Cerebro") + dimStyle.Render("  ·  "+m.model)
	return header + "\n" +
		chatStyle.Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		dimStyle.Render(m.status)
}

func (m *Model) startStream(question string) tea.Cmd {
	client := m.client
	events := m.events
	return func() tea.Msg {
		err := client.AskStream(context.Background(), question, func(ev StreamEvent) {
			events <- eventMsg{ev: ev}
		})
		return streamDoneMsg{err: err}
	}
}

func (m *Model) waitEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg { return <-events }
}

func (m *Model) apply(ev StreamEvent) {
	switch ev.Name {
	case "phase":
		var data struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(ev.Data, &data) == nil {
			m.status = data.Message
		}
	case "token":
		var data struct {
			Content string `json:"content"`
		}
		if json.Unmarshal(ev.Data, &data) == nil {
			m.transcript += data.Content
		}
	case "sources":
		if rendered := FormatSources(ev.Data); rendered != "" {
			m.transcript += "\n\n" + dimStyle.Render(rendered)
		}
	case "error":
		var data struct {
			Message  string `json:"message"`
			Category string `json:"category"`
		}
		if json.Unmarshal(ev.Data, &data) == nil {
			m.status = errStyle.Render("Error (" + data.Category + "): " + data.Message)
		}
	}
}

// drain applies any events still buffered when the stream ends, so no
// trailing tokens are lost to the done/event race.
func (m *Model) drain() {
	for {
		select {
		case msg := <-m.events:
			if ev, ok := msg.(eventMsg); ok {
				m.apply(ev.ev)
			}
		default:
			return
		}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript)
	m.viewport.GotoBottom()
}
