package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taosdata/taosws-go/wsclient"
)

// rowMsg carries one decoded row pulled from the result set's fetch loop.
type rowMsg struct{ row []any }

// doneMsg marks the result set exhausted.
type doneMsg struct{}

// errMsg carries a query or fetch error.
type errMsg struct{ err error }

// model is the Bubble Tea model for taosws-cli's -interactive mode: it
// runs one query and renders the streamed rows as a scrollable table,
// adapting tui.Model's connect/recv message-passing shape (connectedMsg/
// eventMsg/errMsg in the teacher) to a one-shot query instead of a live
// event stream.
type model struct {
	cl  *wsclient.Client
	sql string

	fields []string
	rows   [][]any
	cursor int
	height int
	width  int

	done bool
	err  error

	rs *wsclient.ResultSet
}

func newModel(cl *wsclient.Client, sql string) model {
	return model{cl: cl, sql: sql}
}

func (m model) Init() tea.Cmd {
	return runQuery(m.cl, m.sql)
}

// runQuery returns a tea.Cmd that issues the query and resolves to either
// the *wsclient.ResultSet or an errMsg. Rows are not fetched here: Update
// then pulls them one at a time through recvRow, one rowMsg per row,
// mirroring the teacher's one-message-per-event idiom.
func runQuery(cl *wsclient.Client, sql string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		rs, err := cl.Run(ctx, sql)
		if err != nil {
			return errMsg{err: fmt.Errorf("taosws-cli: query: %w", err)}
		}
		return rs
	}
}

func recvRow(rs *wsclient.ResultSet) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		ok, err := rs.Next(ctx)
		if err != nil {
			return errMsg{err: fmt.Errorf("taosws-cli: fetch: %w", err)}
		}
		if !ok {
			return doneMsg{}
		}
		return rowMsg{row: rs.Row()}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case *wsclient.ResultSet:
		m.rs = msg
		if msg.IsUpdate() {
			m.fields = []string{"affected_rows"}
			m.rows = [][]any{{msg.AffectedRows()}}
			m.done = true
			_ = msg.Close()
			return m, nil
		}
		names := make([]string, 0, len(msg.Fields()))
		for _, f := range msg.Fields() {
			names = append(names, f.Name)
		}
		m.fields = names
		return m, recvRow(m.rs)

	case rowMsg:
		m.rows = append(m.rows, msg.row)
		return m, recvRow(m.rs)

	case doneMsg:
		m.done = true
		if m.rs != nil {
			_ = m.rs.Close()
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.rs != nil {
				_ = m.rs.Close()
			}
			return m, tea.Quit
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
			return m, nil
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		}
	}
	return m, nil
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
)

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("error: %v\n", m.err)
	}
	if len(m.fields) == 0 {
		return "connecting...\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(strings.Join(m.fields, "  ")))
	b.WriteByte('\n')

	for i, row := range m.rows {
		line := formatRow(row)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if !m.done {
		b.WriteString(fmt.Sprintf("\n%d rows so far, fetching...\n", len(m.rows)))
	} else {
		b.WriteString(fmt.Sprintf("\n%d rows (q to quit)\n", len(m.rows)))
	}
	return b.String()
}

func formatRow(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			parts[i] = "NULL"
			continue
		}
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "  ")
}
