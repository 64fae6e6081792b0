package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// buildChatCmd creates the "chat" command: an in-process terminal UI that
// drives the same AgentManager as serve, without going through HTTP.
func buildChatCmd() *cobra.Command {
	var (
		configPath string
		workspace  string
		agentID    string
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the conductor runtime in a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOrDefault(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt, err := newRuntime(cfg, workspace)
			if err != nil {
				return fmt.Errorf("build runtime: %w", err)
			}
			defer rt.Close(context.Background())

			if sessionID == "" {
				sessionID = fmt.Sprintf("chat-%d", time.Now().UnixNano())
			}

			return runChat(rt, agentID, sessionID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file (uses defaults if empty)")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", ".", "workspace root for file/shell tools")
	cmd.Flags().StringVar(&agentID, "agent", "main", "agent to converse with")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (a new one is generated if empty)")
	return cmd
}

func runChat(rt *runtime, agentID, sessionID string) error {
	model := newChatModel(rt, agentID, sessionID)
	program := tea.NewProgram(model, tea.WithAltScreen())
	model.program = program
	_, err := program.Run()
	return err
}

// ─────────────────────────────────────────────────────
// Bubble Tea messages
// ─────────────────────────────────────────────────────

type turnMsg struct{ msg *models.Message }
type turnDoneMsg struct{ err error }
type approvalResolvedMsg struct {
	requestID string
	approved  bool
}

// ─────────────────────────────────────────────────────
// Styles
// ─────────────────────────────────────────────────────

var (
	primaryColor = lipgloss.Color("#7C3AED")
	accentColor  = lipgloss.Color("#06B6D4")
	mutedColor   = lipgloss.Color("#6B7280")
	errColor     = lipgloss.Color("#EF4444")
	warnColor    = lipgloss.Color("#F59E0B")

	chatBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor)

	userStyle  = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	agentStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	toolStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	errStyle   = lipgloss.NewStyle().Foreground(errColor).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(warnColor).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// ─────────────────────────────────────────────────────
// Model
// ─────────────────────────────────────────────────────

type chatModel struct {
	rt        *runtime
	agentID   string
	sessionID string
	program   *tea.Program

	input textarea.Model
	chat  viewport.Model
	lines []string

	pendingApproval *models.ApprovalRequestPayload
	width, height   int
	ready           bool
}

func newChatModel(rt *runtime, agentID, sessionID string) *chatModel {
	ti := textarea.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()
	ti.CharLimit = 8192
	ti.SetHeight(3)
	ti.ShowLineNumbers = false
	ti.KeyMap.InsertNewline.SetEnabled(false)

	return &chatModel{
		rt:        rt,
		agentID:   agentID,
		sessionID: sessionID,
		input:     ti,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if m.pendingApproval != nil {
				return m, m.resolveApproval(text)
			}
			m.lines = append(m.lines, userStyle.Render("you")+": "+text)
			m.input.Reset()
			m.refreshChat()
			return m, m.submit(text)
		}

	case turnMsg:
		m.lines = append(m.lines, renderMessage(msg.msg))
		if msg.msg.Type == models.MessageApprovalRequest {
			m.pendingApproval = msg.msg.ApprovalRequest
			m.input.Placeholder = "approve? (y/n): "
		}
		m.refreshChat()
		return m, nil

	case turnDoneMsg:
		if msg.err != nil {
			m.lines = append(m.lines, errStyle.Render("error")+": "+msg.err.Error())
			m.refreshChat()
		}
		return m, nil

	case approvalResolvedMsg:
		m.pendingApproval = nil
		m.input.Placeholder = "Type a message..."
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		chatH := m.height - 7
		if !m.ready {
			m.chat = viewport.New(m.width-2, chatH)
			m.ready = true
		} else {
			m.chat.Width = m.width - 2
			m.chat.Height = chatH
		}
		m.input.SetWidth(m.width - 2)
		m.refreshChat()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *chatModel) View() string {
	if !m.ready {
		return "starting conductor chat..."
	}
	header := headerStyle.Width(m.width).Render(fmt.Sprintf("conductor · agent=%s session=%s", m.agentID, m.sessionID))
	chat := chatBorder.Width(m.width - 2).Render(m.chat.View())
	footer := footerStyle.Render("Enter: send · Ctrl+C: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, chat, m.input.View(), footer)
}

func (m *chatModel) refreshChat() {
	if !m.ready {
		return
	}
	m.chat.SetContent(strings.Join(m.lines, "\n"))
	m.chat.GotoBottom()
}

// submit starts a turn against the agent manager and streams each message
// back into the program as a turnMsg.
func (m *chatModel) submit(text string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.rt.manager.Submit(context.Background(), m.agentID, m.sessionID, text)
		if err != nil {
			return turnDoneMsg{err: err}
		}
		go func() {
			for msg := range out {
				m.program.Send(turnMsg{msg: msg})
			}
			m.program.Send(turnDoneMsg{})
		}()
		return nil
	}
}

// resolveApproval answers a pending approval request with a y/n reply
// (anything else is treated as feedback and denial).
func (m *chatModel) resolveApproval(reply string) tea.Cmd {
	req := m.pendingApproval
	approved := strings.EqualFold(reply, "y") || strings.EqualFold(reply, "yes")
	m.input.Reset()
	return func() tea.Msg {
		err := m.rt.manager.HandleApprovalResponse(context.Background(), &models.ApprovalResponsePayload{
			RequestID: req.RequestID,
			Approved:  approved,
			Feedback:  reply,
			DecidedBy: "chat",
		})
		if err != nil {
			return turnDoneMsg{err: err}
		}
		return approvalResolvedMsg{requestID: req.RequestID, approved: approved}
	}
}

func renderMessage(msg *models.Message) string {
	switch msg.Type {
	case models.MessageAgent:
		return agentStyle.Render(msg.AgentID) + ": " + msg.Agent.Content
	case models.MessageThinking:
		return toolStyle.Render("(thinking) " + msg.Thinking.Content)
	case models.MessageToolCall:
		return toolStyle.Render(fmt.Sprintf("→ %s(%s)", msg.ToolCall.Name, string(msg.ToolCall.Input)))
	case models.MessageToolStarted:
		return toolStyle.Render(fmt.Sprintf("… running %s", msg.ToolStarted.Name))
	case models.MessageToolResult:
		return toolStyle.Render(fmt.Sprintf("✓ %s: %s", msg.ToolResult.Name, truncate(msg.ToolResult.Content, 200)))
	case models.MessageToolError:
		return errStyle.Render(fmt.Sprintf("✗ %s: %s", msg.ToolError.Name, msg.ToolError.Message))
	case models.MessageApprovalRequest:
		return warnStyle.Render(fmt.Sprintf("approval needed for %s (%s) — reply y/n", msg.ApprovalRequest.Name, msg.ApprovalRequest.Reason))
	case models.MessageUsage:
		return toolStyle.Render(fmt.Sprintf("[tokens in=%d out=%d]", msg.Usage.InputTokens, msg.Usage.OutputTokens))
	case models.MessageError:
		return errStyle.Render("error: " + msg.Error.Message)
	case models.MessageSystem:
		return toolStyle.Render(msg.System.Content)
	default:
		return toolStyle.Render(string(msg.Type))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
