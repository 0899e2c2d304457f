package chatcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/secureproxy/secureproxy-go/cmd/secureproxy/cliconfig"
	"github.com/secureproxy/secureproxy-go/cmd/secureproxy/render"
	"github.com/secureproxy/secureproxy-go/pkg/llm"
	"github.com/secureproxy/secureproxy-go/pkg/logger"
	"github.com/secureproxy/secureproxy-go/session"
)

const chatLongDesc string = `Start an interactive chat session. The full conversation history is
sent on every turn, so the model keeps context.

Examples:
  secureproxy chat
  secureproxy chat --model gpt-4o --system "You are a terse reviewer"`

const chatShortDesc string = "Chat interactively"

type chatCommander struct {
	configPath string
	model      string
	system     string
	debug      bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to use")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt for the session")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *chatCommander) run() error {
	cfg, err := cliconfig.Load(c.configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(c.debug)
	defer log.Sync()

	cl, err := cfg.NewClient(log)
	if err != nil {
		return err
	}

	model := c.model
	if model == "" {
		model = cfg.Model
	}

	var sessOpts []session.SessionOption
	if c.system != "" {
		sessOpts = append(sessOpts, session.WithSystemPrompt(c.system))
	}
	sess := session.New(cl, sessOpts...)

	p := tea.NewProgram(newChatModel(sess, model), tea.WithAltScreen())

	// Every session transition becomes a tea message, so the view stays a
	// pure function of the session snapshot.
	cancel := sess.Subscribe(func(snap session.Snapshot) {
		p.Send(stateMsg(snap))
	})
	defer cancel()

	_, err = p.Run()
	return err
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hintStyle      = lipgloss.NewStyle().Faint(true)
)

type stateMsg session.Snapshot

type sendDoneMsg struct {
	err error
}

type chatModel struct {
	sess  *session.Session
	model string

	input textinput.Model
	spin  spinner.Model
	vp    viewport.Model
	snap  session.Snapshot
	ready bool
}

func newChatModel(sess *session.Session, model string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		sess:  sess,
		model: model,
		input: ti,
		spin:  sp,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title, status, input and hint lines surround the viewport.
		height := msg.Height - 4
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.vp.SetContent(m.renderConversation())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.snap.Sending {
				return m, nil
			}
			m.input.Reset()
			return m, tea.Batch(m.spin.Tick, sendCmd(m.sess, text, m.model))
		}

	case stateMsg:
		m.snap = session.Snapshot(msg)
		if m.ready {
			m.vp.SetContent(m.renderConversation())
			m.vp.GotoBottom()
		}
		if m.snap.Sending {
			return m, m.spin.Tick
		}
		return m, nil

	case sendDoneMsg:
		// The error, if any, already arrived through the snapshot.
		return m, nil

	case spinner.TickMsg:
		if m.snap.Sending {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) View() string {
	if !m.ready {
		return "starting..."
	}

	status := ""
	switch {
	case m.snap.Sending:
		status = m.spin.View() + " thinking..."
	case m.snap.Err != nil:
		status = errorStyle.Render(render.ErrorMessage(m.snap.Err))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("secureproxy chat (%s)", m.model)),
		m.vp.View(),
		status,
		m.input.View(),
		hintStyle.Render("enter to send · esc to quit"),
	)
}

func (m chatModel) renderConversation() string {
	var b strings.Builder
	for _, msg := range m.snap.Messages {
		switch msg.Role {
		case llm.RoleUser:
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content.Text())
		case llm.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(render.Markdown(msg.Content.Text()))
		default:
			continue
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func sendCmd(sess *session.Session, text, model string) tea.Cmd {
	return func() tea.Msg {
		_, err := sess.SendMessage(context.Background(), text, model)
		return sendDoneMsg{err: err}
	}
}
