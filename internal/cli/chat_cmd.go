package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"quillpost/internal/chat"
	"quillpost/internal/models"
)

const chatHelp = `Commands:
  /new                 start a new conversation
  /history             list saved conversations
  /open <id>           open a saved conversation
  /delete <id>         delete a saved conversation
  /show                print the current transcript
  /models              list models
  /model <id>          select a model
  /regen [n]           regenerate from message n (default: last reply)
  /star <n>            toggle the star on message n
  /tag <n> <tag>       tag message n
  /untag <n> <tag>     remove a tag from message n
  /react <n> <type>    react to message n
  /edit <n>            copy message n into the prompt
  /replace <n> <text>  rewrite message n, keeping its edit history
  /quote <n>           reply quoting message n
  /article <n>         create a draft article from message n
  /quit                exit`

func newChatCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), id)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "open a saved conversation")
	return cmd
}

// repl binds a chat session to terminal output.
type repl struct {
	session *chat.Session
	history *chat.HistoryStore
	nav     *location
	out     io.Writer
}

func (a *app) newRepl() *repl {
	nav := &location{out: a.out}
	notify := a.notifier()
	state := chat.NewState()
	history := chat.NewHistoryStore(a.client, state, notify, nav, a.logger.Named("history"))
	session := chat.NewSession(a.client, state, history, notify, nav, a.logger.Named("session"))
	return &repl{session: session, history: history, nav: nav, out: a.out}
}

func (a *app) runChat(ctx context.Context, id string) error {
	r := a.newRepl()
	r.session.Open(ctx, id)

	state := r.session.State()
	if model := state.SelectedModel(); model != "" {
		fmt.Fprintln(r.out, infoStyle.Render("model "+model+", /help for commands"))
	} else {
		fmt.Fprintln(r.out, infoStyle.Render("no model configured, add one with `quillctl models add`"))
	}
	if len(state.Messages()) > 0 {
		r.printTranscript()
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		prefix, suggestion := splitDraft(state.Draft())
		if prefix != "" {
			fmt.Fprintln(r.out, infoStyle.Render("replying to: "+strings.TrimSpace(strings.TrimPrefix(prefix, ">"))))
		}

		input, err := line.PromptWithSuggestion("quill> ", suggestion, -1)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				r.printResume()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		if strings.HasPrefix(strings.TrimSpace(input), "/") {
			state.SetDraft("")
			keepGoing, err := r.handle(ctx, strings.TrimSpace(input))
			if err != nil {
				fmt.Fprintf(r.out, "%s %v\n", errorStyle.Render("[error]"), err)
			}
			if !keepGoing {
				r.printResume()
				return nil
			}
			continue
		}

		r.send(ctx, prefix+input)
	}
}

// send runs one exchange. Ctrl+C while waiting cancels the request.
func (r *repl) send(ctx context.Context, text string) {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	err := r.session.Send(sendCtx, text)
	switch {
	case err == nil:
		r.printLastReply()
	case errors.Is(err, chat.ErrEmptyInput), errors.Is(err, chat.ErrNoModel):
	case errors.Is(err, chat.ErrBusy):
		fmt.Fprintln(r.out, infoStyle.Render("still waiting for the previous reply"))
	}
}

func (r *repl) regenerate(ctx context.Context, at int) error {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := r.session.Regenerate(sendCtx, at); err != nil {
		return err
	}
	if at > 0 {
		r.printLastReply()
	}
	return nil
}

// handle runs a slash command. It returns false when the REPL should exit.
func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]
	s := r.session

	switch name {
	case "/quit", "/exit":
		return false, nil
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/new":
		s.NewChat()
		fmt.Fprintln(r.out, infoStyle.Render("new conversation"))
	case "/history":
		printHistories(r.out, r.history.FetchAll(ctx))
	case "/open":
		if len(args) != 1 {
			return true, errors.New("usage: /open <id>")
		}
		if err := r.history.Load(ctx, args[0]); err != nil {
			return true, err
		}
		r.printTranscript()
	case "/delete":
		if len(args) != 1 {
			return true, errors.New("usage: /delete <id>")
		}
		return true, r.history.Delete(ctx, args[0])
	case "/show":
		r.printTranscript()
	case "/models":
		if err := s.CheckModels(ctx); err != nil && !errors.Is(err, chat.ErrNoModel) {
			return true, err
		}
		printModels(r.out, s.State().Models(), s.State().SelectedModel())
	case "/model":
		if len(args) != 1 {
			return true, errors.New("usage: /model <id>")
		}
		return true, s.SelectModel(args[0])
	case "/regen":
		at, err := r.regenIndex(args)
		if err != nil {
			return true, err
		}
		return true, r.regenerate(ctx, at)
	case "/star":
		i, err := messageIndex(args, 1)
		if err != nil {
			return true, err
		}
		return true, s.ToggleStar(i)
	case "/tag", "/untag", "/react":
		if len(args) < 2 {
			return true, fmt.Errorf("usage: %s <n> <value>", name)
		}
		i, err := messageIndex(args, 2)
		if err != nil {
			return true, err
		}
		value := strings.Join(args[1:], " ")
		switch name {
		case "/tag":
			return true, s.AddTag(i, value)
		case "/untag":
			return true, s.RemoveTag(i, value)
		default:
			return true, s.AddReaction(i, value)
		}
	case "/edit":
		i, err := messageIndex(args, 1)
		if err != nil {
			return true, err
		}
		return true, s.PrepareEdit(i)
	case "/replace":
		if len(args) < 2 {
			return true, errors.New("usage: /replace <n> <text>")
		}
		i, err := messageIndex(args, 2)
		if err != nil {
			return true, err
		}
		return true, s.EditMessage(i, strings.Join(args[1:], " "))
	case "/quote":
		i, err := messageIndex(args, 1)
		if err != nil {
			return true, err
		}
		return true, s.QuoteReply(i)
	case "/article":
		i, err := messageIndex(args, 1)
		if err != nil {
			return true, err
		}
		a, err := s.DraftArticleFromMessage(ctx, i)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, infoStyle.Render("publish it with `quillctl publish "+a.ID+"`"))
	default:
		return true, fmt.Errorf("unknown command %s, try /help", name)
	}
	return true, nil
}

// regenIndex resolves the message to regenerate from: the given 1-based
// position, or the last assistant reply.
func (r *repl) regenIndex(args []string) (int, error) {
	if len(args) > 0 {
		return messageIndex(args, 1)
	}
	msgs := r.session.State().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant {
			return i, nil
		}
	}
	return 0, errors.New("no reply to regenerate")
}

// messageIndex parses the 1-based message number in args[0].
func messageIndex(args []string, want int) (int, error) {
	if len(args) < want {
		return 0, errors.New("missing message number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid message number %q", args[0])
	}
	return n - 1, nil
}

// splitDraft separates a pending quote from text to prefill in the prompt.
func splitDraft(draft string) (prefix, suggestion string) {
	if strings.HasPrefix(draft, ">") && strings.HasSuffix(draft, "\n\n") && strings.Count(draft, "\n") == 2 {
		return draft, ""
	}
	return "", draft
}

func (r *repl) printTranscript() {
	msgs := r.session.State().Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, infoStyle.Render("(empty conversation)"))
		return
	}
	for i, m := range msgs {
		printMessage(r.out, i, m)
	}
}

func (r *repl) printLastReply() {
	msgs := r.session.State().Messages()
	if n := len(msgs); n > 0 && msgs[n-1].Role == models.RoleAssistant {
		printMessage(r.out, n-1, msgs[n-1])
	}
}

func (r *repl) printResume() {
	if id := r.nav.ChatID(); id != "" {
		fmt.Fprintln(r.out, infoStyle.Render("resume with: quillctl chat --id "+id))
	}
}

func printMessage(w io.Writer, i int, m models.Message) {
	label := userStyle.Render("you")
	body := m.Content
	if m.Role == models.RoleAssistant {
		label = botStyle.Render("assistant")
		body = renderMarkdown(m.Content)
	}

	var meta []string
	if m.IsStarred {
		meta = append(meta, "*")
	}
	for _, t := range m.Tags {
		meta = append(meta, "#"+t)
	}
	for _, rc := range m.Reactions {
		meta = append(meta, "+"+rc.Type)
	}
	if len(m.EditHistory) > 0 {
		meta = append(meta, "(edited)")
	}
	if m.Status == models.StatusError {
		meta = append(meta, errorStyle.Render("failed: "+m.Error))
	}

	header := fmt.Sprintf("[%d] %s", i+1, label)
	if len(meta) > 0 {
		header += " " + infoStyle.Render(strings.Join(meta, " "))
	}
	fmt.Fprintln(w, header)
	if m.ReplyTo != nil {
		fmt.Fprintln(w, infoStyle.Render("> "+m.ReplyTo.Content))
	}
	fmt.Fprintln(w, body)
	fmt.Fprintln(w)
}
