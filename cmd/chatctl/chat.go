package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hackmate/pkg/chatclient"
	"hackmate/pkg/obs"
)

const historyPageSize = 50

var dmCmd = &cobra.Command{
	Use:   "dm <peer-id>",
	Short: "Open a direct conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, chatclient.Direct(args[0]))
	},
}

var teamCmd = &cobra.Command{
	Use:   "team <team-id>",
	Short: "Open a team conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, chatclient.Team(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(dmCmd, teamCmd)
}

type settings struct {
	Server string
	User   string
	Name   string
	Debug  bool
}

func loadSettings() (settings, error) {
	s := settings{
		Server: viper.GetString("server"),
		User:   viper.GetString("user"),
		Name:   viper.GetString("name"),
		Debug:  viper.GetBool("debug"),
	}
	if _, err := uuid.Parse(s.User); err != nil {
		return settings{}, fmt.Errorf("--user must be your user UUID (got %q)", s.User)
	}
	if s.Name == "" {
		s.Name = s.User[:8]
	}
	return s, nil
}

// socketURL maps the server base URL to its websocket endpoint.
func socketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat"
	u.RawQuery = ""
	return u.String(), nil
}

func runChat(cmd *cobra.Command, target chatclient.Target) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	wsURL, err := socketURL(s.Server)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	level := "warn"
	if s.Debug {
		level = "debug"
	}
	logger := obs.NewLoggerTo(cmd.ErrOrStderr(), "dev", level)

	socket := chatclient.NewSocket(chatclient.SocketConfig{URL: wsURL, UserID: s.User, Logger: logger})
	if err := socket.Connect(ctx); err != nil {
		return err
	}
	defer socket.Close()

	updates := make(chan chatclient.Update, 64)
	session := chatclient.NewSession(
		chatclient.Identity{ID: s.User, Name: s.Name},
		socket,
		chatclient.NewHTTPClient(s.Server, nil, historyPageSize),
		chatclient.Options{
			Logger: logger,
			OnUpdate: func(u chatclient.Update) {
				select {
				case updates <- u:
				default:
				}
			},
		},
	)
	defer session.Close()

	out := newPrinter(cmd.OutOrStdout(), s.User)
	r := &repl{session: session, out: out}
	r.activate(ctx, target)

	lines := make(chan string)
	go scanLines(cmd.InOrStdin(), lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			r.update(u)
		case line, ok := <-lines:
			if !ok || r.handle(ctx, line) {
				return nil
			}
		}
	}
}

func scanLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		lines <- sc.Text()
	}
}

// conversation is the subset of chatclient.Session the repl drives.
type conversation interface {
	Activate(ctx context.Context, target chatclient.Target) error
	Keystroke()
	Send(body string) (chatclient.Message, error)
	Retry(id string) (chatclient.Message, error)
	Report(ctx context.Context, messageID, reason, details string) error
	Messages() []chatclient.Message
	TypingLabel() string
}

type repl struct {
	session conversation
	out     *printer
}

func (r *repl) activate(ctx context.Context, target chatclient.Target) {
	r.out.reset()
	r.out.notice("opening " + target.String())
	if err := r.session.Activate(ctx, target); err != nil {
		r.out.notice("history unavailable: " + err.Error())
	}
	r.out.messages(r.session.Messages())
}

func (r *repl) update(u chatclient.Update) {
	switch u.Kind {
	case chatclient.UpdateMessages:
		r.out.messages(r.session.Messages())
	case chatclient.UpdateTyping:
		r.out.typing(r.session.TypingLabel())
	case chatclient.UpdateNotice:
		r.out.notice(u.Notice)
	}
}

// handle runs one input line and reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	name, args := parseLine(line)
	switch name {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		r.out.notice("commands: /retry <id>, /report <id> <reason> [details], /switch dm|team <id>, /quit")
	case "/retry":
		if len(args) != 1 {
			r.out.notice("usage: /retry <id>")
			return false
		}
		id, err := resolveID(r.session.Messages(), args[0])
		if err == nil {
			_, err = r.session.Retry(id)
		}
		if err != nil {
			r.out.notice("retry: " + err.Error())
			return false
		}
		r.out.messages(r.session.Messages())
	case "/report":
		if len(args) < 2 {
			r.out.notice("usage: /report <id> <spam|harassment|inappropriate|other> [details]")
			return false
		}
		id, err := resolveID(r.session.Messages(), args[0])
		if err == nil {
			err = r.session.Report(ctx, id, args[1], strings.Join(args[2:], " "))
		}
		if err != nil {
			r.out.notice("report: " + err.Error())
			return false
		}
		r.out.notice("reported " + shortID(id))
	case "/switch":
		target, err := parseTarget(args)
		if err != nil {
			r.out.notice(err.Error())
			return false
		}
		r.activate(ctx, target)
	case "send":
		// Input is line buffered: one typing signal per submitted line.
		r.session.Keystroke()
		if _, err := r.session.Send(args[0]); err != nil {
			r.out.notice("send: " + err.Error())
			return false
		}
		r.out.messages(r.session.Messages())
	default:
		r.out.notice("unknown command " + name + ", try /help")
	}
	return false
}

// parseLine splits a slash command into name and fields. Any other
// non-blank line is returned as "send" with the raw text.
func parseLine(line string) (string, []string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "send", []string{trimmed}
	}
	fields := strings.Fields(trimmed)
	return strings.ToLower(fields[0]), fields[1:]
}

func parseTarget(args []string) (chatclient.Target, error) {
	if len(args) != 2 {
		return chatclient.Target{}, errors.New("usage: /switch dm|team <id>")
	}
	switch args[0] {
	case "dm", "direct":
		return chatclient.Direct(args[1]), nil
	case "team":
		return chatclient.Team(args[1]), nil
	}
	return chatclient.Target{}, fmt.Errorf("unknown conversation kind %q", args[0])
}

// resolveID finds the message whose id equals or uniquely starts with ref.
func resolveID(msgs []chatclient.Message, ref string) (string, error) {
	var match string
	for _, m := range msgs {
		if m.ID == ref {
			return m.ID, nil
		}
		if strings.HasPrefix(m.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous", ref)
			}
			match = m.ID
		}
	}
	if match == "" {
		return "", chatclient.ErrUnknownMessage
	}
	return match, nil
}
