// ABOUTME: TUI client for marketplace chat over the REST and streaming API.
// ABOUTME: Readline-style input with live message delivery and day dividers.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/tradepost-app/tradepost-chat/internal/chat"
	"github.com/tradepost-app/tradepost-chat/internal/connection"
	"github.com/tradepost-app/tradepost-chat/internal/directory"
	"github.com/tradepost-app/tradepost-chat/internal/session"
)

const banner = `
    ╭────────────────────────────────╮
    │        tradepost chat          │
    ╰────────────────────────────────╯
`

func main() {
	server := flag.String("server", "", "Backend base URL (overrides config)")
	token := flag.String("token", "", "Access token (overrides config)")
	user := flag.String("user", "", "User id (overrides the token's subject)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(*server, *token, *user, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(server, token, user, logLevel string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()
	fileCfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	cfg, err := fileCfg.engineConfig(server, token)
	if err != nil {
		return fmt.Errorf("building configuration: %w", err)
	}
	if logLevel == "" {
		logLevel = fileCfg.Logging.Level
	}
	logger := setupLogger(logLevel)

	userID := user
	if userID == "" {
		userID = fileCfg.Chat.UserID
	}

	s, err := session.New(session.Params{Config: cfg, UserID: userID, Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Server: %s\n", cfg.API.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("User:   %s\n", s.UserID())
	fmt.Println()
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	u := newUI(s)
	s.OnUpdate(u.renderNew)
	s.OnConnectionState(u.renderConnState)

	return u.loop(ctx)
}

// ui owns terminal rendering and the command loop.
type ui struct {
	session *session.Session

	// printed tracks how many view entries are already on screen for the
	// open conversation, so live updates only append.
	printed int

	peer    *color.Color
	mine    *color.Color
	divider *color.Color
	notice  *color.Color
}

func newUI(s *session.Session) *ui {
	return &ui{
		session: s,
		peer:    color.New(color.FgYellow),
		mine:    color.New(color.FgGreen),
		divider: color.New(color.FgCyan, color.Bold),
		notice:  color.New(color.FgMagenta),
	}
}

func (u *ui) loop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if id := u.session.ConversationID(); id != "" {
			fmt.Printf("[%s]> ", shortID(id))
		} else {
			fmt.Print("> ")
		}

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else if err := scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}
		if err := u.handle(ctx, input); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	}
}

func (u *ui) handle(ctx context.Context, input string) error {
	switch {
	case input == "/help":
		printHelp()
		return nil
	case input == "/list":
		return u.listConversations(ctx, "")
	case strings.HasPrefix(input, "/find"):
		query := strings.TrimSpace(strings.TrimPrefix(input, "/find"))
		return u.listConversations(ctx, query)
	case strings.HasPrefix(input, "/open"):
		arg := strings.TrimSpace(strings.TrimPrefix(input, "/open"))
		return u.openConversation(ctx, arg)
	case strings.HasPrefix(input, "/start"):
		args := strings.Fields(strings.TrimPrefix(input, "/start"))
		if len(args) != 2 {
			return fmt.Errorf("usage: /start <listing-id> <seller-id>")
		}
		return u.startConversation(ctx, args[0], args[1])
	case strings.HasPrefix(input, "/date"):
		arg := strings.TrimSpace(strings.TrimPrefix(input, "/date"))
		return u.sendDate(ctx, arg)
	case input == "/close":
		u.session.Close()
		u.printed = 0
		fmt.Println("Conversation closed")
		return nil
	case strings.HasPrefix(input, "/"):
		return fmt.Errorf("unknown command %q, try /help", strings.Fields(input)[0])
	default:
		_, err := u.session.SendText(ctx, input)
		return err
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /list                      List conversations")
	fmt.Println("  /find <query>              Filter conversations by name or preview")
	fmt.Println("  /open <number|id>          Open a conversation")
	fmt.Println("  /start <listing> <seller>  Start a conversation about a listing")
	fmt.Println("  /date <YYYY-MM-DD HH:MM>   Propose a meetup date")
	fmt.Println("  /close                     Close the open conversation")
	fmt.Println("  /help                      Show this help")
	fmt.Println("  /quit                      Exit")
}

func (u *ui) listConversations(ctx context.Context, query string) error {
	if _, err := u.session.Refresh(ctx); err != nil {
		return err
	}

	conversations := u.session.Directory().Filter(query, u.session.UserID())
	if len(conversations) == 0 {
		fmt.Println("No conversations")
		return nil
	}

	for i, c := range conversations {
		who := directory.Counterpart(c, u.session.UserID())
		preview := ""
		when := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Text
			when = c.LastMessage.Timestamp.Local().Format("Jan 2 15:04")
		}
		fmt.Printf("  %d. ", i+1)
		u.peer.Printf("%s", who.Name)
		fmt.Printf("  (%s)", c.ListingName)
		if preview != "" {
			fmt.Printf("  %s  %s", preview, when)
		}
		fmt.Println()
	}
	return nil
}

func (u *ui) openConversation(ctx context.Context, arg string) error {
	if arg == "" {
		return fmt.Errorf("usage: /open <number|id>")
	}

	conversationID := arg
	if n, err := strconv.Atoi(arg); err == nil {
		conversations := u.session.Directory().Conversations()
		if n < 1 || n > len(conversations) {
			return fmt.Errorf("no conversation %d, run /list first", n)
		}
		conversationID = conversations[n-1].ID
	}

	u.printed = 0
	if err := u.session.Open(ctx, conversationID); err != nil {
		return err
	}

	if c, ok := u.session.Directory().Get(conversationID); ok {
		who := directory.Counterpart(c, u.session.UserID())
		fmt.Printf("Opened chat with ")
		u.peer.Printf("%s", who.Name)
		fmt.Printf(" about %s\n", c.ListingName)
	}
	u.renderNew()
	return nil
}

func (u *ui) startConversation(ctx context.Context, listingID, sellerID string) error {
	id, err := u.session.StartConversation(ctx, listingID, sellerID)
	if err != nil {
		return err
	}
	if _, err := u.session.Refresh(ctx); err != nil {
		return err
	}
	return u.openConversation(ctx, id)
}

func (u *ui) sendDate(ctx context.Context, arg string) error {
	at, err := time.ParseInLocation("2006-01-02 15:04", arg, time.Local)
	if err != nil {
		return fmt.Errorf("usage: /date <YYYY-MM-DD HH:MM>")
	}
	_, err = u.session.SendScheduledDate(ctx, at)
	return err
}

// renderNew prints view entries that are not on screen yet. It runs both
// from the command loop and from live-delivery callbacks.
func (u *ui) renderNew() {
	view := u.session.View()
	if u.printed > len(view) {
		u.printed = 0
	}
	for _, e := range view[u.printed:] {
		if e.IsDivider() {
			u.divider.Printf("    ── %s ──\n", e.Divider.Label)
		} else {
			u.printMessage(e.Message)
		}
	}
	u.printed = len(view)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func (u *ui) renderConnState(st connection.State, err error) {
	switch st {
	case connection.StateReconnecting:
		u.notice.Printf("[connection] reconnecting: %v\n", err)
	case connection.StateFailed:
		u.notice.Printf("[connection] gave up: %v\n", err)
	case connection.StateOpen:
		// Quiet on the happy path.
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	// Logs go to stderr so they never interleave with the chat output.
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func (u *ui) printMessage(msg *chat.Message) {
	who := u.peer
	name := "them"
	if msg.SenderID == u.session.UserID() {
		who = u.mine
		name = "you"
	}
	fmt.Printf("%s ", msg.Timestamp.Local().Format("15:04"))
	who.Printf("%s", name)
	fmt.Printf(": %s\n", chat.DisplayText(msg.Text))
}
