// ABOUTME: Interactive terminal client for chatting against a granite backend.
// ABOUTME: Streams replies incrementally and manages sessions with slash commands.

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/granite-client/internal/backend"
	"github.com/2389/granite-client/internal/config"
	"github.com/2389/granite-client/internal/controller"
	"github.com/2389/granite-client/internal/store"
	"github.com/2389/granite-client/internal/transcript"
	"github.com/2389/granite-client/internal/voice"
)

var version = "dev"

const banner = `
                          _ _
  __ _ _ __ __ _ _ __ (_) |_ ___
 / _' | '__/ _' | '_ \| | __/ _ \
| (_| | | | (_| | | | | | ||  __/
 \__, |_|  \__,_|_| |_|_|\__\___|
 |___/
`

func main() {
	configPath := flag.String("config", "", "Path to config file (default: auto-detect)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath string) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	records, err := store.NewSQLiteBackend(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening session database: %w", err)
	}
	defer records.Close()

	st := store.Open(ctx, records, logger)
	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout, logger)
	speaker := voice.Detect(logger)

	ctrl := controller.New(st, client, speaker, controller.Options{
		Mode:        cfg.Chat.Mode,
		UseRAG:      cfg.Chat.UseRAG,
		TopK:        cfg.Chat.TopK,
		VoiceOutput: cfg.Voice.Enabled && speaker != nil,
	}, logger)

	painter := &streamPainter{store: st}
	ctrl.SetProgress(painter.paint)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Backend.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Sessions: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Mode:     %s", cfg.Chat.Mode)
	if cfg.Chat.UseRAG {
		cyan.Print(" [rag]")
	}
	if speaker == nil {
		gray.Print(" (voice unavailable)")
	}
	fmt.Println()
	fmt.Println()
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	return loop(ctx, ctrl, st, client, painter)
}

func loop(ctx context.Context, ctrl *controller.Controller, st *store.Store, client *backend.Client, painter *streamPainter) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		printPrompt(st)

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
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleCommand(ctx, ctrl, st, client, input); quit {
				return nil
			}
			fmt.Println()
			continue
		}

		sendAndRender(ctx, ctrl, painter, input)
		fmt.Println()
	}
}

func printPrompt(st *store.Store) {
	title := st.Active().Title
	if runes := []rune(title); len(runes) > 24 {
		title = string(runes[:24])
	}
	color.New(color.FgHiBlack).Printf("[%s] ", title)
	fmt.Print("> ")
}

func sendAndRender(ctx context.Context, ctrl *controller.Controller, painter *streamPainter, input string) {
	painter.beginExchange()
	err := ctrl.Send(ctx, input)
	painter.endExchange()

	switch {
	case err == nil:
	case errors.Is(err, controller.ErrExchangeInFlight):
		color.Yellow("Still responding, please wait.")
	case errors.Is(err, context.Canceled):
		color.Yellow("[cancelled]")
	default:
		color.Red("[error] %v", err)
	}
}

func handleCommand(ctx context.Context, ctrl *controller.Controller, st *store.Store, client *backend.Client, input string) (quit bool) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true

	case "/help":
		printHelp()

	case "/new":
		id := ctrl.NewSession()
		fmt.Printf("Started new chat (%s)\n", shortID(id))

	case "/sessions":
		listSessions(st)

	case "/switch":
		switchSession(ctrl, st, args)

	case "/clear":
		if err := ctrl.ClearSession(ctx); err != nil {
			color.Red("[error] %v", err)
		} else {
			fmt.Println("Session cleared")
		}

	case "/rag":
		on := toggleArg(args, ctrl.Options().UseRAG)
		ctrl.SetUseRAG(on)
		fmt.Printf("Retrieval augmentation %s\n", onOff(on))

	case "/voice":
		on := toggleArg(args, ctrl.Options().VoiceOutput)
		ctrl.SetVoiceOutput(on)
		fmt.Printf("Voice output %s\n", onOff(on))

	case "/mode":
		if args == "" {
			fmt.Printf("Mode: %s (general, coding, teacher, summarizer)\n", ctrl.Options().Mode)
		} else if err := ctrl.SetMode(args); err != nil {
			color.Red("[error] %v", err)
		} else {
			fmt.Printf("Mode set to %s\n", args)
		}

	case "/history":
		printHistory(st)

	case "/upload":
		uploadDocument(ctx, client, args)

	case "/export":
		exportSession(ctx, client, st, args)

	case "/health":
		showHealth(ctx, client)

	default:
		fmt.Printf("Unknown command %s. /help for commands.\n", cmd)
	}
	return false
}

func printHelp() {
	yellow := color.New(color.FgYellow)
	yellow.Println("Commands:")
	fmt.Println("  /new                 Start a new chat session")
	fmt.Println("  /sessions            List sessions")
	fmt.Println("  /switch <n|id>       Switch to a session by number or id")
	fmt.Println("  /clear               Clear the current session")
	fmt.Println("  /rag [on|off]        Toggle retrieval augmentation")
	fmt.Println("  /mode [name]         Show or set the generation mode")
	fmt.Println("  /voice [on|off]      Toggle spoken replies")
	fmt.Println("  /history             Show the current session transcript")
	fmt.Println("  /upload <path> [as]  Upload a document to the corpus")
	fmt.Println("  /export <format>     Export the chat (txt, docx, pdf, html)")
	fmt.Println("  /health              Show backend status")
	fmt.Println("  /quit                Exit")
}

func listSessions(st *store.Store) {
	activeID := st.ActiveID()
	for i, sess := range st.Sessions() {
		marker := "  "
		if sess.ID == activeID {
			marker = color.GreenString("* ")
		}
		fmt.Printf("%s%d. %s ", marker, i+1, sess.Title)
		color.New(color.FgHiBlack).Printf("(%s, %d messages)\n", shortID(sess.ID), len(sess.Messages))
	}
}

func switchSession(ctrl *controller.Controller, st *store.Store, arg string) {
	if arg == "" {
		fmt.Println("Usage: /switch <n|id>")
		return
	}

	sessions := st.Sessions()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(sessions) {
			color.Red("No session %d", n)
			return
		}
		ctrl.SwitchSession(sessions[n-1].ID)
		fmt.Printf("Switched to %s\n", sessions[n-1].Title)
		return
	}

	for _, sess := range sessions {
		if strings.HasPrefix(sess.ID, arg) {
			ctrl.SwitchSession(sess.ID)
			fmt.Printf("Switched to %s\n", sess.Title)
			return
		}
	}
	color.Red("No session matching %q", arg)
}

func printHistory(st *store.Store) {
	sess := st.Active()
	if len(sess.Messages) == 0 {
		fmt.Println("No messages yet")
		return
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Print(transcript.Text(sess))
	fmt.Println(strings.Repeat("-", 60))
}

func uploadDocument(ctx context.Context, client *backend.Client, args string) {
	path, source, _ := strings.Cut(args, " ")
	if path == "" {
		fmt.Println("Usage: /upload <path> [source-name]")
		return
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		color.Red("[error] %v", err)
		return
	}
	defer f.Close()

	res, err := client.Upload(ctx, f, filepath.Base(path), source)
	if err != nil {
		color.Red("[error] %v", err)
		return
	}
	fmt.Printf("Uploaded %s: %d chunks added (%d total)\n", res.File, res.ChunksAdded, res.TotalChunks)
}

func exportSession(ctx context.Context, client *backend.Client, st *store.Store, format string) {
	sess := st.Active()

	switch format {
	case "html":
		doc, err := transcript.HTML(sess)
		if err != nil {
			color.Red("[error] %v", err)
			return
		}
		name := fmt.Sprintf("granite_chat_%s.html", shortID(sess.ID))
		if err := os.WriteFile(name, []byte(doc), 0o644); err != nil {
			color.Red("[error] %v", err)
			return
		}
		fmt.Printf("Exported to %s\n", name)

	case "txt", "docx", "pdf":
		res, err := client.Export(ctx, sess.ID, format)
		if err != nil {
			color.Red("[error] %v", err)
			return
		}
		if err := os.WriteFile(res.Filename, res.Data, 0o644); err != nil {
			color.Red("[error] %v", err)
			return
		}
		fmt.Printf("Exported to %s\n", res.Filename)

	default:
		fmt.Println("Usage: /export <txt|docx|pdf|html>")
	}
}

func showHealth(ctx context.Context, client *backend.Client) {
	status, err := client.Health(ctx)
	if err != nil {
		color.Red("[error] %v", err)
		return
	}
	fmt.Printf("Backend: %s, corpus chunks: %d\n", status.Status, status.CorpusChunks)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func toggleArg(arg string, current bool) bool {
	switch arg {
	case "on":
		return true
	case "off":
		return false
	default:
		return !current
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// streamPainter prints the growing reply as deltas against the last paint.
// Updates for a session other than the active one are tracked but not
// painted, so a mid-stream switch stops output without losing position.
type streamPainter struct {
	store *store.Store

	mu      sync.Mutex
	printed int
	painted bool
}

func (p *streamPainter) beginExchange() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = 0
	p.painted = false
}

func (p *streamPainter) paint(u controller.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u.SessionID != p.store.ActiveID() {
		p.printed = len(u.Text)
		return
	}
	if len(u.Text) <= p.printed {
		return
	}
	p.painted = true
	fmt.Print(u.Text[p.printed:])
	p.printed = len(u.Text)
}

func (p *streamPainter) endExchange() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.painted {
		fmt.Println()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// findConfig checks GRANITE_CONFIG, then ./granite.yaml, then the user
// config directory. An empty result means run on defaults.
func findConfig() string {
	if p := os.Getenv("GRANITE_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("granite.yaml"); err == nil {
		return "granite.yaml"
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	p := filepath.Join(configDir, "granite", "client.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr so they interleave cleanly with the chat on stdout
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
