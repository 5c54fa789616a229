// ABOUTME: Admin CLI for granite backend maintenance and local session inspection.
// ABOUTME: One-shot commands for health checks, corpus uploads, and chat exports.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/granite-client/internal/backend"
	"github.com/2389/granite-client/internal/config"
	"github.com/2389/granite-client/internal/store"
	"github.com/2389/granite-client/internal/transcript"
)

const banner = `
                          _ _                        _           _
  __ _ _ __ __ _ _ __ (_) |_ ___        __ _  __| |_ __ ___ (_)_ __
 / _' | '__/ _' | '_ \| | __/ _ \_____ / _' |/ _' | '_ ' _ \| | '_ \
| (_| | | | (_| | | | | | ||  __/_____| (_| | (_| | | | | | | | | | |
 \__, |_|  \__,_|_| |_|_|\__\___|      \__,_|\__,_|_| |_| |_|_|_| |_|
 |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "health":
		err = cmdHealth()
	case "upload":
		err = cmdUpload(args)
	case "export":
		err = cmdExport(args)
	case "sessions":
		err = cmdSessions()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: granite-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  health                       Show backend status and corpus size")
	fmt.Println("  upload <path> [source]       Upload a document to the retrieval corpus")
	fmt.Println("  export <session> <format>    Export a chat (txt, docx, pdf, html)")
	fmt.Println("  sessions                     List locally stored sessions")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  GRANITE_BACKEND_URL          Backend base URL (default: http://localhost:8000)")
	fmt.Println("  GRANITE_CONFIG               Path to a client config file")
	fmt.Println()
}

// loadConfig resolves configuration from GRANITE_CONFIG or falls back to
// defaults, with GRANITE_BACKEND_URL overriding the backend endpoint.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := os.Getenv("GRANITE_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if url := os.Getenv("GRANITE_BACKEND_URL"); url != "" {
		cfg.Backend.BaseURL = url
	}
	return cfg, nil
}

func newClient() (*backend.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return backend.New(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout, logger), nil
}

func cmdHealth() error {
	client, err := newClient()
	if err != nil {
		return err
	}

	status, err := client.Health(context.Background())
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}

	if status.Status == "ok" {
		color.Green("Backend: %s", status.Status)
	} else {
		color.Yellow("Backend: %s", status.Status)
	}
	fmt.Printf("Corpus chunks: %d\n", status.CorpusChunks)
	return nil
}

func cmdUpload(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: granite-admin upload <path> [source]")
	}
	path := args[0]
	source := filepath.Base(path)
	if len(args) > 1 {
		source = args[1]
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := client.Upload(context.Background(), f, filepath.Base(path), source)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}

	color.Green("Uploaded %s", res.File)
	fmt.Printf("Chunks added: %d (corpus total: %d)\n", res.ChunksAdded, res.TotalChunks)
	return nil
}

func cmdExport(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: granite-admin export <session> <format>")
	}
	sessionID, format := args[0], args[1]

	if format == "html" {
		return exportHTML(sessionID)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	res, err := client.Export(context.Background(), sessionID, format)
	if err != nil {
		return fmt.Errorf("exporting session: %w", err)
	}

	if err := os.WriteFile(res.Filename, res.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", res.Filename, err)
	}
	color.Green("Exported to %s", res.Filename)
	return nil
}

// exportHTML renders from the local session record instead of asking the
// backend, so it accepts the same session id prefixes that sessions prints.
func exportHTML(sessionID string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	for _, sess := range st.Sessions() {
		if !strings.HasPrefix(sess.ID, sessionID) {
			continue
		}
		doc, err := transcript.HTML(sess)
		if err != nil {
			return fmt.Errorf("rendering transcript: %w", err)
		}
		name := fmt.Sprintf("granite_chat_%.8s.html", sess.ID)
		if err := os.WriteFile(name, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		color.Green("Exported to %s", name)
		return nil
	}
	return fmt.Errorf("no local session matching %q", sessionID)
}

func cmdSessions() error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	activeID := st.ActiveID()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tACTIVE")
	for _, sess := range st.Sessions() {
		active := ""
		if sess.ID == activeID {
			active = "*"
		}
		fmt.Fprintf(w, "%.8s\t%s\t%d\t%s\n", sess.ID, sess.Title, len(sess.Messages), active)
	}
	return w.Flush()
}

func openStore() (*store.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	records, err := store.NewSQLiteBackend(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session database: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.Open(context.Background(), records, logger)
	return st, func() { records.Close() }, nil
}
