package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "pith> "
	replContPrompt = " ...> "
)

func runQueryREPL(cmd *cobra.Command, opts *QueryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	a := cmdCtx.App

	// Setup history file next to the state store
	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "query_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newTableCompleter(ctx, a.Schema),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	db := cmdCtx.Cfg.Database.Path
	if db == "" {
		db = "in-memory"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Pith Query REPL (database: %s)\n", db)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	s := &replSession{
		cmd:    cmd,
		run:    a.Queries.Run,
		tables: a.Schema,
		format: opts.Format,
		limit:  displayLimit(opts.Limit, cmdCtx.Cfg.Database.DefaultLimit),
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		quit, pending := s.handle(ctx, line)
		if quit {
			break
		}
		if pending {
			rl.SetPrompt(replContPrompt)
		} else {
			rl.SetPrompt(replPrompt)
		}
	}

	return nil
}

// replSession holds the REPL state between lines.
type replSession struct {
	cmd    *cobra.Command
	run    func(ctx context.Context, q any) (*query.Result, error)
	tables tableLister
	format string
	limit  int
	buf    strings.Builder
}

// handle processes one input line. quit ends the loop; pending means a
// statement is still being accumulated.
func (s *replSession) handle(ctx context.Context, line string) (quit, pending bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, s.buf.Len() > 0
	}

	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.dotCommand(ctx, line), false
	}

	// Accumulate multi-line SQL until semicolon
	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString(" ")
		return false, true
	}

	sqlQuery := strings.TrimSuffix(s.buf.String(), ";")
	s.buf.Reset()

	res, err := s.run(ctx, query.Query{SQL: sqlQuery})
	if err == nil {
		err = renderResults(s.cmd.OutOrStdout(), res, s.format, s.limit)
	}
	if err != nil {
		_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(s.cmd.OutOrStdout())
	return false, false
}

func (s *replSession) dotCommand(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	out, errOut := s.cmd.OutOrStdout(), s.cmd.ErrOrStderr()

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".tables":
		if err := listTables(ctx, out, s.tables, s.format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <table>")
			return false
		}
		if err := showSchema(ctx, out, s.tables, parts[1], s.format); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".format":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "Format: %s\n", s.format)
			return false
		}
		s.format = parts[1]

	case ".clear":
		_, _ = fmt.Fprint(out, "\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List all tables
  .schema <name>  Show the columns of a table
  .format [name]  Show or set the output format (table, json, csv, md, yaml)
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter creates a readline completer for table names.
func newTableCompleter(ctx context.Context, s tableLister) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	// Ignore errors as this is for autocomplete, not critical
	if tables, err := s.ListTables(ctx); err == nil {
		for _, name := range tables {
			items = append(items, readline.PcItem(name))
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".schema"),
		readline.PcItem(".format"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
