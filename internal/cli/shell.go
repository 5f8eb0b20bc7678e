package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/linnemanlabs/brainsync/internal/reader"
)

// ErrQuit is returned by Exec when the user asked to leave the shell.
var ErrQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, a *App, args []string) error
}

var commands = map[string]command{
	"sources": {"sources", "list sources with unread/total counts", func(_ context.Context, a *App, _ []string) error {
		a.ListSources()
		return nil
	}},
	"source": {"source <id|name|all>", "restrict the list to one source", func(_ context.Context, a *App, args []string) error {
		id, err := a.ResolveSource(strings.Join(args, " "))
		if err != nil {
			return err
		}
		a.Session.SetSource(id)
		a.ListFeeds()
		return nil
	}},
	"filter": {"filter <unread|read|all>", "set the read-state filter", func(_ context.Context, a *App, args []string) error {
		rf, err := reader.ParseReadFilter(strings.Join(args, ""))
		if err != nil {
			return err
		}
		a.Session.SetFilter(rf)
		a.ListFeeds()
		return nil
	}},
	"ls": {"ls", "list the current working set", func(_ context.Context, a *App, _ []string) error {
		a.ListFeeds()
		return nil
	}},
	"open": {"open <id>", "select an item and mark it read", func(ctx context.Context, a *App, args []string) error {
		return a.Open(ctx, strings.Join(args, ""))
	}},
	"analyze": {"analyze", "analyze the selected item", func(ctx context.Context, a *App, _ []string) error {
		return a.Analyze(ctx)
	}},
	"show": {"show", "show the selected item and its analysis", func(_ context.Context, a *App, _ []string) error {
		a.Show()
		return nil
	}},
	"ack": {"ack", "clear a failed analysis", func(_ context.Context, a *App, _ []string) error {
		a.Acknowledge()
		return nil
	}},
	"save": {"save <category>", "save the analyzed item as a note", func(ctx context.Context, a *App, args []string) error {
		return a.Save(ctx, strings.Join(args, " "))
	}},
	"categories": {"categories", "list note categories", func(ctx context.Context, a *App, _ []string) error {
		return a.Categories(ctx)
	}},
	"refresh": {"refresh [id|name]", "fetch new items", func(ctx context.Context, a *App, args []string) error {
		return a.Refresh(ctx, strings.Join(args, " "))
	}},
	"markall": {"markall", "mark the working set read", func(ctx context.Context, a *App, _ []string) error {
		return a.MarkAllRead(ctx)
	}},
	"add": {"add <name> <url>", "add a blog source", func(ctx context.Context, a *App, args []string) error {
		if len(args) < 2 {
			return &reader.ValidationError{Message: "usage: add <name> <url>"}
		}
		return a.AddSource(ctx, args[0], strings.Join(args[1:], " "), reader.KindArticle)
	}},
}

// Exec runs one shell line. It returns ErrQuit for quit and exit.
func (a *App) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "quit", "exit", "q":
		return ErrQuit
	case "help", "?":
		a.mu.Lock()
		defer a.mu.Unlock()
		a.help()
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return cmd.run(ctx, a, args)
}

func (a *App) help() {
	for _, name := range commandNames() {
		c := commands[name]
		fmt.Fprintf(a.Out, "  %-26s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(a.Out, "  %-26s %s\n", "quit", "leave the shell")
}

func commandNames() []string {
	return []string{"sources", "source", "filter", "ls", "open", "analyze", "show", "ack", "save", "categories", "refresh", "markall", "add"}
}

// ShellConfig configures the interactive shell.
type ShellConfig struct {
	Prompt      string
	HistoryFile string
}

// RunShell reads commands until EOF, quit or ctx is done. Command errors are
// printed and do not end the loop.
func (a *App) RunShell(ctx context.Context, cfg ShellConfig) error {
	if cfg.Prompt == "" {
		cfg.Prompt = "brainsync> "
	}
	items := make([]readline.PrefixCompleterInterface, 0, len(commands)+1)
	for _, name := range commandNames() {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("quit"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init shell: %w", err)
	}
	defer rl.Close()

	a.mu.Lock()
	out := a.Out
	a.Out = rl.Stdout()
	a.ListFeeds()
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.Out = out
		a.mu.Unlock()
	}()

	for ctx.Err() == nil {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		if err := a.Exec(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			a.mu.Lock()
			fmt.Fprintf(a.Out, "error: %v\n", err)
			a.mu.Unlock()
		}
	}
	return ctx.Err()
}
