// Brainsync is the terminal client for triaging feeds and capturing notes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"
	"github.com/spf13/cobra"

	"github.com/linnemanlabs/brainsync/internal/apiclient"
	bc "github.com/linnemanlabs/brainsync/internal/cfg"
	"github.com/linnemanlabs/brainsync/internal/cli"
	"github.com/linnemanlabs/brainsync/internal/reader"
)

const appName = "brainsync"
const component = "cli"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is the per-invocation state built by the root command.
type env struct {
	clientCfg bc.ClientConfig
	logCfg    log.Config
	out       io.Writer
	yes       bool

	logger log.Logger
	client *apiclient.Client
	app    *cli.App
}

func newRootCmd(out io.Writer) *cobra.Command {
	v.AppName = appName
	v.Component = component
	vi := v.Get()

	e := &env{out: out}

	// go-core configs register on a Go flag set, shared with cobra below
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	e.clientCfg.RegisterFlags(fs)
	e.logCfg.RegisterFlags(fs)

	// env supplies defaults, the command line parsed by cobra wins
	cfg.FillFromEnv(fs, "BRAINSYNC_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	root := &cobra.Command{
		Use:           appName,
		Short:         "Triage RSS feeds and capture analyzed notes",
		Version:       fmt.Sprintf("%s (commit=%s, build_date=%s)", vi.Version, vi.Commit, vi.BuildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.shell(cmd.Context())
		},
	}
	root.PersistentFlags().AddGoFlagSet(fs)

	root.AddCommand(
		e.verifyCmd(),
		e.sourcesCmd(),
		e.feedsCmd(),
		e.refreshCmd(),
		e.markAllReadCmd(),
		e.categoriesCmd(),
		e.shellCmd(),
	)
	return root
}

func (e *env) init(ctx context.Context) error {
	if err := errors.Join(e.clientCfg.Validate(), e.logCfg.Validate()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(e.logCfg.ToOptions(appName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	e.logger = lg.With("component", component)

	e.client, err = apiclient.New(e.clientCfg.APIURL, e.clientCfg.AccessToken, e.clientCfg.Timeout)
	if err != nil {
		return err
	}

	headings, err := reader.HeadingsFor(e.clientCfg.NoteLanguage)
	if err != nil {
		return err
	}
	session := reader.NewSession(e.client, reader.SessionConfig{
		Headings:         headings,
		BatchConcurrency: e.clientCfg.MarkAllConcurrency,
	}, e.logger)
	e.app = cli.New(e.client, session, e.out, e.confirm)

	e.logger.Info(ctx, "client initialized", "api_url", e.clientCfg.APIURL, "version", v.Get().Version)
	return nil
}

// load fetches sources and feeds into the session.
func (e *env) load(ctx context.Context) error {
	return e.app.Session.Start(ctx)
}

// filters applies --source and --filter to the session.
func (e *env) filters(source, filter string) error {
	id, err := e.app.ResolveSource(source)
	if err != nil {
		return err
	}
	rf, err := reader.ParseReadFilter(filter)
	if err != nil {
		return err
	}
	e.app.Session.SetSource(id)
	e.app.Session.SetFilter(rf)
	return nil
}

func (e *env) confirm(n int) bool {
	if e.yes {
		return true
	}
	answer, err := readline.Line(fmt.Sprintf("Mark %d items as read? [y/N] ", n))
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (e *env) shell(ctx context.Context) error {
	if err := e.load(ctx); err != nil {
		return err
	}
	return e.app.RunShell(ctx, cli.ShellConfig{HistoryFile: e.clientCfg.HistoryFile})
}

func (e *env) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the access token against the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.client.Verify(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(e.out, "Authentication successful")
			return nil
		},
	}
}

func (e *env) sourcesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "sources",
		Short: "List and manage RSS sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.load(cmd.Context()); err != nil {
				return err
			}
			e.app.ListSources()
			return nil
		},
	}

	var podcast bool
	add := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Add a source; the URL may be embedded in pasted text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := reader.KindArticle
			if podcast {
				kind = reader.KindAudio
			}
			return e.app.AddSource(cmd.Context(), args[0], strings.Join(args[1:], " "), kind)
		},
	}
	add.Flags().BoolVar(&podcast, "podcast", false, "register the source as a podcast")

	rm := &cobra.Command{
		Use:   "rm ID|NAME",
		Short: "Remove a source and its feeds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.app.Session.Sync.LoadSources(cmd.Context()); err != nil {
				return err
			}
			return e.app.RemoveSource(cmd.Context(), strings.Join(args, " "))
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Sync sources from the server's source file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.app.SyncSources(cmd.Context())
		},
	}

	c.AddCommand(add, rm, sync)
	return c
}

func (e *env) feedsCmd() *cobra.Command {
	var source, filter string
	c := &cobra.Command{
		Use:   "feeds",
		Short: "List feed items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.load(cmd.Context()); err != nil {
				return err
			}
			if err := e.filters(source, filter); err != nil {
				return err
			}
			e.app.ListFeeds()
			return nil
		},
	}
	c.Flags().StringVar(&source, "source", "all", "source id or name")
	c.Flags().StringVar(&filter, "filter", string(reader.ReadUnread), "read state: unread, read or all")
	return c
}

func (e *env) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [ID|NAME]",
		Short: "Fetch new items for one source or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(cmd.Context()); err != nil {
				return err
			}
			return e.app.Refresh(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func (e *env) markAllReadCmd() *cobra.Command {
	var source, filter string
	c := &cobra.Command{
		Use:   "mark-all-read",
		Short: "Mark every unread item in the working set as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.load(cmd.Context()); err != nil {
				return err
			}
			if err := e.filters(source, filter); err != nil {
				return err
			}
			return e.app.MarkAllRead(cmd.Context())
		},
	}
	c.Flags().StringVar(&source, "source", "all", "source id or name")
	c.Flags().StringVar(&filter, "filter", string(reader.ReadUnread), "read state: unread, read or all")
	c.Flags().BoolVarP(&e.yes, "yes", "y", false, "do not ask for confirmation")
	return c
}

func (e *env) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List note categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.app.Categories(cmd.Context())
		},
	}
}

func (e *env) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive triage shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.shell(cmd.Context())
		},
	}
}
