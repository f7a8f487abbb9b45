package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmixsim/cli"
)

func newDebugCommand(opts *options) *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "debug <program>",
		Short: "Debug a program interactively",
		Long: `debug loads a program and reads debugger commands. Commands come from
the terminal, or from --script or standard input when those are not
terminals. Type "h" for the list of commands.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := stderrLogger(opts)
			m, err := setup(cmd, opts, args[0], logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sessionOpts := []cli.Option{
				cli.WithOutput(out),
				cli.WithSymbols(m.symbols),
				cli.WithLogger(logger.WithName("cli")),
			}
			if colorful(out) {
				sessionOpts = append(sessionOpts,
					cli.WithErrorStyle(ansi.ColorFunc("red+b")),
					cli.WithHitStyle(ansi.ColorFunc("yellow")),
				)
			}
			s := cli.NewSession(m.emu, m.dbg, sessionOpts...)
			defer func() {
				if err := s.Close(); err != nil {
					logger.Error(err, "closing trace output")
				}
			}()

			switch {
			case script != "":
				f, err := os.Open(script)
				if err != nil {
					return errors.Wrap(err, "open script")
				}
				defer f.Close()
				return runScript(s, f)
			case isatty.IsTerminal(os.Stdin.Fd()):
				return runInteractive(s)
			default:
				return runScript(s, cmd.InOrStdin())
			}
		},
	}

	cmd.Flags().StringVar(&script, "script", "", "read debugger commands from this file")
	return cmd
}

func colorful(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// runScript executes one command per line until the input ends or a quit
// command runs. Failing commands are reported and do not stop the script.
func runScript(s *cli.Session, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for !s.Done() && scanner.Scan() {
		runLine(s, scanner.Text())
	}
	return errors.Wrap(scanner.Err(), "read commands")
}

func runLine(s *cli.Session, line string) {
	name, _ := cli.ParseLine(line)
	if err := s.ExecLine(line); err != nil {
		s.Report(name, err)
	}
}

// historyPath returns the REPL history file, or "" when the cache folder
// cannot be created.
func historyPath() string {
	dirs := configdir.New("sarchlab", "mmixsim")
	cache := dirs.QueryCacheFolder()
	if err := cache.MkdirAll(); err != nil {
		return ""
	}
	return filepath.Join(cache.Path, "history")
}

func runInteractive(s *cli.Session) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mmix> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "q",
		HistoryFile:     historyPath(),
	})
	if err != nil {
		return errors.Wrap(err, "start line editor")
	}
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), `mmixsim debugger. Type "h" for help.`)
	for !s.Done() {
		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			continue
		case err == io.EOF:
			return nil
		case err != nil:
			return errors.Wrap(err, "read command")
		}
		runLine(s, line)
	}
	return nil
}
