package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// runShell reads commands until quit, EOF or ctx is done. Command errors
// are printed and do not end the session.
func runShell(ctx context.Context, s *session) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ft> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    shellCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.stdout = rl.Stdout()
	s.stderr = rl.Stderr()
	fmt.Fprintf(s.stdout, "Connected to server %s. Type 'help' for commands.\n", s.client.ServerVersion())

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := s.shellLine(ctx, line)
		if err != nil {
			fmt.Fprintf(s.stderr, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// shellLine runs one shell input line. quit reports a request to leave.
func (s *session) shellLine(ctx context.Context, line string) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(parts[0]), parts[1:]

	switch name {
	case "help", "?":
		s.printHelp()
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	case "sha1", "zstd":
		return false, s.toggle(name, args)
	default:
		return false, s.execute(ctx, name, args)
	}
}

func (s *session) toggle(name string, args []string) error {
	target := &s.opts.sha1
	if name == "zstd" {
		target = &s.opts.zstd
	}
	if len(args) == 1 {
		switch args[0] {
		case "on":
			*target = true
		case "off":
			*target = false
		default:
			return fmt.Errorf("%w: %s on|off", errUsage, name)
		}
	}
	state := "off"
	if *target {
		state = "on"
	}
	fmt.Fprintf(s.stdout, "%s is %s\n", name, state)
	return nil
}

func (s *session) printHelp() {
	fmt.Fprintln(s.stdout, `
Commands:
  info <remote>              - Show a remote file
  delete <remote>            - Delete a remote file
  upload <local> [remote]    - Upload a file
  download <remote> [local]  - Download a file
  sha1 [on|off]              - Show or set checksum verification
  zstd [on|off]              - Show or set chunk compression
  help                       - Show this help
  quit                       - Leave the shell`)
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("info"),
		readline.PcItem("delete"),
		readline.PcItem("upload"),
		readline.PcItem("download"),
		readline.PcItem("sha1", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("zstd", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
