package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ajkula/logwatcher/domain/port/inbound"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// preset shortcuts of the interactive loop
var presetCommands = map[string]string{
	"access": "nginx-access",
	"error":  "nginx-error",
}

var errCancelled = errors.New("cancelled")

// Console drives the watch service from line-oriented commands
type Console struct {
	watchService inbound.WatchService
	logger       outbound.Logger
	scanner      *bufio.Scanner
	out          io.Writer
}

func NewConsole(watchService inbound.WatchService, in io.Reader, out io.Writer, logger outbound.Logger) *Console {
	return &Console{
		watchService: watchService,
		logger:       logger,
		scanner:      bufio.NewScanner(in),
		out:          out,
	}
}

// Run reads commands until quit, end of input or ctx is cancelled
func (c *Console) Run(ctx context.Context) error {
	c.printf("Type 'help' for the list of commands\n")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.readLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		c.execute(ctx, cmd, strings.Join(args, " "))
	}
}

func (c *Console) execute(ctx context.Context, cmd, arg string) {
	switch cmd {
	case "watch":
		c.watch(ctx, arg)
	case "stop":
		c.stop(arg)
	case "stopall":
		if err := c.watchService.UnwatchAll(); err != nil {
			c.printf("Error: %v\n", err)
			return
		}
		c.printf("Stopped watching all files\n")
	case "list":
		c.list()
	case "help":
		c.help()
	default:
		if preset, ok := presetCommands[cmd]; ok {
			c.watchPreset(ctx, preset)
			return
		}
		c.printf("Unknown command %q\n", cmd)
	}
}

func (c *Console) watch(ctx context.Context, path string) {
	if path == "" {
		line, err := c.readLine("File path to watch: ")
		if err != nil || strings.TrimSpace(line) == "" {
			c.printf("Cancelled\n")
			return
		}
		path = strings.TrimSpace(line)
	}

	events, err := c.watchService.Watch(ctx, path, inbound.WatchOptions{})
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Watching %s\n", events.Path())
}

func (c *Console) watchPreset(ctx context.Context, name string) {
	events, err := c.watchService.WatchPreset(ctx, name, inbound.WatchOptions{})
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Watching %s\n", events.Path())
}

func (c *Console) stop(path string) {
	if path == "" {
		selected, err := c.pick(c.watchService.ListWatched())
		if err != nil {
			c.printf("%s\n", capitalize(err.Error()))
			return
		}
		path = selected
	}

	if err := c.watchService.Unwatch(path); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Stopped watching %s\n", path)
}

// pick shows a numbered list and returns the chosen entry
func (c *Console) pick(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", errors.New("no files are being watched")
	}

	for i, p := range paths {
		c.printf("  %d) %s\n", i+1, p)
	}

	line, err := c.readLine("Select a file to stop watching: ")
	if err != nil {
		return "", errCancelled
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errCancelled
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(paths) {
		return "", fmt.Errorf("invalid selection %q", line)
	}
	return paths[n-1], nil
}

func (c *Console) list() {
	paths := c.watchService.ListWatched()
	if len(paths) == 0 {
		c.printf("No files are being watched\n")
		return
	}
	for _, p := range paths {
		c.printf("  %s\n", p)
	}
}

func (c *Console) help() {
	c.printf(`Commands:
  watch [path]   start watching a file (prompts when path is omitted)
  stop [path]    stop watching a file (lists watched files when omitted)
  stopall        stop watching every file
  list           list watched files
  access         watch the nginx access log
  error          watch the nginx error log
  help           show this help
  quit           exit
`)
}

func (c *Console) readLine(prompt string) (string, error) {
	c.printf("%s", prompt)
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			c.logger.Error("Console read failed", "error", err)
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
