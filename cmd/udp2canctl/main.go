package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/can-bridge/udp2can/pkg/api"
	"github.com/can-bridge/udp2can/pkg/api/daemon/client"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

type options struct {
	socketFile string
	timeout    time.Duration
	debug      bool
}

const usage = `Usage: udp2canctl [flags] COMMAND

Commands:
  ping               Check that udp2cand answers
  info               Show where and when the interface map was loaded
  mappings           List all mappings
  mapping INDEX      Show one mapping
  interface ID       List the mappings bridged to one CAN interface
  groups             Show the resource groups of both directions
`

// parseFlags stops at the first command word so that command arguments
// such as a negative INDEX are not taken for flags.
func parseFlags(args []string) (*options, []string, error) {
	opts := &options{}
	defaultSocket := ""
	if xdgRuntimeDir := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntimeDir != "" {
		defaultSocket = filepath.Join(xdgRuntimeDir, "udp2cand.sock")
	}

	fs := flag.NewFlagSet("udp2canctl", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringVar(&opts.socketFile, "socket", defaultSocket, "Socket file of udp2cand")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Request timeout")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

func main() {
	opts, args, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if opts.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if opts.socketFile == "" {
		logrus.Fatal("$XDG_RUNTIME_DIR needs to be set or --socket specified")
	}

	c, err := client.New(opts.socketFile)
	if err != nil {
		logrus.Fatalf("failed client.New %s", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	if err := run(ctx, os.Stdout, c.MappingManager(), args); err != nil {
		logrus.Fatal(err)
	}
}

func run(ctx context.Context, w io.Writer, mm *client.MappingManager, args []string) error {
	logrus.Debugf("command %v", args)
	switch args[0] {
	case "ping":
		if err := mm.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "pong")
		return nil
	case "info":
		info, err := mm.Info(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, info)
	case "mappings":
		ms, err := mm.ListMappings(ctx)
		if err != nil {
			return err
		}
		printMappings(w, ms)
		return nil
	case "mapping":
		if len(args) != 2 {
			return fmt.Errorf("mapping needs exactly one INDEX")
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[1])
		}
		m, err := mm.GetMapping(ctx, index)
		if err != nil {
			return err
		}
		return printJSON(w, m)
	case "interface":
		if len(args) != 2 {
			return fmt.Errorf("interface needs exactly one ID")
		}
		ms, err := mm.ListInterfaceMappings(ctx, args[1])
		if err != nil {
			return err
		}
		printMappings(w, ms)
		return nil
	case "groups":
		g, err := mm.Groups(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, g)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printMappings(w io.Writer, ms []api.Mapping) {
	for _, m := range ms {
		fmt.Fprintf(w, "%-4d udp-->can    %-32s mutex=%-5v can-->udp    %-32s mutex=%v\n",
			m.Index, m.ToCAN.Label, m.ToCAN.NeedsMutex, m.FromCAN.Label, m.FromCAN.NeedsMutex)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
