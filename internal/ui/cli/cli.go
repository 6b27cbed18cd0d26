package cli

import (
	"flag"
	"fmt"
	"io"
)

const versionString = "0.4.0"

const (
	commandBuild   = "build"
	commandDev     = "dev"
	commandHistory = "history"
)

type cliOptions struct {
	command    string
	configPath string
	verbose    bool
	version    bool

	outDir  string
	ui      bool
	explain bool
	since   string
	limit   int
	top     int
	file    string

	args []string
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: vinec [--config path] [--verbose] <build|dev|history> [flags] [paths...]")
	fmt.Fprintln(w, "  build    compile files once and write them to the out dir")
	fmt.Fprintln(w, "  dev      watch paths and stream hot-update events")
	fmt.Fprintln(w, "  history  summarize stored update events")
}

// parseOptions reads the global flags, the command word and the command's
// own flags.
func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	global := flag.NewFlagSet("vinec", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&opts.configPath, "config", "", "Path to config file (default: vinec.toml in the project root)")
	global.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	global.BoolVar(&opts.version, "version", false, "Print version and exit")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if opts.version {
		return opts, nil
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr)
		return cliOptions{}, fmt.Errorf("missing command")
	}
	opts.command = rest[0]

	fs := flag.NewFlagSet("vinec "+opts.command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.verbose, "verbose", opts.verbose, "Enable verbose logging")
	switch opts.command {
	case commandBuild:
		fs.StringVar(&opts.outDir, "out", "", "Output directory (overrides build.out_dir)")
	case commandDev:
		fs.BoolVar(&opts.ui, "ui", false, "Show the terminal dev monitor")
		fs.BoolVar(&opts.explain, "explain", false, "Log a script diff for every reload decision")
	case commandHistory:
		fs.StringVar(&opts.since, "since", "24h", "Events at/after this time: a duration (1h), RFC3339 or YYYY-MM-DD")
		fs.IntVar(&opts.limit, "limit", 0, "Keep only the newest N events")
		fs.IntVar(&opts.top, "top", 5, "Number of most reloaded files to list")
		fs.StringVar(&opts.file, "file", "", "Only events for this file")
	default:
		usage(stderr)
		return cliOptions{}, fmt.Errorf("unknown command %q", opts.command)
	}
	if err := fs.Parse(rest[1:]); err != nil {
		return cliOptions{}, err
	}
	opts.args = fs.Args()

	if opts.command == commandHistory && len(opts.args) > 0 {
		return cliOptions{}, fmt.Errorf("history does not accept positional arguments")
	}
	return opts, nil
}
