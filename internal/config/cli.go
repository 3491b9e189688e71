package config

import (
	"flag"
	"fmt"
)

// CLI is the parsed command line: a positional config file path plus
// the two documented flags. It deliberately does not duplicate the
// Config struct's fields; only the file location and a dev-mode
// override are ever given on the command line.
type CLI struct {
	ConfigPath string
	DevMode    bool
	ShowHelp   bool
}

// ParseCLI parses args (excluding the program name) in the style of the
// original flag-based CLI: a lone positional argument for the config
// path and -d/--dev, -h/--help switches.
func ParseCLI(args []string) (*CLI, error) {
	fs := flag.NewFlagSet("edgeward", flag.ContinueOnError)
	dev := fs.Bool("d", false, "force development mode (disables rate limiting)")
	fs.BoolVar(dev, "dev", false, "force development mode (disables rate limiting)")
	help := fs.Bool("h", false, "show usage")
	fs.BoolVar(help, "help", false, "show usage")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cli := &CLI{DevMode: *dev, ShowHelp: *help}

	rest := fs.Args()
	switch len(rest) {
	case 0:
		// No positional path: caller falls back to a well-known default.
	case 1:
		cli.ConfigPath = rest[0]
	default:
		return nil, fmt.Errorf("unexpected arguments: %v", rest[1:])
	}

	return cli, nil
}

// Usage returns the help text printed for -h/--help.
func Usage() string {
	return `edgeward [-d|--dev] [-h|--help] [config-path]

  config-path   path to a YAML configuration file (default ./edgeward.yaml)
  -d, --dev     force development mode (disables rate limiting)
  -h, --help    show this help text
`
}
