package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"ckbecs.dev/ecs/config"
	"ckbecs.dev/ecs/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "builtins":
		return cmdBuiltins(args[1:], out, errOut)
	case "definition":
		return cmdDefinition(args[1:], out, errOut)
	case "store":
		return cmdStore(args[1:], out, errOut)
	case "type-id":
		return cmdTypeID(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ecs: component definition and verifier tooling")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ecs builtins")
	fmt.Fprintln(w, "  ecs definition build --name <name> --delegate-code-hash <hex|builtin:name> [--delegate-hash-type data1] [--delegate-args <hex>] [--info-hash <hex> | --info-file <path>] [--hex]")
	fmt.Fprintln(w, "  ecs definition inspect [--strict] <file>")
	fmt.Fprintln(w, "  ecs type-id --tx-hash <hex> [--index <n>] [--since <n>] [--output-index <n>]")
	fmt.Fprintln(w, "  ecs store put [--config <file> | --dir <path>] [--definition | --info] <file>")
	fmt.Fprintln(w, "  ecs store get [--config <file> | --dir <path>] <cid>")
	fmt.Fprintln(w, "  ecs store info [--config <file> | --dir <path>] <definition-cid>")
	fmt.Fprintln(w, "  ecs verify [--config <file>] [--all] [--textual-argv] [--max-cycles <n>] <mock-tx.json>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - definition build writes the encoded record to stdout (no trailing newline) unless --hex")
	fmt.Fprintln(w, "  - store get writes the object bytes to stdout")
	fmt.Fprintln(w, "  - verify exits 1 and prints the failing script group and exit code when the transaction is rejected")
}

// commonFlags are the flags shared by commands that read configuration.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "TOML configuration file")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level (overrides config)")
}

// load returns the configuration and a logger on errOut.
func (c *commonFlags) load(app string, errOut io.Writer) (config.Config, zerolog.Logger, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		cfg, err = config.Load(c.configPath)
		if err != nil {
			return config.Config{}, zerolog.Nop(), err
		}
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	logger, err := logging.New(app, cfg.LogLevel, errOut)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
