package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"ckbecs.dev/ecs/host"
	"ckbecs.dev/ecs/verifier"
)

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf commonFlags
	cf.register(fs)
	var (
		all         bool
		textualArgv bool
		maxCycles   uint64
	)
	fs.BoolVar(&all, "all", false, "Report every failing script group")
	fs.BoolVar(&textualArgv, "textual-argv", false, "Hand delegates a textual argv (overrides config)")
	fs.Uint64Var(&maxCycles, "max-cycles", 0, "Cycle budget (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: ecs verify [--config <file>] [--all] [--textual-argv] [--max-cycles <n>] <mock-tx.json>")
		return 2
	}
	cfg, logger, err := cf.load("ecs", errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	if textualArgv {
		cfg.Host.TextualArgv = true
	}
	if maxCycles != 0 {
		cfg.Host.MaxCycles = maxCycles
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open mock tx: %v\n", err)
		return 1
	}
	defer f.Close()
	mock, err := host.LoadMockTx(f)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 1
	}
	rtx, err := mock.Resolve()
	if err != nil {
		fmt.Fprintf(errOut, "resolve mock tx: %v\n", err)
		return 1
	}

	chain := host.NewChain(cfg.HostOptions(&logger))
	if all {
		if err := chain.VerifyAllResolved(rtx); err != nil {
			fmt.Fprintf(errOut, "rejected: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, "ok")
		return 0
	}
	cycles, err := chain.VerifyResolved(rtx)
	if err != nil {
		reportRejection(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "ok cycles=%d\n", cycles)
	return 0
}

func reportRejection(w io.Writer, err error) {
	var se *host.ScriptError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "rejected by %s script group %d\n", se.Kind, se.Index)
	}
	if code := verifier.CodeOf(err); code != verifier.CodeUnknown {
		fmt.Fprintf(w, "exit code: %d (%s)\n", int8(code), code)
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
