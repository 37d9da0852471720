package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"ckbecs.dev/ecs/config"
	"ckbecs.dev/ecs/host"
	"ckbecs.dev/ecs/registry"
	"ckbecs.dev/ecs/storage"
)

func cmdStore(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: ecs store <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, info")
		return 2
	}
	switch args[0] {
	case "put":
		return cmdStorePut(args[1:], out, errOut)
	case "get":
		return cmdStoreGet(args[1:], out, errOut)
	case "info":
		return cmdStoreInfo(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown store subcommand: %s\n", args[0])
		return 2
	}
}

// storeFlags select the store: a config file, or a single local directory.
type storeFlags struct {
	commonFlags
	dir string
}

func (s *storeFlags) register(fs *flag.FlagSet) {
	s.commonFlags.register(fs)
	fs.StringVar(&s.dir, "dir", "", "Local CAS directory (instead of --config)")
}

func (s *storeFlags) open(errOut io.Writer) (*registry.Registry, func() error, error) {
	if s.dir != "" && s.configPath != "" {
		return nil, nil, fmt.Errorf("--dir and --config are mutually exclusive")
	}
	cfg, logger, err := s.load("ecs", errOut)
	if err != nil {
		return nil, nil, err
	}
	if s.dir != "" {
		cfg.Store = config.Store{
			WritePolicy: storage.WriteFirst,
			Backends:    []config.Backend{{Name: "dir", Kind: config.KindLocalFS, Dir: s.dir}},
		}
	}
	cas, closeStore, err := cfg.OpenStore()
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return registry.New(cas, &logger), closeStore, nil
}

func cmdStorePut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.register(fs)
	var asDefinition, asInfo bool
	fs.BoolVar(&asDefinition, "definition", false, "Require the file to be a strictly valid definition record")
	fs.BoolVar(&asInfo, "info", false, "Treat the file as metadata and also print its info hash")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || (asDefinition && asInfo) {
		fmt.Fprintln(errOut, "usage: ecs store put [--config <file> | --dir <path>] [--definition | --info] <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read file: %v\n", err)
		return 1
	}
	reg, closeStore, err := sf.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 1
	}
	defer closeStore()

	switch {
	case asDefinition:
		id, err := reg.PutDefinitionBytes(b)
		if err != nil {
			fmt.Fprintf(errOut, "put definition: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id)
	case asInfo:
		infoHash, id, err := reg.PutInfo(b)
		if err != nil {
			fmt.Fprintf(errOut, "put info: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", id, host.EncodeHex(infoHash[:]))
	default:
		id, err := reg.CAS.Put(b)
		if err != nil {
			fmt.Fprintf(errOut, "put: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id)
	}
	return 0
}

func cmdStoreGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: ecs store get [--config <file> | --dir <path>] <cid>")
		return 2
	}
	id, err := cid.Decode(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid cid: %v\n", err)
		return 2
	}
	reg, closeStore, err := sf.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 1
	}
	defer closeStore()

	b, err := reg.CAS.Get(id)
	if err != nil {
		fmt.Fprintf(errOut, "get %s: %v\n", id, err)
		return 1
	}
	_, _ = out.Write(b)
	return 0
}

func cmdStoreInfo(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store info", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: ecs store info [--config <file> | --dir <path>] <definition-cid>")
		return 2
	}
	id, err := cid.Decode(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "invalid cid: %v\n", err)
		return 2
	}
	reg, closeStore, err := sf.open(errOut)
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 1
	}
	defer closeStore()

	def, err := reg.GetDefinition(id)
	if err != nil {
		fmt.Fprintf(errOut, "get definition %s: %v\n", id, err)
		return 1
	}
	meta, err := reg.Info(def)
	if err != nil {
		fmt.Fprintf(errOut, "get info for %s: %v\n", id, err)
		return 1
	}
	_, _ = out.Write(meta)
	return 0
}
