package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"io"
	"os"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/cidutil"
	"ckbecs.dev/ecs/componenttype"
	"ckbecs.dev/ecs/definitiontype"
	"ckbecs.dev/ecs/host"
	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/registry"
	"ckbecs.dev/ecs/schema"
)

func cmdDefinition(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: ecs definition <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: build, inspect")
		return 2
	}
	switch args[0] {
	case "build":
		return cmdDefinitionBuild(args[1:], out, errOut)
	case "inspect":
		return cmdDefinitionInspect(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown definition subcommand: %s\n", args[0])
		return 2
	}
}

func cmdDefinitionBuild(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("definition build", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		name         string
		codeHash     string
		hashType     string
		delegateArgs string
		infoHash     string
		infoFile     string
		asHex        bool
	)
	fs.StringVar(&name, "name", "", "Component name")
	fs.StringVar(&codeHash, "delegate-code-hash", "", "Delegate code hash (hex or builtin:<name>)")
	fs.StringVar(&hashType, "delegate-hash-type", "data1", "Delegate hash type: data|type|data1|data2")
	fs.StringVar(&delegateArgs, "delegate-args", "", "Delegate args (hex)")
	fs.StringVar(&infoHash, "info-hash", "", "Info hash (hex, 32 bytes)")
	fs.StringVar(&infoFile, "info-file", "", "Metadata file; its sha2-256 becomes the info hash")
	fs.BoolVar(&asHex, "hex", false, "Print 0x-prefixed hex instead of raw bytes")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || codeHash == "" || (infoHash != "" && infoFile != "") || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: ecs definition build --name <name> --delegate-code-hash <hex|builtin:name> [--delegate-hash-type data1] [--delegate-args <hex>] [--info-hash <hex> | --info-file <path>] [--hex]")
		return 2
	}

	v1 := schema.ComponentDefinitionV1{ComponentName: []byte(name)}
	var err error
	if v1.Delegate.CodeHash, err = host.ParseCodeHash(codeHash); err != nil {
		fmt.Fprintf(errOut, "--delegate-code-hash: %v\n", err)
		return 2
	}
	if v1.Delegate.HashType, err = schema.ParseHashType(hashType); err != nil {
		fmt.Fprintf(errOut, "--delegate-hash-type: %v\n", err)
		return 2
	}
	if v1.Delegate.Args, err = host.DecodeHex(delegateArgs); err != nil {
		fmt.Fprintf(errOut, "--delegate-args: %v\n", err)
		return 2
	}
	switch {
	case infoHash != "":
		if v1.InfoHash, err = host.DecodeHash(infoHash); err != nil {
			fmt.Fprintf(errOut, "--info-hash: %v\n", err)
			return 2
		}
	case infoFile != "":
		meta, err := os.ReadFile(infoFile)
		if err != nil {
			fmt.Fprintf(errOut, "read --info-file: %v\n", err)
			return 1
		}
		v1.InfoHash = sha256.Sum256(meta)
	}

	b := schema.NewComponentDefinition(v1).Bytes()
	if asHex {
		_, _ = fmt.Fprintln(out, host.EncodeHex(b))
		return 0
	}
	_, _ = out.Write(b)
	return 0
}

func cmdDefinitionInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("definition inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var strict bool
	fs.BoolVar(&strict, "strict", false, "Reject fields unknown to this version")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: ecs definition inspect [--strict] <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read definition: %v\n", err)
		return 1
	}
	mode := schema.Compatible
	if strict {
		mode = schema.Strict
	}
	def, err := schema.Decode(b, mode)
	if err != nil {
		fmt.Fprintf(errOut, "invalid definition (%s): %v\n", mode, err)
		return 1
	}
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	dataHash := ckbhash.Sum(b)

	fmt.Fprintln(out, def)
	fmt.Fprintf(out, "cid: %s\n", id)
	fmt.Fprintf(out, "data_hash: %s\n", host.EncodeHex(dataHash[:]))
	fmt.Fprintf(out, "component_type_args: %s\n", host.EncodeHex(componenttype.ArgsByDataHash(b, nil)))
	if infoCID, err := registry.InfoCID(def); err == nil {
		fmt.Fprintf(out, "info_cid: %s\n", infoCID)
	}
	return 0
}

func cmdTypeID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("type-id", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		txHash      string
		index       uint
		since       uint64
		outputIndex uint64
	)
	fs.StringVar(&txHash, "tx-hash", "", "Transaction hash of the first input's out point (hex)")
	fs.UintVar(&index, "index", 0, "Output index of the first input's out point")
	fs.Uint64Var(&since, "since", 0, "Since value of the first input")
	fs.Uint64Var(&outputIndex, "output-index", 0, "Index of the first output carrying the new type script")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if txHash == "" || fs.NArg() != 0 || uint64(index) > uint64(^uint32(0)) {
		fmt.Fprintln(errOut, "usage: ecs type-id --tx-hash <hex> [--index <n>] [--since <n>] [--output-index <n>]")
		return 2
	}
	h, err := host.DecodeHash(txHash)
	if err != nil {
		fmt.Fprintf(errOut, "--tx-hash: %v\n", err)
		return 2
	}
	input := ledger.CellInput{Since: since, PreviousOutput: ledger.OutPoint{TxHash: h, Index: uint32(index)}}
	id := definitiontype.TypeID(input, outputIndex)
	_, _ = fmt.Fprintln(out, host.EncodeHex(id[:]))
	return 0
}

func cmdBuiltins(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintln(errOut, "usage: ecs builtins")
		return 2
	}
	for _, name := range host.BuiltinNames() {
		h := ckbhash.Sum(host.ProgramCode(name))
		_, _ = fmt.Fprintf(out, "%s\t%s\n", name, host.EncodeHex(h[:]))
	}
	return 0
}
