package host

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"

	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/schema"
)

// Cycle prices. They only need to be deterministic.
const (
	programCycles = 10_000
	syscallCycles = 500
	hashCycles    = 100
)

type cyclesExceeded struct{}

// scriptContext is the ledger.Context of one script group invocation.
type scriptContext struct {
	chain *Chain
	rtx   *ResolvedTx
	deps  *depIndex
	group *scriptGroup

	argv  [][]byte
	depth int

	cycles  *uint64
	budget  uint64
	logger  *zerolog.Logger
	textual bool
}

var _ ledger.Context = (*scriptContext)(nil)

// invoke runs a top-level program, turning aborts into errors.
func (sc *scriptContext) invoke(p Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(cyclesExceeded); ok {
				err = fmt.Errorf("%w: budget %d", ErrCyclesExceeded, sc.budget)
				return
			}
			err = fmt.Errorf("%w: %s: %v", ErrVMFault, p.Name, r)
		}
	}()
	sc.charge(programCycles)
	return p.Verify(sc)
}

// charge consumes n cycles, aborting the invocation once the budget is spent.
func (sc *scriptContext) charge(n uint64) {
	*sc.cycles += n
	if *sc.cycles > sc.budget {
		panic(cyclesExceeded{})
	}
}

func (sc *scriptContext) Script() schema.Script { return cloneScript(sc.group.script) }

func (sc *scriptContext) Argv() [][]byte { return cloneArgv(sc.argv) }

func (sc *scriptContext) Capabilities() ledger.Capabilities {
	return ledger.Capabilities{TextualArgv: sc.textual}
}

func (sc *scriptContext) Logger() *zerolog.Logger { return sc.logger }

func (sc *scriptContext) LoadCell(index int, source ledger.Source) (ledger.Cell, error) {
	sc.charge(syscallCycles)
	cell, err := sc.cell(index, source)
	if err != nil {
		return ledger.Cell{}, err
	}
	sc.charge(uint64(len(cell.Data)))
	return cloneCell(cell), nil
}

func (sc *scriptContext) cell(index int, source ledger.Source) (ledger.Cell, error) {
	at := func(n int) bool { return index >= 0 && index < n }
	switch source {
	case ledger.SourceInput:
		if at(len(sc.rtx.Inputs)) {
			return sc.rtx.Inputs[index].Cell, nil
		}
	case ledger.SourceOutput:
		if at(len(sc.rtx.Outputs)) {
			return sc.rtx.Outputs[index], nil
		}
	case ledger.SourceCellDep:
		if at(len(sc.rtx.CellDeps)) {
			return sc.rtx.CellDeps[index], nil
		}
	case ledger.SourceGroupInput:
		if at(len(sc.group.inputs)) {
			return sc.rtx.Inputs[sc.group.inputs[index]].Cell, nil
		}
	case ledger.SourceGroupOutput:
		if at(len(sc.group.outputs)) {
			return sc.rtx.Outputs[sc.group.outputs[index]], nil
		}
	default:
		return ledger.Cell{}, ledger.ErrItemMissing
	}
	return ledger.Cell{}, ledger.ErrIndexOutOfBound
}

func (sc *scriptContext) LoadInput(index int, source ledger.Source) (ledger.CellInput, error) {
	sc.charge(syscallCycles)
	switch source {
	case ledger.SourceInput:
		if index >= 0 && index < len(sc.rtx.Inputs) {
			return sc.rtx.Inputs[index].Input, nil
		}
	case ledger.SourceGroupInput:
		if index >= 0 && index < len(sc.group.inputs) {
			return sc.rtx.Inputs[sc.group.inputs[index]].Input, nil
		}
	default:
		return ledger.CellInput{}, ledger.ErrItemMissing
	}
	return ledger.CellInput{}, ledger.ErrIndexOutOfBound
}

func (sc *scriptContext) LookForDep(hash [32]byte, hashType schema.HashType) (int, error) {
	sc.charge(syscallCycles + hashCycles*uint64(len(sc.rtx.CellDeps)))
	i, ok := sc.deps.find(hash, schema.TypeOrData(byte(hashType)))
	if !ok {
		return 0, ledger.ErrIndexOutOfBound
	}
	return i, nil
}

// ExecCell runs the target program in place of the caller: same script,
// same group, same cycle budget, new argv. Its verdict is returned as is;
// launched is false only for the checks made before the target starts.
func (sc *scriptContext) ExecCell(codeHash [32]byte, hashType schema.HashType, argv [][]byte) (bool, error) {
	sc.charge(syscallCycles)
	if sc.depth >= sc.chain.opts.MaxExecDepth {
		return false, fmt.Errorf("%w: exec depth limit %d reached", ledger.ErrExecFailed, sc.chain.opts.MaxExecDepth)
	}
	if sc.textual {
		for i, a := range argv {
			if bytes.IndexByte(a, 0) >= 0 {
				return false, fmt.Errorf("%w: argv[%d] contains NUL", ledger.ErrExecFailed, i)
			}
		}
	}
	prog, err := sc.chain.resolveProgram(sc.deps, sc.rtx.CellDeps, codeHash, hashType)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ledger.ErrExecFailed, err)
	}

	logger := sc.logger.With().Str("exec", prog.Name).Int("depth", sc.depth+1).Logger()
	child := *sc
	child.argv = cloneArgv(argv)
	child.depth++
	child.logger = &logger
	child.charge(programCycles)
	return true, prog.Verify(&child)
}

func cloneArgv(argv [][]byte) [][]byte {
	if argv == nil {
		return nil
	}
	out := make([][]byte, len(argv))
	for i, a := range argv {
		out[i] = append([]byte(nil), a...)
	}
	return out
}
