// Package host is an in-memory host ledger for the component verifiers.
//
// A Chain stores cells, maps program code to Go verifiers, groups a
// transaction's cells by script and runs each group's verifier against a
// read-only view of the transaction. It plays the role the node's script
// runner plays on a live network, and is what the tests and the CLI use.
package host

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/schema"
	"ckbecs.dev/ecs/verifier"
)

const (
	// DefaultMaxCycles is the per-transaction execution budget.
	DefaultMaxCycles uint64 = 10_000_000
	// DefaultMaxExecDepth bounds nested ExecCell calls.
	DefaultMaxExecDepth = 1
)

// Options configures a Chain. Zero values select defaults.
type Options struct {
	MaxCycles    uint64
	Parallelism  int
	MaxExecDepth int
	TextualArgv  bool
	Logger       *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxCycles == 0 {
		o.MaxCycles = DefaultMaxCycles
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	if o.MaxExecDepth <= 0 {
		o.MaxExecDepth = DefaultMaxExecDepth
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
	return o
}

// Program is verifier code addressable by the hash of its code bytes.
type Program struct {
	Name   string
	Verify verifier.Func
}

// Transaction is an unresolved transaction.
type Transaction struct {
	CellDeps []ledger.OutPoint
	Inputs   []ledger.CellInput
	Outputs  []ledger.Cell
}

// Chain is an in-memory ledger. It is safe for concurrent use.
type Chain struct {
	opts Options

	mu       sync.RWMutex
	programs map[[32]byte]Program
	cells    map[ledger.OutPoint]ledger.Cell
	deployed []ledger.OutPoint
	nonce    uint64
}

// NewChain returns an empty chain with the built-in programs registered.
func NewChain(opts Options) *Chain {
	c := &Chain{
		opts:     opts.withDefaults(),
		programs: make(map[[32]byte]Program),
		cells:    make(map[ledger.OutPoint]ledger.Cell),
	}
	for _, name := range BuiltinNames() {
		c.RegisterProgram(ProgramCode(name), Program{Name: name, Verify: builtins[name]})
	}
	return c
}

// Options returns the effective options.
func (c *Chain) Options() Options { return c.opts }

// RegisterProgram binds code to p and returns the code's data hash.
func (c *Chain) RegisterProgram(code []byte, p Program) [32]byte {
	h := ckbhash.Sum(code)
	c.mu.Lock()
	c.programs[h] = p
	c.mu.Unlock()
	return h
}

// Deploy registers fn under name and creates its code cell. The code cell
// is added to every transaction passed through CompleteTx.
func (c *Chain) Deploy(name string, fn verifier.Func) ledger.OutPoint {
	code := ProgramCode(name)
	c.RegisterProgram(code, Program{Name: name, Verify: fn})
	return c.deployCode(code)
}

// DeployBuiltin creates the code cell of a built-in program.
func (c *Chain) DeployBuiltin(name string) (ledger.OutPoint, error) {
	if _, ok := builtins[name]; !ok {
		return ledger.OutPoint{}, fmt.Errorf("host: unknown builtin %q", name)
	}
	return c.deployCode(ProgramCode(name)), nil
}

func (c *Chain) deployCode(code []byte) ledger.OutPoint {
	op := c.CreateCell(ledger.Cell{Data: code})
	c.mu.Lock()
	c.deployed = append(c.deployed, op)
	c.mu.Unlock()
	return op
}

// CreateCell stores cell as a live cell and returns its out point.
func (c *Chain) CreateCell(cell ledger.Cell) ledger.OutPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce++
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], c.nonce)
	op := ledger.OutPoint{TxHash: ckbhash.Sum([]byte("ckbecs-host-cell"), n[:])}
	c.cells[op] = cloneCell(cell)
	return op
}

// Cell returns the live cell at op.
func (c *Chain) Cell(op ledger.OutPoint) (ledger.Cell, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cell, ok := c.cells[op]
	return cloneCell(cell), ok
}

// BuildScript returns a script running the code stored at op.
func (c *Chain) BuildScript(op ledger.OutPoint, args []byte) (schema.Script, error) {
	cell, ok := c.Cell(op)
	if !ok {
		return schema.Script{}, fmt.Errorf("%w: %s", ErrUnknownOutPoint, op)
	}
	return schema.Script{
		CodeHash: ckbhash.Sum(cell.Data),
		HashType: schema.HashTypeData1,
		Args:     append([]byte(nil), args...),
	}, nil
}

// CompleteTx appends every deployed code cell missing from tx.CellDeps.
func (c *Chain) CompleteTx(tx Transaction) Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	have := make(map[ledger.OutPoint]struct{}, len(tx.CellDeps))
	for _, op := range tx.CellDeps {
		have[op] = struct{}{}
	}
	out := tx
	out.CellDeps = append([]ledger.OutPoint(nil), tx.CellDeps...)
	for _, op := range c.deployed {
		if _, ok := have[op]; !ok {
			out.CellDeps = append(out.CellDeps, op)
		}
	}
	return out
}

// Resolve looks up every input and cell dep of tx.
func (c *Chain) Resolve(tx Transaction) (*ResolvedTx, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rtx := &ResolvedTx{Outputs: make([]ledger.Cell, 0, len(tx.Outputs))}
	spent := make(map[ledger.OutPoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, dup := spent[in.PreviousOutput]; dup {
			return nil, fmt.Errorf("%w: input %d %s", ErrDuplicateInput, i, in.PreviousOutput)
		}
		spent[in.PreviousOutput] = struct{}{}
		cell, ok := c.cells[in.PreviousOutput]
		if !ok {
			return nil, fmt.Errorf("%w: input %d %s", ErrUnknownOutPoint, i, in.PreviousOutput)
		}
		rtx.Inputs = append(rtx.Inputs, ResolvedInput{Input: in, Cell: cloneCell(cell)})
	}
	for i, op := range tx.CellDeps {
		cell, ok := c.cells[op]
		if !ok {
			return nil, fmt.Errorf("%w: cell dep %d %s", ErrUnknownOutPoint, i, op)
		}
		rtx.CellDeps = append(rtx.CellDeps, cloneCell(cell))
	}
	for _, out := range tx.Outputs {
		rtx.Outputs = append(rtx.Outputs, cloneCell(out))
	}
	return rtx, nil
}

func (c *Chain) program(codeHash [32]byte) (Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[codeHash]
	return p, ok
}

func cloneCell(c ledger.Cell) ledger.Cell {
	out := ledger.Cell{
		Capacity: c.Capacity,
		Lock:     cloneScript(c.Lock),
		Data:     append([]byte(nil), c.Data...),
	}
	if c.Type != nil {
		t := cloneScript(*c.Type)
		out.Type = &t
	}
	return out
}

func cloneScript(s schema.Script) schema.Script {
	out := s
	out.Args = append([]byte(nil), s.Args...)
	if s.Extra != nil {
		out.Extra = make([][]byte, len(s.Extra))
		for i, f := range s.Extra {
			out.Extra[i] = append([]byte(nil), f...)
		}
	}
	return out
}
