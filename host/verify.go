package host

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/schema"
)

// ResolvedInput is an input together with the cell it consumes.
type ResolvedInput struct {
	Input ledger.CellInput
	Cell  ledger.Cell
}

// ResolvedTx is a transaction with every referenced cell loaded.
type ResolvedTx struct {
	Inputs   []ResolvedInput
	Outputs  []ledger.Cell
	CellDeps []ledger.Cell
}

// depIndex caches the lookup hashes of a transaction's cell deps.
type depIndex struct {
	dataHash []ckbhash.Digest
	typeHash []*ckbhash.Digest
}

func newDepIndex(deps []ledger.Cell) *depIndex {
	idx := &depIndex{
		dataHash: make([]ckbhash.Digest, len(deps)),
		typeHash: make([]*ckbhash.Digest, len(deps)),
	}
	for i, d := range deps {
		idx.dataHash[i] = ckbhash.Sum(d.Data)
		if d.Type != nil {
			h := d.Type.Hash()
			idx.typeHash[i] = &h
		}
	}
	return idx
}

// find returns the first dep matching hash under hashType.
func (idx *depIndex) find(hash [32]byte, hashType schema.HashType) (int, bool) {
	for i := range idx.dataHash {
		if hashType == schema.HashTypeType {
			if idx.typeHash[i] != nil && *idx.typeHash[i] == hash {
				return i, true
			}
			continue
		}
		if idx.dataHash[i] == hash {
			return i, true
		}
	}
	return 0, false
}

type scriptGroup struct {
	kind    GroupKind
	index   int
	script  schema.Script
	hash    [32]byte
	inputs  []int
	outputs []int
}

// groupScripts partitions the transaction: one lock group per distinct
// input lock, then one type group per distinct type among inputs and
// outputs, each in order of first appearance.
func groupScripts(rtx *ResolvedTx) []*scriptGroup {
	var groups []*scriptGroup
	locks := map[string]*scriptGroup{}
	for i, in := range rtx.Inputs {
		key := string(in.Cell.Lock.Bytes())
		g, ok := locks[key]
		if !ok {
			g = &scriptGroup{kind: GroupLock, index: len(locks), script: in.Cell.Lock, hash: in.Cell.Lock.Hash()}
			locks[key] = g
			groups = append(groups, g)
		}
		g.inputs = append(g.inputs, i)
	}

	types := map[string]*scriptGroup{}
	typeGroup := func(s *schema.Script) *scriptGroup {
		key := string(s.Bytes())
		g, ok := types[key]
		if !ok {
			g = &scriptGroup{kind: GroupType, index: len(types), script: *s, hash: s.Hash()}
			types[key] = g
			groups = append(groups, g)
		}
		return g
	}
	for i, in := range rtx.Inputs {
		if in.Cell.Type != nil {
			g := typeGroup(in.Cell.Type)
			g.inputs = append(g.inputs, i)
		}
	}
	for i, out := range rtx.Outputs {
		if out.Type != nil {
			g := typeGroup(out.Type)
			g.outputs = append(g.outputs, i)
		}
	}
	return groups
}

type groupResult struct {
	cycles uint64
	err    error
}

// VerifyTx resolves and verifies tx, returning the consumed cycles. On
// failure the error of the first failing group, in group order, is returned.
func (c *Chain) VerifyTx(tx Transaction) (uint64, error) {
	rtx, err := c.Resolve(tx)
	if err != nil {
		return 0, err
	}
	return c.VerifyResolved(rtx)
}

// VerifyAll is like VerifyTx but reports every failing group.
func (c *Chain) VerifyAll(tx Transaction) error {
	rtx, err := c.Resolve(tx)
	if err != nil {
		return err
	}
	return c.VerifyAllResolved(rtx)
}

// VerifyAllResolved reports every failing group of an already-resolved
// transaction, and the total budget overrun if there is one.
func (c *Chain) VerifyAllResolved(rtx *ResolvedTx) error {
	results, total := c.run(rtx)
	var all *multierror.Error
	for _, r := range results {
		if r.err != nil {
			all = multierror.Append(all, r.err)
		}
	}
	if all == nil && total > c.opts.MaxCycles {
		return fmt.Errorf("%w: %d > %d", ErrCyclesExceeded, total, c.opts.MaxCycles)
	}
	return all.ErrorOrNil()
}

// VerifyResolved verifies an already-resolved transaction.
func (c *Chain) VerifyResolved(rtx *ResolvedTx) (uint64, error) {
	results, total := c.run(rtx)
	for _, r := range results {
		if r.err != nil {
			return total, r.err
		}
	}
	if total > c.opts.MaxCycles {
		return total, fmt.Errorf("%w: %d > %d", ErrCyclesExceeded, total, c.opts.MaxCycles)
	}
	return total, nil
}

// run verifies every script group. Groups are independent, so they run
// concurrently; results are kept in group order so the outcome does not
// depend on scheduling.
func (c *Chain) run(rtx *ResolvedTx) ([]groupResult, uint64) {
	groups := groupScripts(rtx)
	deps := newDepIndex(rtx.CellDeps)
	results := make([]groupResult, len(groups))

	var eg errgroup.Group
	eg.SetLimit(c.opts.Parallelism)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			cycles, err := c.runGroup(rtx, deps, g)
			if err != nil {
				err = &ScriptError{Kind: g.kind, Index: g.index, ScriptHash: g.hash, Err: err}
			}
			results[i] = groupResult{cycles: cycles, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	var total uint64
	for _, r := range results {
		total += r.cycles
	}
	return results, total
}

func (c *Chain) runGroup(rtx *ResolvedTx, deps *depIndex, g *scriptGroup) (uint64, error) {
	prog, err := c.resolveProgram(deps, rtx.CellDeps, g.script.CodeHash, g.script.HashType)
	if err != nil {
		return 0, err
	}
	logger := c.opts.Logger.With().
		Str("group", g.kind.String()).
		Int("index", g.index).
		Hex("script_hash", g.hash[:]).
		Str("program", prog.Name).
		Logger()
	var cycles uint64
	sc := &scriptContext{
		chain:   c,
		rtx:     rtx,
		deps:    deps,
		group:   g,
		cycles:  &cycles,
		budget:  c.opts.MaxCycles,
		logger:  &logger,
		textual: c.opts.TextualArgv,
	}
	err = sc.invoke(prog)
	logger.Debug().Uint64("cycles", cycles).AnErr("outcome", err).Msg("script group verified")
	return cycles, err
}

// resolveProgram locates the code cell of a script among the cell deps.
// Data hash types all address code by data hash.
func (c *Chain) resolveProgram(deps *depIndex, cells []ledger.Cell, codeHash [32]byte, hashType schema.HashType) (Program, error) {
	i, ok := deps.find(codeHash, schema.TypeOrData(byte(hashType)))
	if !ok {
		return Program{}, fmt.Errorf("%w: code hash 0x%x (%s)", ErrScriptNotFound, codeHash, hashType)
	}
	prog, ok := c.program(deps.dataHash[i])
	if !ok || prog.Verify == nil {
		return Program{}, fmt.Errorf("%w: cell dep %d holds %d bytes of unknown code", ErrScriptNotFound, i, len(cells[i].Data))
	}
	return prog, nil
}
