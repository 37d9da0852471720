// Package componentlock is the lock verifier that keeps capacity attached to
// a component under its owner's control.
//
// The script args are the encoded lock script of the owner. Without the
// owner among the inputs, capacity may only stay under this lock or return
// to the owner's lock.
package componentlock

import (
	"bytes"
	"math/bits"

	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/verifier"
)

// Balance is the capacity accounting of one verification.
type Balance struct {
	Inputs    uint64
	Outputs   uint64
	Unwrapped uint64
}

// Verify is the verifier entry point.
func Verify(ctx ledger.Context) error {
	script := ctx.Script()
	self := script.Bytes()
	owner := script.Args

	_, ownerPresent, err := ledger.FindCell(ctx, ledger.SourceInput, func(c ledger.Cell) bool {
		return bytes.Equal(c.Lock.Bytes(), owner)
	})
	if err != nil {
		return err
	}
	if ownerPresent {
		ctx.Logger().Debug().Msg("owner participates; capacity unrestricted")
		return nil
	}

	bal, err := Measure(ctx, self, owner)
	if err != nil {
		return err
	}
	ctx.Logger().Debug().
		Uint64("inputs", bal.Inputs).
		Uint64("outputs", bal.Outputs).
		Uint64("unwrapped_outputs", bal.Unwrapped).
		Msg("component lock balance")

	if mustAdd(bal.Outputs, bal.Unwrapped) < bal.Inputs {
		return verifier.New(verifier.CodeBalanceError, verifier.KindEconomic, "capacity leaves the component without the owner")
	}
	return nil
}

// Measure sums the group's input capacity, the output capacity still locked
// by self, and the output capacity returned to owner. Outputs under self are
// not part of the script group, so all outputs are scanned.
func Measure(ctx ledger.Context, self, owner []byte) (Balance, error) {
	var bal Balance
	err := ledger.ForEachCell(ctx, ledger.SourceGroupInput, func(_ int, c ledger.Cell) error {
		bal.Inputs = mustAdd(bal.Inputs, c.Capacity)
		return nil
	})
	if err != nil {
		return Balance{}, err
	}
	err = ledger.ForEachCell(ctx, ledger.SourceOutput, func(_ int, c ledger.Cell) error {
		lock := c.Lock.Bytes()
		if bytes.Equal(lock, self) {
			bal.Outputs = mustAdd(bal.Outputs, c.Capacity)
		}
		if bytes.Equal(lock, owner) {
			bal.Unwrapped = mustAdd(bal.Unwrapped, c.Capacity)
		}
		return nil
	})
	if err != nil {
		return Balance{}, err
	}
	return bal, nil
}

// mustAdd panics on overflow. Capacities are bounded by total supply, so an
// overflow means the host handed us impossible data.
func mustAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		panic("componentlock: capacity overflow")
	}
	return sum
}
