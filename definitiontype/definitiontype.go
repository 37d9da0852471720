// Package definitiontype is the type verifier guarding component definition
// cells. It enforces a type-ID singleton: an identifier is minted exactly
// once, bound to the consumption of a specific input, and afterwards the
// cell carrying it may be updated or destroyed freely. Any cell it governs
// must hold a well-formed component definition.
package definitiontype

import (
	"encoding/binary"
	"fmt"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/schema"
	"ckbecs.dev/ecs/verifier"
)

// IDSize is the length of a type identifier.
const IDSize = ckbhash.Size

// TypeID derives the identifier minted by a transaction whose first input
// is input, for the first output at outputIndex carrying the new type script.
func TypeID(input ledger.CellInput, outputIndex uint64) [IDSize]byte {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], outputIndex)
	return ckbhash.Sum(input.Bytes(), idx[:])
}

// Verify is the verifier entry point.
func Verify(ctx ledger.Context) error {
	if err := VerifyTypeID(ctx); err != nil {
		return err
	}
	return VerifyDefinitionData(ctx)
}

// VerifyTypeID enforces the singleton rules for the running script.
func VerifyTypeID(ctx ledger.Context) error {
	script := ctx.Script()
	if len(script.Args) != IDSize {
		return verifier.InvalidArgs("type id args must be %d bytes, got %d", IDSize, len(script.Args))
	}

	for _, source := range []ledger.Source{ledger.SourceGroupInput, ledger.SourceGroupOutput} {
		second, err := ledger.CellExists(ctx, 1, source)
		if err != nil {
			return err
		}
		if second {
			return verifier.New(verifier.CodeTooManyCells, verifier.KindStructural,
				fmt.Sprintf("more than one cell in %s carries this type id", source))
		}
	}

	existing, err := ledger.CellExists(ctx, 0, ledger.SourceGroupInput)
	if err != nil {
		return err
	}
	if existing {
		// Update or destroy of an already-minted identifier.
		return nil
	}

	first, err := ctx.LoadInput(0, ledger.SourceInput)
	if err != nil {
		return err
	}
	index, ok, err := ledger.FindCell(ctx, ledger.SourceOutput, func(c ledger.Cell) bool {
		return c.Type != nil && c.Type.Equal(script)
	})
	if err != nil {
		return err
	}
	if !ok {
		// The group has no input, so it was formed from an output.
		panic("definitiontype: running type script has no matching output")
	}

	want := TypeID(first, uint64(index))
	ctx.Logger().Debug().
		Int("output_index", index).
		Hex("type_id", want[:]).
		Msg("verify type id mint")
	if string(want[:]) != string(script.Args) {
		return verifier.New(verifier.CodeInvalidTypeID, verifier.KindStructural, "type id does not match first input and output index")
	}
	return nil
}

// VerifyDefinitionData requires the group's output cell, if any, to hold a
// strictly well-formed component definition.
func VerifyDefinitionData(ctx ledger.Context) error {
	cell, ok, err := ledger.LoadOptional(ctx, 0, ledger.SourceGroupOutput)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := schema.Verify(cell.Data, schema.Strict); err != nil {
		ctx.Logger().Debug().Err(err).Msg("component definition verification error")
		return verifier.Wrap(verifier.CodeInvalidData, verifier.KindStructural, "output data is not a component definition", err)
	}
	return nil
}
