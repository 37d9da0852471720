// Package componenttype is the type verifier that delegates a component's
// behaviour to a verifier named inside a component definition.
//
// Script args layout:
//
//	[0:32]  digest of the definition cell dep
//	[32]    1 = digest is the dep's type script hash, otherwise its data hash
//	[33:]   free for the delegate
//
// The dispatch target comes from a dep the transaction already commits to,
// never from the args directly.
package componenttype

import (
	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/schema"
	"ckbecs.dev/ecs/verifier"
)

const (
	// ArgsLen is the minimum script args length.
	ArgsLen = 33

	digestLen   = 32
	hashTypePos = 32
)

// ArgsByDataHash returns script args addressing the definition cell whose
// data is definition, followed by extra.
func ArgsByDataHash(definition []byte, extra []byte) []byte {
	h := ckbhash.Sum(definition)
	return buildArgs(h, schema.HashTypeData, extra)
}

// ArgsByTypeHash returns script args addressing the definition cell whose
// type script is typ, followed by extra.
func ArgsByTypeHash(typ schema.Script, extra []byte) []byte {
	return buildArgs(typ.Hash(), schema.HashTypeType, extra)
}

func buildArgs(digest [digestLen]byte, hashType schema.HashType, extra []byte) []byte {
	args := make([]byte, 0, ArgsLen+len(extra))
	args = append(args, digest[:]...)
	args = append(args, byte(hashType))
	return append(args, extra...)
}

// Verify is the verifier entry point. On success of resolution it returns
// the delegate's outcome unchanged.
func Verify(ctx ledger.Context) error {
	args := ctx.Script().Args
	if len(args) < ArgsLen {
		return verifier.InvalidArgs("component type args must be at least %d bytes, got %d", ArgsLen, len(args))
	}

	var digest [digestLen]byte
	copy(digest[:], args[:digestLen])
	hashType := schema.TypeOrData(args[hashTypePos])

	index, ok, err := ledger.LookForDepOptional(ctx, digest, hashType)
	if err != nil {
		return err
	}
	if !ok {
		return verifier.New(verifier.CodeComponentDefinitionNotFound, verifier.KindStructural, "no cell dep matches the definition digest")
	}

	def, err := loadDefinition(ctx, index)
	if err != nil {
		return err
	}
	return exec(ctx, def.Delegate(), args)
}

func loadDefinition(ctx ledger.Context, index int) (schema.ComponentDefinition, error) {
	cell, ok, err := ledger.LoadOptional(ctx, index, ledger.SourceCellDep)
	if err != nil {
		return schema.ComponentDefinition{}, err
	}
	if !ok {
		return schema.ComponentDefinition{}, verifier.New(verifier.CodeComponentDefinitionNotFound, verifier.KindStructural, "definition cell dep vanished")
	}
	def, err := schema.Decode(cell.Data, schema.Compatible)
	if err != nil {
		return schema.ComponentDefinition{}, verifier.Wrap(verifier.CodeInvalidComponentDefinition, verifier.KindStructural, "cell dep is not a component definition", err)
	}
	return def, nil
}

func exec(ctx ledger.Context, delegate schema.Script, invokingArgs []byte) error {
	argv := EncodeDelegateArgv(invokingArgs, delegate.Args, ctx.Capabilities().TextualArgv)
	ctx.Logger().Debug().
		Hex("code_hash", delegate.CodeHash[:]).
		Str("hash_type", delegate.HashType.String()).
		Msg("exec delegate")

	launched, err := ctx.ExecCell(delegate.CodeHash, schema.TypeOrData(byte(delegate.HashType)), argv)
	if !launched {
		return verifier.Wrap(verifier.CodeDelegateLaunchFailed, verifier.KindInternal, "delegate could not be launched", err)
	}
	return err
}
