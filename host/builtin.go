package host

import (
	"sort"

	"ckbecs.dev/ecs/componentlock"
	"ckbecs.dev/ecs/componenttype"
	"ckbecs.dev/ecs/definitiontype"
	"ckbecs.dev/ecs/ledger"
	"ckbecs.dev/ecs/verifier"
)

// Built-in program names.
const (
	BuiltinDefinitionType = "definition-type"
	BuiltinComponentLock  = "component-lock"
	BuiltinComponentType  = "component-type"
	BuiltinAlwaysSuccess  = "always-success"
)

var builtins = map[string]verifier.Func{
	BuiltinDefinitionType: definitiontype.Verify,
	BuiltinComponentLock:  componentlock.Verify,
	BuiltinComponentType:  componenttype.Verify,
	BuiltinAlwaysSuccess:  AlwaysSuccess,
}

// AlwaysSuccess accepts every script group.
func AlwaysSuccess(ledger.Context) error { return nil }

// BuiltinNames returns the built-in program names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProgramCode is the code cell content of a named program. The code hash of
// a program is the digest of these bytes.
func ProgramCode(name string) []byte {
	return []byte("ckbecs-program:" + name)
}
