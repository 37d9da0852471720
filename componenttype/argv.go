package componenttype

import (
	"encoding/base64"
	"fmt"

	"ckbecs.dev/ecs/molecule"
)

// Delegate argv layout: argv[0] carries the component type script's own args,
// argv[1] the args configured on the delegate inside the definition. Each is
// a length-prefixed byte vector; hosts with a textual argv boundary get each
// element base64-armoured (standard alphabet, no padding).

const delegateArgc = 2

var armor = base64.RawStdEncoding

// EncodeDelegateArgv builds the argv handed to a delegate.
func EncodeDelegateArgv(invokingArgs, delegateArgs []byte, textual bool) [][]byte {
	argv := [][]byte{molecule.PackBytes(invokingArgs), molecule.PackBytes(delegateArgs)}
	if textual {
		for i, a := range argv {
			argv[i] = []byte(armor.EncodeToString(a))
		}
	}
	return argv
}

// DecodeDelegateArgv is the delegate-side inverse of EncodeDelegateArgv.
func DecodeDelegateArgv(argv [][]byte, textual bool) (invokingArgs, delegateArgs []byte, err error) {
	if len(argv) != delegateArgc {
		return nil, nil, fmt.Errorf("componenttype: expected %d argv entries, got %d", delegateArgc, len(argv))
	}
	out := make([][]byte, delegateArgc)
	for i, a := range argv {
		if textual {
			a, err = armor.DecodeString(string(a))
			if err != nil {
				return nil, nil, fmt.Errorf("componenttype: argv[%d]: %w", i, err)
			}
		}
		out[i], err = molecule.UnpackBytes("Bytes", a)
		if err != nil {
			return nil, nil, fmt.Errorf("componenttype: argv[%d]: %w", i, err)
		}
	}
	return out[0], out[1], nil
}
