package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ckbecs.dev/ecs/ckbhash"
	"ckbecs.dev/ecs/host"
	"ckbecs.dev/ecs/schema"
)

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestRun_Usage(t *testing.T) {
	if code, _, _ := runCmd(t); code != 2 {
		t.Fatalf("no args: exit %d", code)
	}
	if code, _, _ := runCmd(t, "frobnicate"); code != 2 {
		t.Fatalf("unknown command: exit %d", code)
	}
	code, out, _ := runCmd(t, "help")
	if code != 0 || !strings.Contains(out, "ecs verify") {
		t.Fatalf("help: exit %d, %q", code, out)
	}
	if code, _, _ := runCmd(t, "definition", "build", "--name", "x"); code != 2 {
		t.Fatalf("build without code hash: exit %d", code)
	}
	if code, _, _ := runCmd(t, "store", "put", "--definition", "--info", "f"); code != 2 {
		t.Fatalf("store put with both modes: exit %d", code)
	}
}

func TestBuiltins(t *testing.T) {
	code, out, _ := runCmd(t, "builtins")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	h := ckbhash.Sum(host.ProgramCode("always-success"))
	if !strings.Contains(out, "always-success\t"+host.EncodeHex(h[:])) {
		t.Fatalf("missing always-success line in %q", out)
	}
}

func TestDefinition_BuildAndInspect(t *testing.T) {
	dir := t.TempDir()
	code, out, errOut := runCmd(t, "definition", "build",
		"--name", "health",
		"--delegate-code-hash", "builtin:always-success",
		"--delegate-args", "0x0102",
	)
	if code != 0 {
		t.Fatalf("build: exit %d: %s", code, errOut)
	}
	def, err := schema.Decode([]byte(out), schema.Strict)
	if err != nil {
		t.Fatalf("built record does not decode: %v", err)
	}
	v1, ok := def.V1()
	if !ok || string(v1.ComponentName) != "health" || string(v1.Delegate.Args) != "\x01\x02" {
		t.Fatalf("unexpected record: %v", def)
	}
	if v1.Delegate.HashType != schema.HashTypeData1 {
		t.Fatalf("default hash type: %s", v1.Delegate.HashType)
	}

	path := writeFile(t, dir, "def.bin", []byte(out))
	code, out, errOut = runCmd(t, "definition", "inspect", "--strict", path)
	if code != 0 {
		t.Fatalf("inspect: exit %d: %s", code, errOut)
	}
	for _, want := range []string{"cid: b", "data_hash: 0x", "component_type_args: 0x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out)
		}
	}

	garbage := writeFile(t, dir, "garbage.bin", []byte{1, 2, 3})
	if code, _, _ := runCmd(t, "definition", "inspect", garbage); code != 1 {
		t.Fatalf("inspect garbage: exit %d", code)
	}
}

func TestTypeID(t *testing.T) {
	txHash := "0x" + strings.Repeat("11", 32)
	code, first, _ := runCmd(t, "type-id", "--tx-hash", txHash)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.HasPrefix(first, "0x") || len(strings.TrimSpace(first)) != 66 {
		t.Fatalf("unexpected id %q", first)
	}
	_, second, _ := runCmd(t, "type-id", "--tx-hash", txHash, "--output-index", "1")
	if first == second {
		t.Fatalf("output index does not change the id")
	}
	if code, _, _ := runCmd(t, "type-id", "--tx-hash", "0x11"); code != 2 {
		t.Fatalf("short tx hash: exit %d", code)
	}
}

func TestStore_DefinitionAndInfo(t *testing.T) {
	dir := t.TempDir()
	casDir := filepath.Join(dir, "cas")
	meta := writeFile(t, dir, "meta.json", []byte(`{"name":"health","fields":["hp"]}`))

	code, out, errOut := runCmd(t, "store", "put", "--dir", casDir, "--info", meta)
	if code != 0 {
		t.Fatalf("put info: exit %d: %s", code, errOut)
	}
	if fields := strings.Split(strings.TrimSpace(out), "\t"); len(fields) != 2 {
		t.Fatalf("put info output: %q", out)
	}

	code, rec, errOut := runCmd(t, "definition", "build",
		"--name", "health",
		"--delegate-code-hash", "builtin:always-success",
		"--info-file", meta,
	)
	if code != 0 {
		t.Fatalf("build: exit %d: %s", code, errOut)
	}
	recPath := writeFile(t, dir, "def.bin", []byte(rec))

	code, out, errOut = runCmd(t, "store", "put", "--dir", casDir, "--definition", recPath)
	if code != 0 {
		t.Fatalf("put definition: exit %d: %s", code, errOut)
	}
	defCID := strings.TrimSpace(out)

	code, out, errOut = runCmd(t, "store", "get", "--dir", casDir, defCID)
	if code != 0 || out != rec {
		t.Fatalf("get: exit %d: %s", code, errOut)
	}

	code, out, errOut = runCmd(t, "store", "info", "--dir", casDir, defCID)
	if code != 0 {
		t.Fatalf("info: exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, `"fields":["hp"]`) {
		t.Fatalf("info returned %q", out)
	}
}

func TestStore_RejectsInvalidDefinition(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.bin", []byte("not a record"))
	code, _, errOut := runCmd(t, "store", "put", "--dir", filepath.Join(dir, "cas"), "--definition", bad)
	if code != 1 || !strings.Contains(errOut, "put definition") {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if code, _, _ := runCmd(t, "store", "get", "--dir", filepath.Join(dir, "cas"), "nonsense"); code != 2 {
		t.Fatalf("bad cid: exit %d", code)
	}
}

const okTx = `{
  "cell_deps": [{"capacity": 0, "lock": {"code_hash": "builtin:always-success", "hash_type": "data1"}, "builtin": "always-success"}],
  "inputs": [{
    "previous_output": {"tx_hash": "0x2222222222222222222222222222222222222222222222222222222222222222", "index": 1},
    "cell": {"capacity": 100, "lock": {"code_hash": "builtin:always-success", "hash_type": "data1"}}
  }],
  "outputs": [{"capacity": 100, "lock": {"code_hash": "builtin:always-success", "hash_type": "data1"}}]
}`

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ok.json", []byte(okTx))
	code, out, errOut := runCmd(t, "verify", "--log-level", "error", path)
	if code != 0 || !strings.HasPrefix(out, "ok cycles=") {
		t.Fatalf("verify: exit %d: %s %s", code, out, errOut)
	}

	missing := strings.Replace(okTx, `"builtin": "always-success"`, `"data": "0x00"`, 1)
	path = writeFile(t, dir, "missing.json", []byte(missing))
	code, _, errOut = runCmd(t, "verify", "--log-level", "error", path)
	if code != 1 || !strings.Contains(errOut, "rejected by lock script group 0") {
		t.Fatalf("verify missing code: exit %d: %s", code, errOut)
	}
	code, _, errOut = runCmd(t, "verify", "--log-level", "error", "--all", path)
	if code != 1 || !strings.Contains(errOut, "rejected") {
		t.Fatalf("verify --all: exit %d: %s", code, errOut)
	}
}
