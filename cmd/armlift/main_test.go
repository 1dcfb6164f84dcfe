package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func hexWords(ws ...uint32) string {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return hex.EncodeToString(b)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestLiftTree(t *testing.T) {
	// nop; ret
	out, err := run(t, "lift", "--addr", "0x1000", "--hex", "1f2003d5 c0035fd6")
	require.NoError(t, err)
	require.Contains(t, out, "block 0x1000 +8")
	require.Contains(t, out, "indirect")
	require.Contains(t, out, "x30:64")
}

func TestLiftJSON(t *testing.T) {
	// cbz x0, 0x4000 at 0x3000
	out, err := run(t, "lift", "--addr", "0x3000", "--hex", hexWords(0xb4008000), "--json")
	require.NoError(t, err)

	var r map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	require.Equal(t, "conditional", r["transfer"])
	require.Len(t, r["successors"], 2)
}

func TestLiftPretty(t *testing.T) {
	out, err := run(t, "lift", "--hex", hexWords(0xd503201f), "--pretty")
	require.NoError(t, err)
	require.Contains(t, out, "output.BlockReport")
}

func TestLiftDOT(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "lift", "--arch", "arm", "--addr", "0x8000", "--hex", hexWords(0x03a00001, 0xe12fff1e), "--dot", "--out", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "block_8000.dot"))
	require.NoError(t, err)
	require.Contains(t, string(data), "digraph il")
}

func TestLiftUnsupported(t *testing.T) {
	_, err := run(t, "lift", "--addr", "0x6000", "--hex", hexWords(0xd4000001))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unhandled instruction svc at 0x6000")
}

func TestLiftBadArch(t *testing.T) {
	_, err := run(t, "lift", "--arch", "mips", "--hex", "00")
	require.ErrorContains(t, err, `unknown architecture "mips"`)
}

func TestBadLogLevel(t *testing.T) {
	_, err := run(t, "lift", "--log-level", "debgu", "--hex", hexWords(0xd503201f))
	require.ErrorContains(t, err, "logLevel")
}

func TestLiftNeedsSource(t *testing.T) {
	_, err := run(t, "lift")
	require.Error(t, err)
}

func TestLiftConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armlift.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"arch": "a32"}`), 0644))

	// bx lr
	out, err := run(t, "lift", "--config", path, "--hex", hexWords(0xe12fff1e))
	require.NoError(t, err)
	require.Contains(t, out, "lr:32")
	require.Contains(t, out, "interwork")
}

func TestLiftFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.bin")
	raw, _ := hex.DecodeString(hexWords(0xd503201f, 0xd65f03c0))
	require.NoError(t, os.WriteFile(path, raw, 0644))

	out, err := run(t, "lift", "--file", path, "--addr", "0x2000")
	require.NoError(t, err)
	require.Contains(t, out, "block 0x2000 +8")
}

func TestDisasm(t *testing.T) {
	dir := t.TempDir()
	// nop; bl 0x1104
	out, err := run(t, "disasm", "--addr", "0x1000", "--hex", hexWords(0xd503201f, 0x94000040), "--write", "--out", dir)
	require.NoError(t, err)
	require.Contains(t, out, "0x00001000")
	require.Contains(t, out, "<sub_1000>")
	require.Contains(t, out, "nop")
	_, err = os.Stat(filepath.Join(dir, "asm.txt"))
	require.NoError(t, err)
}

func TestExplore(t *testing.T) {
	dir := t.TempDir()
	// mov x0, #0; bl 0x1104; cbz x0, 0x1018; mov x1, #1; bl 0x1210;
	// b 0x1020; bl 0x1318; ret; ret
	code := hexWords(
		0xd2800000, 0x94000040, 0xb4000080,
		0xd2800021, 0x94000080, 0x14000003,
		0x940000c0, 0xd65f03c0,
		0xd65f03c0,
	)
	_, err := run(t, "explore", "--addr", "0x1000", "--hex", code, "--out", dir, "--workers", "2")
	require.NoError(t, err)

	for _, name := range []string{"blocks.json", "blocks.dot", "cfg.dot", "callgraph.dot"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "blocks.json"))
	require.NoError(t, err)
	var r struct {
		Arch   string `json:"arch"`
		Blocks []any  `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(data, &r))
	require.Equal(t, "a64", r.Arch)
	require.Len(t, r.Blocks, 4)
}

func TestExploreNegativeBudget(t *testing.T) {
	_, err := run(t, "explore", "--hex", hexWords(0xd65f03c0), "--max-blocks", "-1", "--out", t.TempDir())
	require.ErrorContains(t, err, "maxBlocks")
}

func TestSchema(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	require.Contains(t, out, `"maxBlockBytes"`)
}
