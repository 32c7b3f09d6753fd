package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSource drops a source file into a temp dir and returns its path.
func writeSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.c")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// resetFlags clears the package-level flag state between runs.
func resetFlags() {
	dParse = false
	dTAC = false
	dCFG = false
	dOpt = false
	noOpt = false
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags(args))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCompileToStdout(t *testing.T) {
	path := writeSource(t, `int main() { output 42; }`)

	out, _, err := runCLI(t, path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"main:", "OTI", "EXIT:", "STACK:"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestDumpTAC(t *testing.T) {
	path := writeSource(t, `int main() { int a; a = 1 + 2; output a; }`)

	out, _, err := runCLI(t, "-dtac", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"label main", "t0 = 1 + 2", "output a"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in dump:\n%s", want, out)
		}
	}
	if strings.Contains(out, "OTI") {
		t.Error("-dtac should stop before code generation")
	}
}

func TestDumpOptimized(t *testing.T) {
	path := writeSource(t, `int main() { int a; a = 1 + 2; output a; }`)

	out, _, err := runCLI(t, "-dopt", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "output 3") {
		t.Errorf("optimizer did not fold, dump:\n%s", out)
	}
}

func TestDumpCFG(t *testing.T) {
	path := writeSource(t, `int main() { if (1) output 1; output 2; }`)

	out, _, err := runCLI(t, "-dcfg", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"Basic Blocks", "Successors:", "Predecessors:"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in dump:\n%s", want, out)
		}
	}
}

func TestDumpParse(t *testing.T) {
	path := writeSource(t, `int main() { output 1; }`)

	out, _, err := runCLI(t, "-dparse", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "int main()") {
		t.Errorf("missing function header in dump:\n%s", out)
	}
}

func TestMissingFile(t *testing.T) {
	_, errOut, err := runCLI(t, "no-such-file.c")
	if err == nil {
		t.Fatal("expected an error for a missing input file")
	}
	if !strings.Contains(errOut, "cannot open") {
		t.Errorf("diagnostic = %q", errOut)
	}
}

func TestParseErrorExits(t *testing.T) {
	path := writeSource(t, `int main( { }`)

	_, errOut, err := runCLI(t, path)
	if err == nil {
		t.Fatal("expected an error for invalid source")
	}
	if errOut == "" {
		t.Error("expected diagnostics on stderr")
	}
}

func TestNormalizeFlags(t *testing.T) {
	got := normalizeFlags([]string{"-dtac", "file.c", "-x"})
	if got[0] != "--dtac" || got[1] != "file.c" || got[2] != "-x" {
		t.Errorf("normalizeFlags = %v", got)
	}
}
