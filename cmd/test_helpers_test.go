package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// captureOutput runs f with os.Stdout redirected to a pipe and returns what
// it printed.
func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	f()

	w.Close()
	os.Stdout = old
	out := <-done
	r.Close()
	return out
}

func assertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// assertErrorFormat checks for the "warpcas: cmd[action]:" runtime error
// prefix.
func assertErrorFormat(t *testing.T, output, cmd, action string) {
	t.Helper()
	assertContains(t, output, "warpcas: "+cmd+"["+action+"]:")
}
