package main

import (
	"errors"
	"os"
	"testing"
)

func TestMainVersion(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"warpcas", "version"}
	defer func() { os.Args = oldArgs }()
	oldExit := osExit
	osExit = func(code int) {
		if code != 0 {
			t.Fatalf("unexpected exit code: %d", code)
		}
	}
	defer func() { osExit = oldExit }()
	main()
}

func TestRunMain(t *testing.T) {
	if code := runMain([]string{"warpcas"}, func([]string) error { return errors.New("boom") }); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if code := runMain([]string{"warpcas"}, func([]string) error { return nil }); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}
