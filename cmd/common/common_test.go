package common

import (
	"errors"
	"flag"
	"io"
	"testing"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
)

func newTestContext() *cli.Context {
	app := cli.NewApp()
	app.Name = "warpcas"
	app.HelpName = "warpcas"
	app.Version = "test"
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: "login"}
	return ctx
}

func stubAppHelp(t *testing.T) *bool {
	t.Helper()
	called := false
	orig := showAppHelpAndExit
	showAppHelpAndExit = func(*cli.Context, int) { called = true }
	t.Cleanup(func() { showAppHelpAndExit = orig })
	return &called
}

func stubCmdHelp(t *testing.T, err error) *string {
	t.Helper()
	var shown string
	orig := showCommandHelp
	showCommandHelp = func(_ *cli.Context, name string) error {
		shown = name
		return err
	}
	t.Cleanup(func() { showCommandHelp = orig })
	return &shown
}

func TestInitStepBar(t *testing.T) {
	p := mpb.New(mpb.WithOutput(io.Discard))
	bar := InitStepBar(p, "oa: ", 3, func() string { return "fetch_login_page" })
	if bar == nil {
		t.Fatal("expected a bar")
	}
	for i := 0; i < 3; i++ {
		bar.Increment()
	}
	p.Wait()
	if !bar.Completed() {
		t.Error("bar not completed after every step")
	}
}

func TestBeaut(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"oa", 4, " oa "},
		{"oa", 5, " oa  "},
		{"library", 7, "library"},
		{"graduate-school", 8, "gradu..."},
		{"abcdef", 2, "ab"},
	}
	for _, c := range cases {
		if got := Beaut(c.in, c.n); got != c.want {
			t.Errorf("Beaut(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}

func TestPrintRuntimeErr(t *testing.T) {
	PrintRuntimeErr(nil, "login", "auth", nil)
	PrintRuntimeErr(newTestContext(), "login", "auth", errors.New("boom"))
}

func TestPrintErrWithHelp(t *testing.T) {
	called := stubAppHelp(t)
	if err := PrintErrWithHelp(newTestContext(), errors.New("oops")); err != nil {
		t.Fatalf("PrintErrWithHelp: %v", err)
	}
	if !*called {
		t.Fatal("expected app help")
	}
}

func TestPrintErrWithHelp_HelpRequested(t *testing.T) {
	called := stubAppHelp(t)
	if err := PrintErrWithHelp(newTestContext(), errors.New("flag: help requested")); err != nil {
		t.Fatalf("PrintErrWithHelp: %v", err)
	}
	if !*called {
		t.Fatal("help request did not show the app help")
	}
}

func TestPrintErrWithHelp_Version(t *testing.T) {
	old := VersionCmdStr
	VersionCmdStr = "warpcas v0"
	defer func() { VersionCmdStr = old }()
	called := stubAppHelp(t)

	if err := PrintErrWithHelp(newTestContext(), errors.New("flag provided but not defined: -version")); err != nil {
		t.Fatalf("PrintErrWithHelp: %v", err)
	}
	if *called {
		t.Error("version flag fell through to help")
	}
}

func TestPrintErrWithCmdHelp(t *testing.T) {
	shown := stubCmdHelp(t, nil)
	if err := PrintErrWithCmdHelp(newTestContext(), errors.New("oops")); err != nil {
		t.Fatalf("PrintErrWithCmdHelp: %v", err)
	}
	if *shown != "login" {
		t.Errorf("help shown for %q", *shown)
	}

	stubCmdHelp(t, errors.New("boom"))
	if err := PrintErrWithCmdHelp(newTestContext(), errors.New("oops")); err != nil {
		t.Fatalf("PrintErrWithCmdHelp with failing help: %v", err)
	}
}

func TestUsageErrorCallback(t *testing.T) {
	shown := stubCmdHelp(t, nil)
	if err := UsageErrorCallback(newTestContext(), errors.New("oops"), false); err != nil {
		t.Fatalf("UsageErrorCallback: %v", err)
	}
	if *shown != "login" {
		t.Error("command usage error did not show command help")
	}

	ctx := newTestContext()
	ctx.Command = cli.Command{}
	called := stubAppHelp(t)
	if err := UsageErrorCallback(ctx, errors.New("oops"), false); err != nil {
		t.Fatalf("UsageErrorCallback: %v", err)
	}
	if !*called {
		t.Error("app usage error did not show app help")
	}
}

func TestHelp(t *testing.T) {
	called := stubAppHelp(t)
	if err := Help(newTestContext()); err != nil {
		t.Fatalf("Help: %v", err)
	}
	if !*called {
		t.Fatal("expected app help")
	}

	app := cli.NewApp()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	_ = set.Parse([]string{"portals"})
	ctx := cli.NewContext(app, set, nil)
	shown := stubCmdHelp(t, nil)
	if err := Help(ctx); err != nil {
		t.Fatalf("Help portals: %v", err)
	}
	if *shown != "portals" {
		t.Errorf("help shown for %q", *shown)
	}

	stubCmdHelp(t, errors.New("no such command"))
	if err := Help(ctx); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestGetVersion(t *testing.T) {
	old := VersionCmdStr
	VersionCmdStr = "warpcas 1.0.0"
	defer func() { VersionCmdStr = old }()
	if err := GetVersion(newTestContext()); err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
}

func TestPrintErrWithHelp_UnknownFlagNotVersion(t *testing.T) {
	called := stubAppHelp(t)
	if err := PrintErrWithHelp(newTestContext(), errors.New("flag provided but not defined: -vpnx")); err != nil {
		t.Fatalf("PrintErrWithHelp: %v", err)
	}
	if !*called {
		t.Error("unknown flag starting with -v was treated as a version request")
	}
}
