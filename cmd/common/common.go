// Package common holds the helpers shared by the warpcas commands: help and
// version output, runtime error printing, the login progress bar and table
// padding.
package common

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// VersionCmdStr is printed by the version command. Execute fills it in.
var VersionCmdStr string

var (
	showAppHelpAndExit = cli.ShowAppHelpAndExit
	showCommandHelp    = cli.ShowCommandHelp
)

// InitStepBar adds a bar that advances once per login step. current is
// rendered next to the bar and should name the step in progress.
func InitStepBar(p *mpb.Progress, prefix string, total int64, current func() string) *mpb.Bar {
	name := prefix + "Logging in"
	return p.New(total,
		mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 4}), "Done"),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string { return current() }, decor.WC{W: 20, C: decor.DindentRight}),
		),
	)
}

// Help shows the help of the command named by the first argument, or the
// application help when there is none.
func Help(ctx *cli.Context) error {
	switch name := ctx.Args().First(); name {
	case "", "help":
		fmt.Printf("%s %s\n", ctx.App.Name, ctx.App.Version)
		showAppHelpAndExit(ctx, 0)
		return nil
	default:
		return showCommandHelp(ctx, name)
	}
}

func GetVersion(*cli.Context) error {
	fmt.Println(VersionCmdStr)
	return nil
}

// PrintRuntimeErr prints err as "<app>: <cmd>[<action>]: <err>". ctx may be
// nil, in which case os.Args[0] names the app.
func PrintRuntimeErr(ctx *cli.Context, cmd, action string, err error) {
	if err == nil {
		return
	}
	name := os.Args[0]
	if ctx != nil {
		name = ctx.App.HelpName
	}
	fmt.Printf("%s: %s[%s]: %v\n", name, cmd, action, err)
}

// PrintErrWithCmdHelp prints err followed by the current command's help.
func PrintErrWithCmdHelp(ctx *cli.Context, err error) error {
	return usageErr(ctx, err, func() {
		if err := showCommandHelp(ctx, ctx.Command.Name); err != nil {
			fmt.Println(err)
		}
	})
}

// PrintErrWithHelp prints err followed by the application help, then exits
// with status 1.
func PrintErrWithHelp(ctx *cli.Context, err error) error {
	return usageErr(ctx, err, func() { showAppHelpAndExit(ctx, 1) })
}

// undefinedFlag returns the flag named by a "flag provided but not defined"
// parse error.
func undefinedFlag(err error) string {
	_, name, _ := strings.Cut(err.Error(), "flag provided but not defined: ")
	return name
}

func usageErr(ctx *cli.Context, err error, showHelp func()) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, flag.ErrHelp) || err.Error() == flag.ErrHelp.Error() {
		return Help(ctx)
	}
	switch undefinedFlag(err) {
	case "-v", "-version", "--version":
		return GetVersion(ctx)
	}
	fmt.Printf("%s: %v\n\n", ctx.App.HelpName, err)
	showHelp()
	return nil
}

// UsageErrorCallback is the OnUsageError hook of the app and its commands.
func UsageErrorCallback(ctx *cli.Context, err error, _ bool) error {
	if ctx.Command.Name != "" {
		return PrintErrWithCmdHelp(ctx, err)
	}
	return PrintErrWithHelp(ctx, err)
}

// Beaut centers s in a column n wide. Longer strings are cut with "...".
func Beaut(s string, n int) string {
	if len(s) > n {
		if n <= 3 {
			return s[:n]
		}
		return s[:n-3] + "..."
	}
	pad := n - len(s)
	return strings.Repeat(" ", pad/2) + s + strings.Repeat(" ", pad-pad/2)
}
