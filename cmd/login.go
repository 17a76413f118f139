package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync/atomic"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/warpdl/warpcas/cmd/common"
	"github.com/warpdl/warpcas/pkg/casauth"
	"github.com/warpdl/warpcas/pkg/credman"
)

var (
	loginPortal   string
	loginID       string
	loginPassword string
	loginToken    string
	loginVPN      bool
	loginQuiet    bool
	loginJar      string

	loginFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "portal, p",
			Usage:       "portal to log into (see \"warpcas portals\")",
			Destination: &loginPortal,
		},
		cli.StringFlag{
			Name:        "id, i",
			Usage:       "student or staff id",
			Destination: &loginID,
		},
		cli.StringFlag{
			Name:        "password, w",
			Usage:       "account password",
			EnvVar:      "WARPCAS_PASSWORD",
			Destination: &loginPassword,
		},
		cli.StringFlag{
			Name:        "token, t",
			Usage:       "auth token of a stored session, instead of a password",
			Destination: &loginToken,
		},
		cli.BoolFlag{
			Name:        "vpn",
			Usage:       "log into the WebVPN tunnel itself",
			Destination: &loginVPN,
		},
		cli.StringFlag{
			Name:        "cookie-jar, o",
			Usage:       "also write the session to this Netscape cookie file",
			Destination: &loginJar,
		},
		cli.BoolFlag{
			Name:        "quiet, q",
			Usage:       "do not draw the progress bar",
			Destination: &loginQuiet,
		},
	}
)

var errNoCredentials = errors.New("either --password or --token is required")

// steps a login is expected to go through, for the progress bar total.
const (
	directLoginSteps = 6
	vpnLoginSteps    = 3
)

func login(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	id := strings.TrimSpace(loginID)
	if id == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("--id is required"))
	}
	if loginPassword == "" && loginToken == "" {
		return common.PrintErrWithCmdHelp(ctx, errNoCredentials)
	}
	if !loginVPN && loginPortal == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("--portal or --vpn is required"))
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "login", "load_config", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		common.PrintRuntimeErr(ctx, "login", "validate_config", err)
		return nil
	}
	l := newLogger(cfg)
	defer l.Close()

	vault, err := openVault(cfg)
	if err != nil {
		common.PrintRuntimeErr(ctx, "login", "open_vault", err)
		return nil
	}
	if vault != nil {
		defer vault.Close()
	}
	client, err := newClient(cfg, l, vault)
	if err != nil {
		common.PrintRuntimeErr(ctx, "login", "new_client", err)
		return nil
	}

	creds := casauth.Credentials{ID: id, Password: loginPassword, AuthToken: loginToken}
	var (
		name    string
		service string
		total   int64 = directLoginSteps
		run     func(*casauth.LoginOptions) (*casauth.Session, error)
	)
	if loginVPN {
		ep := client.Endpoints()
		if service, err = ep.VPNBridgeURL(); err != nil {
			common.PrintRuntimeErr(ctx, "login", "vpn_bridge", err)
			return nil
		}
		name, total = "vpn", directLoginSteps+vpnLoginSteps
		run = func(o *casauth.LoginOptions) (*casauth.Session, error) {
			return client.VPNCASLogin(context.Background(), creds, o)
		}
	} else {
		reg, err := cfg.Registry()
		if err != nil {
			common.PrintRuntimeErr(ctx, "login", "portals", err)
			return nil
		}
		a, err := reg.Get(loginPortal)
		if err != nil {
			common.PrintRuntimeErr(ctx, "login", "portal", err)
			return nil
		}
		name, service = a.Name, a.Service
		if a.WebVPN {
			total += directLoginSteps + vpnLoginSteps
		}
		run = func(o *casauth.LoginOptions) (*casauth.Session, error) {
			return a.Login(context.Background(), client, creds, o)
		}
	}

	sess, err := runWithProgress(name, total, run)
	if err != nil {
		printFailure(ctx, casauth.AsFailure(err))
		return nil
	}
	printSession(sess, issueToken(vault, creds, service, sess))
	if loginJar != "" {
		if err := writeCookieJar(loginJar, sess); err != nil {
			common.PrintRuntimeErr(ctx, "login", "cookie_jar", err)
		}
	}
	return nil
}

func writeCookieJar(path string, sess *casauth.Session) error {
	f, err := appFs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := sess.Cookies.WriteNetscape(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// runWithProgress drives a step bar from the login's step handler.
func runWithProgress(name string, total int64, run func(*casauth.LoginOptions) (*casauth.Session, error)) (*casauth.Session, error) {
	if loginQuiet {
		return run(nil)
	}
	var current atomic.Value
	current.Store("")
	p := mpb.New(mpb.WithWidth(40), mpb.WithOutput(logOutput))
	bar := common.InitStepBar(p, name+": ", total, func() string { return current.Load().(string) })
	sess, err := run(&casauth.LoginOptions{
		Handlers: &casauth.Handlers{StepHandler: func(s casauth.Step) {
			current.Store(string(s))
			bar.Increment()
		}},
	})
	if err != nil {
		bar.Abort(false)
	} else {
		bar.SetTotal(-1, true)
	}
	p.Wait()
	return sess, err
}

func issueToken(v *credman.Vault, creds casauth.Credentials, service string, sess *casauth.Session) string {
	if v == nil {
		return ""
	}
	if creds.AuthToken != "" && creds.Password == "" {
		return creds.AuthToken
	}
	tok, err := v.Put(creds.ID, service, sess)
	if err != nil {
		common.PrintRuntimeErr(nil, "login", "store_session", err)
		return ""
	}
	return tok
}

func printSession(sess *casauth.Session, token string) {
	txt := "Logged in."
	txt += "\n\nLocation: " + sess.Location
	if u, err := url.Parse(sess.Location); err == nil && u.Host != "" {
		txt += "\nCookie:   " + sess.Cookies.Header(u)
	}
	if token != "" {
		txt += "\nToken:    " + token
	}
	fmt.Println(txt)
}

func printFailure(ctx *cli.Context, f *casauth.Failure) {
	if f.Type == casauth.NeedCaptcha {
		fmt.Println("Login needs a slider captcha. Solve it through the daemon:")
		fmt.Println("  POST /api/login/<portal> then POST /api/captcha/verify")
		return
	}
	common.PrintRuntimeErr(ctx, "login", string(f.Type), errors.New(f.Msg))
}
