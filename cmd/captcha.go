package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"
	"github.com/warpdl/warpcas/cmd/common"
	"github.com/warpdl/warpcas/pkg/casauth"
)

var (
	captchaVPN bool

	captchaFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "vpn",
			Usage:       "ask the identity provider as reached through the WebVPN",
			Destination: &captchaVPN,
		},
	}
)

func captcha(ctx *cli.Context) error {
	id := strings.TrimSpace(ctx.Args().First())
	if id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if id == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no id provided"))
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "captcha", "load_config", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		common.PrintRuntimeErr(ctx, "captcha", "validate_config", err)
		return nil
	}
	l := newLogger(cfg)
	defer l.Close()
	client, err := newClient(cfg, l, nil)
	if err != nil {
		common.PrintRuntimeErr(ctx, "captcha", "new_client", err)
		return nil
	}
	neg, err := client.Captcha(captchaVPN)
	if err != nil {
		common.PrintRuntimeErr(ctx, "captcha", "negotiator", err)
		return nil
	}
	required, err := neg.CheckCaptchaRequired(context.Background(), casauth.NewCookieStore(), id)
	if err != nil {
		common.PrintRuntimeErr(ctx, "captcha", "check", err)
		return nil
	}
	if required {
		fmt.Printf("%s must solve a captcha before logging in\n", id)
	} else {
		fmt.Printf("%s can log in without a captcha\n", id)
	}
	return nil
}
