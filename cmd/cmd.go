package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/warpdl/warpcas/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config, c",
		Usage: "path to the YAML config file (default: $WARPCAS_CONFIG or the user config dir)",
	},
}

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "warpcas",
		HelpName:              "warpcas",
		Usage:                 "Campus CAS and WebVPN login gateway.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "warpcas <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Flags:                 globalFlags,
		Commands: []cli.Command{
			{
				Name:               "serve",
				Aliases:            []string{"s"},
				Usage:              "run the login daemon",
				Description:        ServeDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             serve,
				Flags:              serveFlags,
			},
			{
				Name:                   "login",
				Aliases:                []string{"l"},
				Usage:                  "log into a portal and print the session",
				Description:            LoginDescription,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 login,
				UseShortOptionHandling: true,
				Flags:                  loginFlags,
			},
			{
				Name:               "captcha",
				Usage:              "check whether an id must solve a captcha",
				Description:        CaptchaDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             captcha,
				Flags:              captchaFlags,
			},
			{
				Name:               "portals",
				Aliases:            []string{"p"},
				Usage:              "list the configured portals",
				Description:        PortalsDescription,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             portals,
			},
			{
				Name:        "blacklist",
				Aliases:     []string{"b"},
				Usage:       "manage ids refused by the daemon",
				Description: BlacklistDescription,
				Subcommands: []cli.Command{
					{
						Name:      "add",
						Usage:     "refuse logins for an id",
						ArgsUsage: "<id> [reason]",
						Action:    blacklistAdd,
					},
					{
						Name:      "remove",
						Aliases:   []string{"rm"},
						Usage:     "allow an id again",
						ArgsUsage: "<id>",
						Action:    blacklistRemove,
					},
					{
						Name:   "list",
						Usage:  "show refused ids",
						Action: blacklistList,
					},
				},
			},
			{
				Name:               "history",
				Usage:              "show recent login attempts",
				Description:        HistoryDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             history,
				Flags:              historyFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of warpcas",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
