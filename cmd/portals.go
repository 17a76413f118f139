package cmd

import (
	"fmt"

	"github.com/urfave/cli"
	"github.com/warpdl/warpcas/cmd/common"
)

func portals(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "portals", "load_config", err)
		return nil
	}
	reg, err := cfg.Registry()
	if err != nil {
		common.PrintRuntimeErr(ctx, "portals", "registry", err)
		return nil
	}
	list := reg.List()
	if len(list) == 0 {
		fmt.Println("warpcas: no portals configured")
		return nil
	}
	txt := "Configured portals:"
	txt += "\n\n---------------------------------------------------------------"
	txt += "\n|   Name   |        Title         | VPN |       Service        |"
	txt += "\n|----------|----------------------|-----|----------------------|"
	for _, a := range list {
		vpn := "no"
		if a.WebVPN {
			vpn = "yes"
		}
		txt += fmt.Sprintf("\n|%s|%s|%s|%s|",
			common.Beaut(a.Name, 10),
			common.Beaut(a.Title, 22),
			common.Beaut(vpn, 5),
			common.Beaut(a.Service, 22),
		)
	}
	txt += "\n---------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}
