package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
	"github.com/warpdl/warpcas/cmd/common"
	"github.com/warpdl/warpcas/internal/store"
)

var (
	historyID    string
	historyLimit int

	historyFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "id, i",
			Usage:       "only show attempts of this id",
			Destination: &historyID,
		},
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "number of attempts to show",
			Value:       20,
			Destination: &historyLimit,
		},
	}
)

func history(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	return withStore(ctx, "history", func(s *store.Store) error {
		recs, err := s.RecentLogins(context.Background(), historyID, historyLimit)
		if err != nil {
			common.PrintRuntimeErr(ctx, "history", "query", err)
			return nil
		}
		if len(recs) == 0 {
			fmt.Println("warpcas: no login attempts recorded")
			return nil
		}
		txt := "Recent login attempts:"
		txt += "\n\n-------------------------------------------------------------------"
		txt += "\n|       When       |       Id       |  Portal  |     Outcome     |"
		txt += "\n|------------------|----------------|----------|-----------------|"
		for _, r := range recs {
			txt += fmt.Sprintf("\n|%s|%s|%s|%s|",
				common.Beaut(r.Time.Local().Format("01-02 15:04:05"), 18),
				common.Beaut(r.ID, 16),
				common.Beaut(r.Portal, 10),
				common.Beaut(r.Outcome, 17),
			)
		}
		txt += "\n-------------------------------------------------------------------"
		fmt.Println(txt)
		return nil
	})
}
