package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"
	"github.com/warpdl/warpcas/cmd/common"
	"github.com/warpdl/warpcas/internal/store"
)

func withStore(ctx *cli.Context, cmd string, f func(*store.Store) error) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "load_config", err)
		return nil
	}
	s, err := openStore(cfg)
	if err != nil {
		common.PrintRuntimeErr(ctx, cmd, "open_store", err)
		return nil
	}
	defer s.Close()
	return f(s)
}

func blacklistAdd(ctx *cli.Context) error {
	id := strings.TrimSpace(ctx.Args().First())
	if id == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no id provided"))
	}
	reason := strings.Join(ctx.Args().Tail(), " ")
	return withStore(ctx, "blacklist", func(s *store.Store) error {
		if err := s.Block(context.Background(), id, reason); err != nil {
			common.PrintRuntimeErr(ctx, "blacklist", "add", err)
			return nil
		}
		fmt.Printf("warpcas: %s blacklisted\n", id)
		return nil
	})
}

func blacklistRemove(ctx *cli.Context) error {
	id := strings.TrimSpace(ctx.Args().First())
	if id == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no id provided"))
	}
	return withStore(ctx, "blacklist", func(s *store.Store) error {
		err := s.Unblock(context.Background(), id)
		switch {
		case errors.Is(err, store.ErrNotBlocked):
			fmt.Printf("warpcas: %s is not blacklisted\n", id)
		case err != nil:
			common.PrintRuntimeErr(ctx, "blacklist", "remove", err)
		default:
			fmt.Printf("warpcas: %s removed from the blacklist\n", id)
		}
		return nil
	})
}

func blacklistList(ctx *cli.Context) error {
	return withStore(ctx, "blacklist", func(s *store.Store) error {
		entries, err := s.Blacklist(context.Background())
		if err != nil {
			common.PrintRuntimeErr(ctx, "blacklist", "list", err)
			return nil
		}
		if len(entries) == 0 {
			fmt.Println("warpcas: blacklist is empty")
			return nil
		}
		txt := "Blacklisted ids:"
		txt += "\n\n------------------------------------------------------------"
		txt += "\n|       Id       |         Reason         |      Since     |"
		txt += "\n|----------------|------------------------|----------------|"
		for _, e := range entries {
			txt += fmt.Sprintf("\n|%s|%s|%s|",
				common.Beaut(e.ID, 16),
				common.Beaut(e.Reason, 24),
				common.Beaut(e.Created.Local().Format("2006-01-02 15:04"), 16),
			)
		}
		txt += "\n------------------------------------------------------------"
		fmt.Println(txt)
		return nil
	})
}
