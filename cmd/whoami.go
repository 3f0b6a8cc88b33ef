package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/xeptore/ymdl/ymusic"
)

func runWhoami(cliCtx *cli.Context) error {
	s, err := newSession(cliCtx, sessionOptions{requireToken: true, logToFile: false})
	if nil != err {
		return err
	}
	defer s.Close()

	account, err := ymusic.NewClient(s.token, s.logger).Authenticate(cliCtx.Context)
	if nil != err {
		if errors.Is(err, context.Canceled) {
			return err
		}
		kind := ymusic.KindOf(err)
		fmt.Fprintf(os.Stdout, "%s %s\n", failureStyle.Render(kind.String()), kind.Guidance())
		return errRunFailed
	}

	name := account.DisplayName
	if name == "" {
		name = account.Login
	}
	fmt.Fprintf(os.Stdout, "%s %s\n", labelStyle.Render(name), successStyle.Render("authenticated"))
	fmt.Fprintf(os.Stdout, "  %s %s\n", mutedStyle.Render("login:"), account.Login)
	fmt.Fprintf(os.Stdout, "  %s %s\n", mutedStyle.Render("uid:"), account.UID)
	return nil
}
