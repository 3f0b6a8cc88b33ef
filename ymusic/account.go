package ymusic

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/cache"
	"github.com/xeptore/ymdl/config"
)

const accountCacheKey = "status"

type Account struct {
	UID         string
	Login       string
	DisplayName string
}

type accountStatus struct {
	Account struct {
		UID         flexID `json:"uid"`
		Login       string `json:"login"`
		DisplayName string `json:"displayName"`
		FullName    string `json:"fullName"`
	} `json:"account"`
}

// Authenticate checks the token and returns the account it belongs to.
func (c *Client) Authenticate(ctx context.Context) (Account, error) {
	return c.accounts.Fetch(accountCacheKey, cache.DefaultAccountTTL, func() (Account, error) {
		return c.accountStatus(ctx)
	})
}

func (c *Client) accountStatus(ctx context.Context) (Account, error) {
	reqURL := c.endpoint("account", "status")
	flawP := flaw.P{"url": reqURL}

	respBody, err := c.send(ctx, getRequest(reqURL), config.AccountStatusRequestTimeout, c.authorized)
	if nil != err {
		return Account{}, classify(ctx, err, flawP)
	}

	status, err := decodeResult[accountStatus](ctx, respBody)
	if nil != err {
		return Account{}, err
	}

	// Anonymous sessions get a successful response without an account uid.
	if status.Account.UID == "" || status.Account.UID == "0" {
		return Account{}, fmt.Errorf("%w: account status has no uid", ErrUnauthorized)
	}

	account := Account{
		UID:         string(status.Account.UID),
		Login:       status.Account.Login,
		DisplayName: status.Account.DisplayName,
	}
	if account.DisplayName == "" {
		account.DisplayName = status.Account.FullName
	}
	if account.DisplayName == "" {
		account.DisplayName = account.Login
	}
	if account.DisplayName == "" {
		account.DisplayName = "user " + strconv.Quote(account.UID)
	}
	return account, nil
}
