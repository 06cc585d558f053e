package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/user"
)

// createUser updates or creates an active user.User
func (cli *commandLine) createUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrSvc.GetByUsernameOrEmail(ctx, email)
	}
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{Roles: []string{}}
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	usr.Username = uname
	usr.Email = email
	usr.IsActive = true
	if isAdmin {
		usr.Roles = append([]string{}, user.AllRoles...)
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrSvc.Save(ctx, usr)
	return err
}
