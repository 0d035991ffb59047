package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// getSimpleText, getMultiline and getPassword are swapped in tests.
var (
	getSimpleText = GetSimpleText
	getMultiline  = GetMultiline
	getPassword   = GetPassword
)

func (a *App) isLoggedIn() bool {
	return a.authService.Session().Active()
}

func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	bio, err := getMultiline(a.reader, "Tell something about yourself (optional)", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()
	if err := a.authService.Register(ctx, userName, email, password, bio); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered and signed in as %s\n", email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.requestContext(ctx)
	defer cancel()
	if err := a.authService.Login(ctx, email, password); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Signed in as %s\n", email)
	return nil
}

func (a *App) Self(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	me, err := a.authService.Self(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "id:        %s\nuser name: %s\nemail:     %s\n", me.ID, me.UserName, me.Email)
	if me.Bio != "" {
		fmt.Fprintf(a.out, "bio:       %s\n", me.Bio)
	}
	if me.ProfileImageURL != "" {
		fmt.Fprintf(a.out, "image:     %s\n", me.ProfileImageURL)
	}
	fmt.Fprintf(a.out, "created:   %s\n", me.CreatedAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.authService.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
