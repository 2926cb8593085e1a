package forum

import (
	"context"
	"errors"
	"fmt"
)

var ErrLoginNotConfigured = errors.New("login selectors are not configured")

// Login signs into the forum through its login form. The optional login
// button opens the form first, the page is reloaded afterwards so the
// navigator sees the signed in document.
func Login(ctx context.Context, nav *Navigator, forumUrl string, selectors Selectors, creds Credentials) error {
	missing := selectors.Missing(SEL_LOGIN_USERNAME, SEL_LOGIN_PASSWORD, SEL_LOGIN_SUBMIT)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrLoginNotConfigured, missing)
	}

	err := nav.Navigate(ctx, forumUrl)
	if err != nil {
		return err
	}

	if selectors.Get(SEL_LOGIN_BUTTON) != "" {
		clicked, err := nav.page.Click(ctx, selectors.Get(SEL_LOGIN_BUTTON))
		if err != nil {
			return fmt.Errorf("open login form: %w", err)
		}
		if !clicked {
			return fmt.Errorf("open login form: nothing matches %q", selectors.Get(SEL_LOGIN_BUTTON))
		}
		err = nav.settle(ctx)
		if err != nil {
			return err
		}
	}

	err = nav.page.Fill(ctx, selectors.Get(SEL_LOGIN_USERNAME), creds.Username)
	if err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	err = nav.page.Fill(ctx, selectors.Get(SEL_LOGIN_PASSWORD), creds.Password)
	if err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	clicked, err := nav.page.Click(ctx, selectors.Get(SEL_LOGIN_SUBMIT))
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if !clicked {
		return fmt.Errorf("submit login: nothing matches %q", selectors.Get(SEL_LOGIN_SUBMIT))
	}
	err = nav.settle(ctx)
	if err != nil {
		return err
	}

	nav.tel.ReportDebug("logged in", forumUrl, creds.Username)
	return nav.Navigate(ctx, forumUrl)
}
