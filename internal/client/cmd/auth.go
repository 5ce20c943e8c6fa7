package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/session"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

const minPasswordLength = 6

type authClient struct {
	opts *rootOptions

	username string
	email    string
	fullName string
}

func newAuthCmd(o *rootOptions) *cobra.Command {
	a := &authClient{opts: o}
	cmd := &cobra.Command{Use: "auth", Short: "Authentication commands"}

	register := &cobra.Command{Use: "register", Short: "Create an account and log in", RunE: a.register}
	register.Flags().StringVar(&a.fullName, "full-name", "", "Full name")
	register.Flags().StringVar(&a.username, "username", "", "Username")
	register.Flags().StringVar(&a.email, "email", "", "Email")

	login := &cobra.Command{Use: "login", Short: "Log in and store the credential", RunE: a.login}
	login.Flags().StringVar(&a.username, "username", "", "Username")

	cmd.AddCommand(register, login)
	cmd.AddCommand(&cobra.Command{Use: "logout", Short: "Forget the stored credential", RunE: a.logout})
	cmd.AddCommand(&cobra.Command{Use: "status", Short: "Show the current session", RunE: a.status})
	return cmd
}

func (a *authClient) register(cmd *cobra.Command, args []string) error {
	d, err := a.opts.deps(cmd)
	if err != nil {
		return err
	}
	p := d.Prompts
	req := models.RegisterRequest{}
	if req.FullName, err = p.valueOr(a.fullName, "Full name: "); err != nil {
		return err
	}
	if req.Username, err = p.valueOr(a.username, "Username: "); err != nil {
		return err
	}
	if req.Email, err = p.valueOr(a.email, "Email: "); err != nil {
		return err
	}
	if req.Password, err = p.secret("Password: "); err != nil {
		return err
	}
	confirm, err := p.secret("Confirm password: ")
	if err != nil {
		return err
	}
	switch {
	case req.FullName == "" || req.Username == "" || req.Email == "":
		return errors.New("full name, username and email are required")
	case len(req.Password) < minPasswordLength:
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	case req.Password != confirm:
		return errors.New("passwords do not match")
	}

	if _, err := d.Client.Register(cmd.Context(), req); err != nil {
		return err
	}
	user, err := establish(cmd, d, req.Username, req.Password)
	if err != nil {
		return err
	}
	d.Out.Success(fmt.Sprintf("Registered and logged in as %s", user.Username))
	return nil
}

func (a *authClient) login(cmd *cobra.Command, args []string) error {
	d, err := a.opts.deps(cmd)
	if err != nil {
		return err
	}
	username, err := d.Prompts.valueOr(a.username, "Username: ")
	if err != nil {
		return err
	}
	password, err := d.Prompts.secret("Password: ")
	if err != nil {
		return err
	}
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	user, err := establish(cmd, d, username, password)
	if err != nil {
		return err
	}
	d.Out.Success(fmt.Sprintf("Logged in as %s", user.Username))
	return nil
}

// establish logs in and installs the credential with the caller's profile.
func establish(cmd *cobra.Command, d *Dependencies, username, password string) (models.User, error) {
	tok, err := d.Client.Login(cmd.Context(), username, password)
	if err != nil {
		return models.User{}, err
	}
	cred := session.Credential{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if err := d.Guard.Establish(cred, tok.Data); err != nil {
		return models.User{}, err
	}
	if tok.Data != nil {
		return *tok.Data, nil
	}
	user, err := d.Client.Profile(cmd.Context())
	if err != nil {
		return models.User{}, err
	}
	return user, d.Guard.UpdateProfile(user)
}

func (a *authClient) logout(cmd *cobra.Command, args []string) error {
	d, err := a.opts.deps(cmd)
	if err != nil {
		return err
	}
	if err := d.Store.Load(); err != nil {
		d.Logger.Printf("WARN: reading credentials: %v", err)
	}
	if err := d.Guard.Logout(); err != nil {
		return err
	}
	d.Out.Success("Logged out")
	return nil
}

func (a *authClient) status(cmd *cobra.Command, args []string) error {
	d, err := a.opts.deps(cmd)
	if err != nil {
		return err
	}
	ok, err := d.Guard.Bootstrap(cmd.Context(), d.Client.Profile)
	if err != nil {
		return err
	}
	if !ok {
		d.Out.Info("Not logged in")
		return nil
	}
	u, _ := d.Store.Profile()
	c, _ := d.Store.Current()
	exp, _ := c.ExpiresAt()
	d.Out.Success(fmt.Sprintf("Logged in as %s (%s), session valid until %s", u.Username, u.FullName, exp.Local().Format("2006-01-02 15:04")))
	d.Out.Info("Server: " + d.Client.BaseURL())
	return nil
}
