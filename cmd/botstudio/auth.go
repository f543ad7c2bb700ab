package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gwi.com/botstudio/internal/models"
)

// prompt reads one line from in when value is empty.
func prompt(in io.Reader, out io.Writer, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(out, labelStyle.Render(label+": "))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email, err = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Email", email); err != nil {
				return err
			}
			if password, err = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Password", password); err != nil {
				return err
			}
			user, err := a.session.Login(cmd.Context(), models.Credentials{Email: email, Password: password})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Welcome back, "+user.Name+"!"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	var form models.SignupForm
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			if form.Name, err = prompt(in, out, "Name", form.Name); err != nil {
				return err
			}
			if form.Email, err = prompt(in, out, "Email", form.Email); err != nil {
				return err
			}
			if form.Password, err = prompt(in, out, "Password", form.Password); err != nil {
				return err
			}
			user, err := a.session.Signup(cmd.Context(), form)
			if err != nil {
				return fmt.Errorf("signup failed: %w", err)
			}
			fmt.Fprintln(out, successStyle.Render("Account created. Welcome, "+user.Name+"!"))
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "full name")
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&form.Company, "company", "", "company name")
	cmd.Flags().StringVar(&form.Role, "role", "", "job role")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.session.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Logged out."))
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "whoami",
		Short:             "Show the logged in account",
		PersistentPreRunE: a.loggedIn,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user := a.session.User()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(user.Name))
			renderField(out, "Email", user.Email)
			if user.Company != "" {
				renderField(out, "Company", user.Company)
			}
			renderField(out, "Projects", fmt.Sprint(a.session.Projects.Len()))
			renderField(out, "Documents", fmt.Sprint(a.session.DataSources.Len()))
			if err := a.client.Health(cmd.Context()); err != nil {
				renderField(out, "Backend", errorStyle.Render("unreachable ("+err.Error()+")"))
			} else {
				renderField(out, "Backend", successStyle.Render("reachable"))
			}
			return nil
		},
	}
}
