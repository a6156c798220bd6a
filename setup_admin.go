package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"staffdesk/config"
	"staffdesk/internal/bootstrap"
	"staffdesk/internal/db"
	"staffdesk/internal/logs"
	"staffdesk/internal/repo"
)

var adminFlags struct {
	username      string
	email         string
	passwordStdin bool
	reset         bool
}

var setupAdminCmd = &cobra.Command{
	Use:   "setup-admin",
	Short: "Create the first administrator account",
	Long: `Create the first administrator. Refuses when any user already exists.

The password is read from the terminal, or from stdin with --password-stdin.
The account must change its password at first login.

With --reset the password of an existing admin is replaced instead, which is
the way to repair an admin whose stored password hash is malformed.`,
	RunE: runSetupAdmin,
}

func init() {
	f := setupAdminCmd.Flags()
	f.StringVar(&adminFlags.username, "username", "admin", "admin username")
	f.StringVar(&adminFlags.email, "email", "", "admin email address")
	f.BoolVar(&adminFlags.passwordStdin, "password-stdin", false, "read the password from stdin")
	f.BoolVar(&adminFlags.reset, "reset", false, "reset the password of an existing admin")
}

func runSetupAdmin(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(d); err != nil {
		return err
	}

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), adminFlags.passwordStdin)
	if err != nil {
		return err
	}
	setup := bootstrap.New(repo.NewUserStore(d), repo.NewTransactor(d))
	a := bootstrap.Admin{Username: adminFlags.username, Password: password, Email: adminFlags.email}

	if adminFlags.reset {
		if err := setup.ResetPassword(cmd.Context(), a); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "password reset for %q; a new password is required at next login\n", a.Username)
		return nil
	}
	u, err := setup.CreateAdmin(cmd.Context(), a)
	if errors.Is(err, bootstrap.ErrUsersExist) {
		return errors.New("users already exist; use --reset to repair an existing admin")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admin %q created; a new password is required at first login\n", u.Username)
	return nil
}

func readPassword(in io.Reader, prompt io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; use --password-stdin")
	}
	fmt.Fprint(prompt, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	fmt.Fprint(prompt, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
