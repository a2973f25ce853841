package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func newLoginCommand() *Command {
	cmd := &Command{
		Name:        "login",
		Description: "Log in and save an access token",
		Flags:       flag.NewFlagSet("login", flag.ContinueOnError),
	}
	opts := addConnectionFlags(cmd.Flags)
	user := cmd.Flags.String("user", "", "user name")
	password := cmd.Flags.String("password", os.Getenv("ADMINKIT_PASSWORD"), "password (default: read from stdin)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *user == "" {
			return errors.New("-user is required")
		}
		pass := *password
		if pass == "" {
			var err error
			if pass, err = readPassword(); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		token, err := passwordLogin(ctx, opts.server, opts.prefix, *user, pass)
		if err != nil {
			return err
		}
		if err := saveSession(&session{
			Server:      opts.server,
			User:        *user,
			AccessToken: token.AccessToken,
			Expiry:      token.Expiry,
		}); err != nil {
			return err
		}

		fmt.Fprintf(output, "Logged in to %s as %s", opts.server, *user)
		if !token.Expiry.IsZero() {
			fmt.Fprintf(output, " (expires %s)", token.Expiry.Local().Format(time.RFC3339))
		}
		fmt.Fprintln(output)
		return nil
	}
	return cmd
}

func newLogoutCommand() *Command {
	return &Command{
		Name:        "logout",
		Description: "Remove the saved access token",
		Flags:       flag.NewFlagSet("logout", flag.ContinueOnError),
		Run: func(args []string) error {
			if err := removeSession(); err != nil {
				return err
			}
			fmt.Fprintln(output, "Logged out")
			return nil
		},
	}
}

// stdin is where passwords are read from when not given as a flag.
var stdin = os.Stdin

func readPassword() (string, error) {
	fmt.Fprint(output, "Password: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
