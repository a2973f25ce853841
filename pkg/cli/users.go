package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// User mirrors the user JSON returned by the API.
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Gender     int       `json:"gender"`
	IsActive   int       `json:"is_active"`
	RoleID     *int64    `json:"role_id"`
	CreateTime time.Time `json:"create_time"`
}

// PageMeta mirrors the page metadata of list responses.
type PageMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Pages    int64 `json:"pages"`
}

type usersPage struct {
	Users []User   `json:"users"`
	Page  PageMeta `json:"page"`
}

func pageQuery(page, size int) map[string]string {
	return map[string]string{
		"page":      strconv.Itoa(page),
		"page_size": strconv.Itoa(size),
	}
}

func newUsersCommand() *Command {
	return group("users", "List, show and export users",
		newUsersListCommand(),
		newUsersGetCommand(),
		newUsersExportCommand(),
		newUsersMeCommand(),
	)
}

func newUsersListCommand() *Command {
	cmd := &Command{Name: "list", Description: "List users", Flags: flag.NewFlagSet("users list", flag.ContinueOnError)}
	opts := addConnectionFlags(cmd.Flags)
	page := cmd.Flags.Int("page", 1, "page number")
	size := cmd.Flags.Int("page-size", 10, "page size")
	name := cmd.Flags.String("name", "", "name prefix filter")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		c, err := opts.client()
		if err != nil {
			return err
		}

		query := pageQuery(*page, *size)
		if *name != "" {
			query["name"] = *name
		}
		var res usersPage
		if err := c.call(context.Background(), "GET", "/users", query, nil, &res); err != nil {
			return err
		}

		tw := newTable("ID", "NAME", "EMAIL", "PHONE", "STATE", "CREATED")
		for _, u := range res.Users {
			tw.row(u.ID, u.Name, u.Email, u.Phone, u.IsActive, u.CreateTime.Format(time.DateTime))
		}
		tw.flush()
		printPage(res.Page)
		return nil
	}
	return cmd
}

func newUsersGetCommand() *Command {
	cmd := &Command{Name: "get", Description: "Show one user", Flags: flag.NewFlagSet("users get", flag.ContinueOnError)}
	opts := addConnectionFlags(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		id, err := idArg(cmd.Flags)
		if err != nil {
			return err
		}
		c, err := opts.client()
		if err != nil {
			return err
		}

		var u User
		if err := c.call(context.Background(), "GET", fmt.Sprintf("/users/%d", id), nil, nil, &u); err != nil {
			return err
		}
		printUser(u)
		return nil
	}
	return cmd
}

func newUsersMeCommand() *Command {
	cmd := &Command{Name: "me", Description: "Show the logged in user", Flags: flag.NewFlagSet("users me", flag.ContinueOnError)}
	opts := addConnectionFlags(cmd.Flags)

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		c, err := opts.client()
		if err != nil {
			return err
		}

		var u User
		if err := c.call(context.Background(), "GET", "/users/me", nil, nil, &u); err != nil {
			return err
		}
		printUser(u)
		return nil
	}
	return cmd
}

func newUsersExportCommand() *Command {
	cmd := &Command{Name: "export", Description: "Download users as an xlsx workbook", Flags: flag.NewFlagSet("users export", flag.ContinueOnError)}
	opts := addConnectionFlags(cmd.Flags)
	out := cmd.Flags.String("out", "users.xlsx", "output file")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		c, err := opts.client()
		if err != nil {
			return err
		}

		body, err := c.download(context.Background(), "/users/export")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*out, body, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", *out, err)
		}
		fmt.Fprintf(output, "Wrote %d bytes to %s\n", len(body), *out)
		return nil
	}
	return cmd
}

func printUser(u User) {
	role := "-"
	if u.RoleID != nil {
		role = strconv.FormatInt(*u.RoleID, 10)
	}
	tw := newTable("FIELD", "VALUE")
	tw.row("id", u.ID)
	tw.row("name", u.Name)
	tw.row("email", u.Email)
	tw.row("phone", u.Phone)
	tw.row("state", u.IsActive)
	tw.row("role", role)
	tw.row("created", u.CreateTime.Format(time.DateTime))
	tw.flush()
}

// idArg parses the single positional id argument.
func idArg(fs *flag.FlagSet) (int64, error) {
	if fs.NArg() != 1 {
		return 0, errors.New("exactly one id argument is required")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", fs.Arg(0))
	}
	return id, nil
}
