package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Todo mirrors the to-do JSON returned by the API.
type Todo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

func newTodosCommand() *Command {
	list := &Command{Name: "list", Description: "List your to-do items", Flags: flag.NewFlagSet("todos list", flag.ContinueOnError)}
	listOpts := addConnectionFlags(list.Flags)
	page := list.Flags.Int("page", 1, "page number")
	size := list.Flags.Int("page-size", 20, "page size")
	list.Run = func(args []string) error {
		if err := list.Flags.Parse(args); err != nil {
			return err
		}
		c, err := listOpts.client()
		if err != nil {
			return err
		}
		var res dataPage[Todo]
		if err := c.call(context.Background(), "GET", "/todos", pageQuery(*page, *size), nil, &res); err != nil {
			return err
		}
		tw := newTable("ID", "DONE", "TITLE")
		for _, t := range res.Data {
			done := " "
			if t.Completed {
				done = "x"
			}
			tw.row(t.ID, done, t.Title)
		}
		tw.flush()
		printPage(res.Page)
		return nil
	}

	add := &Command{Name: "add", Description: "Add a to-do item: add <title>", Flags: flag.NewFlagSet("todos add", flag.ContinueOnError)}
	addOpts := addConnectionFlags(add.Flags)
	description := add.Flags.String("description", "", "item description")
	add.Run = func(args []string) error {
		if err := add.Flags.Parse(args); err != nil {
			return err
		}
		title := strings.Join(add.Flags.Args(), " ")
		if title == "" {
			return errors.New("a title is required")
		}
		c, err := addOpts.client()
		if err != nil {
			return err
		}
		var created Todo
		body := Todo{Title: title, Description: *description}
		if err := c.call(context.Background(), "POST", "/todos", nil, body, &created); err != nil {
			return err
		}
		fmt.Fprintf(output, "Added #%d %s\n", created.ID, created.Title)
		return nil
	}

	done := &Command{Name: "done", Description: "Mark an item completed: done <id>", Flags: flag.NewFlagSet("todos done", flag.ContinueOnError)}
	doneOpts := addConnectionFlags(done.Flags)
	done.Run = func(args []string) error {
		if err := done.Flags.Parse(args); err != nil {
			return err
		}
		id, err := idArg(done.Flags)
		if err != nil {
			return err
		}
		c, err := doneOpts.client()
		if err != nil {
			return err
		}

		ctx := context.Background()
		path := fmt.Sprintf("/todos/%d", id)
		var t Todo
		if err := c.call(ctx, "GET", path, nil, nil, &t); err != nil {
			return err
		}
		t.Completed = true
		if err := c.call(ctx, "PUT", path, nil, t, &t); err != nil {
			return err
		}
		fmt.Fprintf(output, "Completed #%d %s\n", t.ID, t.Title)
		return nil
	}

	rm := &Command{Name: "rm", Description: "Delete an item: rm <id>", Flags: flag.NewFlagSet("todos rm", flag.ContinueOnError)}
	rmOpts := addConnectionFlags(rm.Flags)
	rm.Run = func(args []string) error {
		if err := rm.Flags.Parse(args); err != nil {
			return err
		}
		id, err := idArg(rm.Flags)
		if err != nil {
			return err
		}
		c, err := rmOpts.client()
		if err != nil {
			return err
		}
		if err := c.call(context.Background(), "DELETE", fmt.Sprintf("/todos/%d", id), nil, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(output, "Deleted #%d\n", id)
		return nil
	}

	return group("todos", "Manage your to-do items", list, add, done, rm)
}
