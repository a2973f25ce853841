package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

// output receives everything commands print.
var output io.Writer = os.Stdout

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "adminkit",
		Description: "adminkit - admin API client",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("adminkit", flag.ExitOnError),
	}

	root.Subcommands["login"] = newLoginCommand()
	root.Subcommands["logout"] = newLogoutCommand()
	root.Subcommands["users"] = newUsersCommand()
	root.Subcommands["roles"] = newRolesCommand()
	root.Subcommands["resources"] = newResourcesCommand()
	root.Subcommands["todos"] = newTodosCommand()

	return root
}

// Execute runs the command with the process arguments.
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs dispatches args to a subcommand.
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		if subcmd.Run == nil {
			return subcmd.ExecuteArgs(args[1:])
		}
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(output, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(output, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(output, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// group builds a command whose first argument selects a subcommand.
func group(name, description string, subs ...*Command) *Command {
	cmd := &Command{
		Name:        name,
		Description: description,
		Subcommands: make(map[string]*Command, len(subs)),
		Flags:       flag.NewFlagSet(name, flag.ContinueOnError),
	}
	for _, sub := range subs {
		cmd.Subcommands[sub.Name] = sub
	}
	return cmd
}
