package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// Role mirrors the role JSON returned by the API.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Resource mirrors the resource JSON returned by the API.
type Resource struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Level          int    `json:"level"`
	PID            int64  `json:"pid"`
	RequestURL     string `json:"request_url"`
	PermissionCode string `json:"permission_code"`
}

// ResourceNode mirrors one node of the resource tree.
type ResourceNode struct {
	Resource
	Children []*ResourceNode `json:"children"`
}

type dataPage[T any] struct {
	Data []T      `json:"data"`
	Page PageMeta `json:"page"`
}

func newRolesCommand() *Command {
	list := &Command{Name: "list", Description: "List roles", Flags: flag.NewFlagSet("roles list", flag.ContinueOnError)}
	listOpts := addConnectionFlags(list.Flags)
	page := list.Flags.Int("page", 1, "page number")
	size := list.Flags.Int("page-size", 10, "page size")
	list.Run = func(args []string) error {
		if err := list.Flags.Parse(args); err != nil {
			return err
		}
		c, err := listOpts.client()
		if err != nil {
			return err
		}
		var res dataPage[Role]
		if err := c.call(context.Background(), "GET", "/roles", pageQuery(*page, *size), nil, &res); err != nil {
			return err
		}
		tw := newTable("ID", "CODE", "NAME", "DESCRIPTION")
		for _, r := range res.Data {
			tw.row(r.ID, r.Code, r.Name, r.Description)
		}
		tw.flush()
		printPage(res.Page)
		return nil
	}

	grant := &Command{Name: "set-resources", Description: "Replace a role's resources: set-resources <role-id> <id,id,...>", Flags: flag.NewFlagSet("roles set-resources", flag.ContinueOnError)}
	grantOpts := addConnectionFlags(grant.Flags)
	grant.Run = func(args []string) error {
		if err := grant.Flags.Parse(args); err != nil {
			return err
		}
		if grant.Flags.NArg() != 2 {
			return fmt.Errorf("usage: roles set-resources <role-id> <id,id,...>")
		}
		roleID, err := strconv.ParseInt(grant.Flags.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid role id %q", grant.Flags.Arg(0))
		}
		ids, err := parseIDList(grant.Flags.Arg(1))
		if err != nil {
			return err
		}
		c, err := grantOpts.client()
		if err != nil {
			return err
		}
		body := map[string][]int64{"resource_ids": ids}
		if err := c.call(context.Background(), "PUT", fmt.Sprintf("/roles/%d/resources", roleID), nil, body, nil); err != nil {
			return err
		}
		fmt.Fprintf(output, "Role %d now has %d resources\n", roleID, len(ids))
		return nil
	}

	return group("roles", "List roles and change their resources", list, grant)
}

func newResourcesCommand() *Command {
	list := &Command{Name: "list", Description: "List resources", Flags: flag.NewFlagSet("resources list", flag.ContinueOnError)}
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
		var res dataPage[Resource]
		if err := c.call(context.Background(), "GET", "/resources", pageQuery(*page, *size), nil, &res); err != nil {
			return err
		}
		tw := newTable("ID", "PID", "NAME", "PERMISSION", "URL")
		for _, r := range res.Data {
			tw.row(r.ID, r.PID, r.Name, r.PermissionCode, r.RequestURL)
		}
		tw.flush()
		printPage(res.Page)
		return nil
	}

	tree := &Command{Name: "tree", Description: "Show the resource hierarchy", Flags: flag.NewFlagSet("resources tree", flag.ContinueOnError)}
	treeOpts := addConnectionFlags(tree.Flags)
	tree.Run = func(args []string) error {
		if err := tree.Flags.Parse(args); err != nil {
			return err
		}
		c, err := treeOpts.client()
		if err != nil {
			return err
		}
		var nodes []*ResourceNode
		if err := c.call(context.Background(), "GET", "/resources/tree", nil, nil, &nodes); err != nil {
			return err
		}
		printTree(nodes, 0)
		return nil
	}

	return group("resources", "List resources", list, tree)
}

func printTree(nodes []*ResourceNode, depth int) {
	for _, n := range nodes {
		code := n.PermissionCode
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(output, "%s%s [%s]\n", strings.Repeat("  ", depth), n.Name, code)
		printTree(n.Children, depth+1)
	}
}

func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return []int64{}, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
