package main

import (
	"net/url"

	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/user"
)

func (cli *commandLine) printUsers(users []user.User) {
	if len(users) == 0 {
		cli.println("  (none)")
		return
	}
	for _, u := range users {
		status := u.ApprovalStatus
		if !u.IsActive {
			status += ", inactive"
		}
		cli.printf("  %-6d %s %s %s\n", u.ID, pad(u.Username, 16), pad(u.Name, 24), status)
	}
}

func (cli *commandLine) users(args []string) error {
	if err := cli.guard(nav.RouteUsers); err != nil {
		return err
	}
	cmd := newFlagSet("users", cli.out)
	role := cmd.String("role", "", "Only users with this role (SUPER_ADMIN, ADMIN, TEACHER, STUDENT).")
	search := cmd.String("search", "", "Match on name, username or email.")
	page := cmd.String("page", "", "Page number.")
	if err := cmd.Parse(args); err != nil {
		return errHelp
	}
	query := make(url.Values)
	for k, v := range map[string]string{"role": *role, "search": *search, "page": *page} {
		if v != "" {
			query.Set(k, v)
		}
	}

	ctx, cancel := cli.context()
	defer cancel()
	res, err := cli.svc.ListUsers(ctx, query)
	if err != nil {
		return err
	}
	cli.printf("%s (%d)\n", cli.colors.title("Users"), res.Count)
	cli.printUsers(res.Results)
	return nil
}

func (cli *commandLine) approvals(args []string) error {
	if err := cli.guard(nav.RoutePendingApprovals); err != nil {
		return err
	}
	if len(args) == 0 {
		cli.println("Usage: approvals list|approve -id ID|reject -id ID [-reason REASON]|toggle -id ID")
		return errHelp
	}

	sub, rest := args[0], args[1:]
	cmd := newFlagSet("approvals "+sub, cli.out)
	id := cmd.Int("id", 0, "The user's id.")
	reason := cmd.String("reason", "", "Why the registration is rejected.")

	ctx, cancel := cli.context()
	defer cancel()

	if sub == "list" {
		users, err := cli.svc.PendingApprovals(ctx)
		if err != nil {
			return err
		}
		cli.printf("%s (%d)\n", cli.colors.title("Pending approvals"), len(users))
		cli.printUsers(users)
		return nil
	}

	if err := cmd.Parse(rest); err != nil {
		return errHelp
	}
	if *id <= 0 {
		cmd.Usage()
		return errHelp
	}

	var msg string
	switch sub {
	case "approve":
		resp, err := cli.svc.Approve(ctx, *id)
		if err != nil {
			return err
		}
		msg = resp.Message
	case "reject":
		resp, err := cli.svc.Reject(ctx, *id, *reason)
		if err != nil {
			return err
		}
		msg = resp.Message
	case "toggle":
		resp, err := cli.svc.ToggleActive(ctx, *id)
		if err != nil {
			return err
		}
		msg = resp.Message
	default:
		cli.println("Usage: approvals list|approve -id ID|reject -id ID [-reason REASON]|toggle -id ID")
		return errHelp
	}
	cli.println(cli.colors.ok(msg))
	return nil
}
