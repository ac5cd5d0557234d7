package main

import (
	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/theme"
)

func (cli *commandLine) menu() error {
	if err := cli.guard(nav.Home()); err != nil {
		return err
	}
	cli.println(cli.colors.title("Menu"))
	for _, e := range nav.Menu(cli.sessions) {
		cli.printf("  %s %s\n", pad(e.Name, 18), e.Path)
	}
	return nil
}

// open prints the admission decision for PATH; a refused path is an error (exit code 1).
func (cli *commandLine) open(args []string) error {
	if len(args) != 1 {
		cli.println("Usage: open PATH")
		return errHelp
	}
	path := args[0]
	if err := cli.guard(path); err != nil {
		cli.printf("%s: %v\n", path, err)
		return err
	}
	cli.printf("%s: %s\n", path, cli.colors.ok("ok"))
	return nil
}

func (cli *commandLine) theme(args []string) error {
	switch {
	case len(args) == 0:
	case args[0] == "toggle":
		cli.themes.Toggle()
	case len(args) == 1 && theme.Mode(args[0]).Valid():
		cli.themes.Set(theme.Mode(args[0]))
	default:
		cli.println("Usage: theme [toggle|light|dark]")
		return errHelp
	}
	cli.printf("theme: %s\n", cli.colors.title(string(cli.themes.Mode())))
	return nil
}
