package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/gommon/color"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/auth"
	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/theme"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp          = errors.New("help provided")
	errLoginRequired = errors.New("please log in: masomo login -username USERNAME")
)

// palette is the console's theme marker: it picks the colors of the output.
type palette struct {
	c    *color.Color
	dark bool
}

var _ theme.Marker = (*palette)(nil)

func newPalette(out io.Writer, enabled bool) *palette {
	c := color.New()
	c.SetOutput(out)
	if !enabled {
		c.Disable()
	}
	return &palette{c: c}
}

func (p *palette) SetDark(dark bool) { p.dark = dark }

func (p *palette) title(s string) string {
	if p.dark {
		return p.c.Cyan(s)
	}
	return p.c.Blue(s)
}

func (p *palette) ok(s string) string {
	if p.dark {
		return p.c.Green(s)
	}
	return p.c.Magenta(s)
}

type commandLine struct {
	svc      *auth.Service
	sessions *session.Store
	themes   *theme.Store
	colors   *palette
	out      io.Writer
	timeout  time.Duration
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

func (cli *commandLine) println(args ...interface{}) {
	_, _ = fmt.Fprintln(cli.out, args...)
}

func (cli *commandLine) printUsage() {
	cli.println("Usage:")
	cli.println("  login -username USERNAME                  - log in (the password is prompted)")
	cli.println("  register -username U -name N -gender G    - request a student account")
	cli.println("  logout                                    - log out")
	cli.println("  whoami                                    - show the logged in user")
	cli.println("  profile [-name N] [-email E] [-phone P]   - update your profile")
	cli.println("  passwd                                    - change your password")
	cli.println("  refresh                                   - rotate the session tokens")
	cli.println("  menu                                      - list the screens you can open")
	cli.println("  open PATH                                 - check whether PATH can be opened")
	cli.println("  theme [toggle|light|dark]                 - show or change the theme")
	cli.println("  users [-role R] [-search S]               - list users (admins)")
	cli.println("  approvals list|approve|reject|toggle      - manage pending students (admins)")
}

func (cli *commandLine) context() (context.Context, context.CancelFunc) {
	timeout := cli.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// guard runs the admission gate for path, the same way the web shell does for each request.
func (cli *commandLine) guard(path string) error {
	switch nav.Authorize(cli.sessions.IsAuthenticated(), cli.sessions, path) {
	case nav.RedirectToLogin:
		return errLoginRequired
	case nav.Forbidden:
		return core.ErrForbidden
	default:
		return nil
	}
}

func (cli *commandLine) prompt(label string) (string, error) {
	cli.printf("%s:", label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.println()
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

// run dispatches args (program name first) to the matching command.
func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	cmd, rest := args[1], args[2:]
	switch cmd {
	case "login":
		return cli.login(rest)
	case "register":
		return cli.register(rest)
	case "logout":
		return cli.logout()
	case "whoami":
		return cli.whoami()
	case "profile":
		return cli.profile(rest)
	case "passwd":
		return cli.changePassword()
	case "refresh":
		return cli.refresh()
	case "menu":
		return cli.menu()
	case "open":
		return cli.open(rest)
	case "theme":
		return cli.theme(rest)
	case "users":
		return cli.users(rest)
	case "approvals":
		return cli.approvals(rest)
	case "help", "-h", "--help":
		cli.printUsage()
		return errHelp
	default:
		cli.printUsage()
		return errHelp
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func printValidationError(out io.Writer, err error) bool {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	for _, f := range verr.Fields {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", f.Field, f.Error)
	}
	return true
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
