package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/nav"
	"github.com/trezcool/masomo-console/core/user"
)

func (cli *commandLine) login(args []string) error {
	cmd := newFlagSet("login", cli.out)
	uname := cmd.String("username", "", "Your username. The password will be prompted next.")
	if err := cmd.Parse(args); err != nil {
		return errHelp
	}
	if *uname == "" {
		cmd.Usage()
		return errHelp
	}
	pwd, err := cli.prompt("Enter password")
	if err != nil {
		return err
	}
	if pwd == "" {
		cmd.Usage()
		return errHelp
	}

	ctx, cancel := cli.context()
	defer cancel()
	usr, err := cli.svc.Login(ctx, *uname, pwd)
	if err != nil {
		printValidationError(cli.out, err)
		return err
	}
	cli.printf("%s %s (%s)\n", cli.colors.ok("Welcome"), usr.Name, usr.DisplayRole())
	return nil
}

func (cli *commandLine) register(args []string) error {
	cmd := newFlagSet("register", cli.out)
	data := user.NewStudent{}
	cmd.StringVar(&data.Username, "username", "", "Username (letters, digits and underscores).")
	cmd.StringVar(&data.Name, "name", "", "Full name.")
	cmd.StringVar(&data.FatherName, "father", "", "Father's name.")
	cmd.StringVar(&data.Gender, "gender", "", "male or female.")
	cmd.StringVar(&data.Email, "email", "", "Email address.")
	cmd.StringVar(&data.PhoneNumber, "phone", "", "Phone number.")
	if err := cmd.Parse(args); err != nil {
		return errHelp
	}
	if data.Username == "" || data.Name == "" || data.Gender == "" {
		cmd.Usage()
		return errHelp
	}

	var err error
	if data.Password, err = cli.prompt("Enter password"); err != nil {
		return err
	}
	if data.PasswordConfirm, err = cli.prompt("Confirm password"); err != nil {
		return err
	}

	ctx, cancel := cli.context()
	defer cancel()
	resp, err := cli.svc.Register(ctx, data)
	if err != nil {
		printValidationError(cli.out, err)
		return err
	}
	msg := resp.Message
	if msg == "" {
		msg = "Registration successful. Please wait for admin approval."
	}
	cli.println(cli.colors.ok(msg))
	return nil
}

func (cli *commandLine) logout() error {
	ctx, cancel := cli.context()
	defer cancel()
	cli.svc.Logout(ctx)
	cli.println("Logged out.")
	return nil
}

func (cli *commandLine) whoami() error {
	if err := cli.guard(nav.RouteProfile); err != nil {
		return err
	}
	usr, _ := cli.sessions.User()
	cli.println(cli.colors.title(usr.Name))
	cli.printf("  username: %s\n", usr.Username)
	cli.printf("  role:     %s\n", usr.DisplayRole())
	if usr.Email != "" {
		cli.printf("  email:    %s\n", usr.Email)
	}
	if usr.PhoneNumber != "" {
		cli.printf("  phone:    %s\n", usr.PhoneNumber)
	}
	return nil
}

func (cli *commandLine) profile(args []string) error {
	if err := cli.guard(nav.RouteProfile); err != nil {
		return err
	}
	cmd := newFlagSet("profile", cli.out)
	data := user.UpdateProfile{}
	cmd.StringVar(&data.Name, "name", "", "Full name.")
	cmd.StringVar(&data.FatherName, "father", "", "Father's name.")
	cmd.StringVar(&data.Email, "email", "", "Email address.")
	cmd.StringVar(&data.PhoneNumber, "phone", "", "Phone number.")
	if err := cmd.Parse(args); err != nil {
		return errHelp
	}

	ctx, cancel := cli.context()
	defer cancel()

	// without changes, just pull the latest identity
	if data == (user.UpdateProfile{}) {
		if _, err := cli.svc.ReloadProfile(ctx); err != nil {
			return err
		}
		return cli.whoami()
	}
	if _, err := cli.svc.UpdateProfile(ctx, data); err != nil {
		printValidationError(cli.out, err)
		return err
	}
	return cli.whoami()
}

func (cli *commandLine) changePassword() error {
	if err := cli.guard(nav.RouteSettings); err != nil {
		return err
	}
	var (
		data user.ChangePassword
		err  error
	)
	if data.OldPassword, err = cli.prompt("Current password"); err != nil {
		return err
	}
	if data.NewPassword, err = cli.prompt("New password"); err != nil {
		return err
	}
	if data.NewPasswordConfirm, err = cli.prompt("Confirm new password"); err != nil {
		return err
	}

	ctx, cancel := cli.context()
	defer cancel()
	msg, err := cli.svc.ChangePassword(ctx, data)
	if err != nil {
		printValidationError(cli.out, err)
		return err
	}
	cli.println(cli.colors.ok(msg))
	return nil
}

func (cli *commandLine) refresh() error {
	if err := cli.guard(nav.Home()); err != nil {
		return err
	}
	ctx, cancel := cli.context()
	defer cancel()
	if err := cli.svc.Refresh(ctx); err != nil {
		if errors.Cause(err) == core.ErrNotAuthenticated {
			return errLoginRequired
		}
		return err
	}
	cli.println("Session refreshed.")
	return nil
}
