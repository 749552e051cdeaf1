package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage panel accounts offline",
	}
	cmd.AddCommand(newAccountCreateCmd(a), newAccountListCmd(a))
	return cmd
}

func newAccountCreateCmd(a *app) *cobra.Command {
	var req goVPS.CreateAccountRequest
	var role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account; the password is read from the terminal or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := permission.ParseRole(role)
			if err != nil {
				return err
			}
			req.Role = r
			req.Password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			engine, closeEngine, err := a.buildEngine(ctx, st, false)
			if err != nil {
				return err
			}
			defer closeEngine()

			acct, err := engine.CreateAccount(ctx, operator, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account %d (%s, %s)\n", acct.ID, acct.Email, acct.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Username, "username", "", "account username")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(permission.RoleUser), "admin, support, billing or user")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

var errPasswordMismatch = errors.New("passwords do not match")

// readPassword prompts twice without echo when in is a terminal, and reads
// one line otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		fmt.Fprint(prompt, "Repeat password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errPasswordMismatch
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password on stdin")
	}
	return pw, nil
}

func newAccountListCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.AccountFilter{}
			if role != "" {
				r, err := permission.ParseRole(role)
				if err != nil {
					return err
				}
				filter.Role = r
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			engine, closeEngine, err := a.buildEngine(ctx, st, false)
			if err != nil {
				return err
			}
			defer closeEngine()
			return listAccounts(ctx, engine, filter, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only list accounts with this role")
	return cmd
}

func listAccounts(ctx context.Context, engine *goVPS.Engine, filter store.AccountFilter, out io.Writer) error {
	list, err := engine.ListAccounts(ctx, operator, filter)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tUSERNAME\tROLE\tACTIVE")
	for _, acct := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", acct.ID, acct.Email, acct.Username, acct.Role, acct.Active)
	}
	return tw.Flush()
}
