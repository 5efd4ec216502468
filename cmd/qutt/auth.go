package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thequtt/qutt-client/internal/backend"
	"github.com/thequtt/qutt-client/pkg/auth"
)

type statusView struct {
	State         string          `json:"state"`
	Authenticated bool            `json:"authenticated"`
	Token         *auth.TokenInfo `json:"token,omitempty"`
	NextRefresh   string          `json:"next_refresh,omitempty"`
	CartItems     int             `json:"cart_items"`
	CartTotal     string          `json:"cart_total"`
	Counters      []string        `json:"counters,omitempty"`
}

func authCommands(c *cli) []*cobra.Command {
	var email, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			pair, err := a.api.Login(cmd.Context(), backend.LoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}
			if err := a.session.SignIn(cmd.Context(), pair.Access, pair.Refresh); err != nil {
				return err
			}
			info := auth.Inspect(pair.Access, time.Now())
			if info != nil && info.UserID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "signed in as user %s\n", info.UserID)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed in")
			return nil
		},
	}
	login.Flags().StringVar(&email, "email", "", "Account email")
	login.Flags().StringVar(&password, "password", "", "Account password")
	_ = login.MarkFlagRequired("email")
	_ = login.MarkFlagRequired("password")

	var reg backend.RegisterRequest
	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			reg.Password2 = reg.Password
			user, err := a.api.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s; run login to sign in\n", user.Email)
			return nil
		},
	}
	register.Flags().StringVar(&reg.Email, "email", "", "Account email")
	register.Flags().StringVar(&reg.Password, "password", "", "Account password")
	register.Flags().StringVar(&reg.FirstName, "first-name", "", "First name")
	register.Flags().StringVar(&reg.LastName, "last-name", "", "Last name")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			a.session.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if !a.session.Refresh(cmd.Context()) {
				return fmt.Errorf("token refresh did not succeed; session state is %s", a.session.State())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "token refreshed")
			return nil
		},
	}

	var showCounters bool
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the session and cart state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			view := statusView{
				State:         a.session.State().String(),
				Authenticated: a.session.IsAuthenticated(),
				CartItems:     a.cart.ItemCount(),
				CartTotal:     a.cart.Total().StringFixed(2),
			}
			if token := a.session.AccessToken(); token != "" {
				view.Token = auth.Inspect(token, time.Now())
				view.NextRefresh = auth.FormatRemaining(a.session.NextRefreshDelay(token))
			}
			if showCounters {
				if view.Counters, err = counterLines(a.registry); err != nil {
					return err
				}
			}
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			return printStatus(cmd, view)
		},
	}
	status.Flags().BoolVar(&showCounters, "metrics", false, "Include client counters")

	profile := &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if !a.session.IsAuthenticated() {
				return fmt.Errorf("not signed in")
			}
			user, err := a.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.FullName(), user.Email)
			return nil
		},
	}

	return []*cobra.Command{login, register, logout, refresh, status, profile}
}

func printStatus(cmd *cobra.Command, view statusView) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session: %s\n", view.State)
	if view.Token != nil {
		fmt.Fprintf(out, "user: %s\n", view.Token.UserID)
		fmt.Fprintf(out, "token expires in: %s\n", view.Token.Remaining)
		fmt.Fprintf(out, "next refresh in: %s\n", view.NextRefresh)
	}
	fmt.Fprintf(out, "cart: %d item(s), total %s\n", view.CartItems, view.CartTotal)
	for _, line := range view.Counters {
		fmt.Fprintln(out, line)
	}
	return nil
}
