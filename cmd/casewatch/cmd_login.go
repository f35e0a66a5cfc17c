package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"casewatch/internal/browser"
	"casewatch/internal/selectors"
	"casewatch/internal/session"
)

var loginFlags struct {
	state     string
	selectors string
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively and save the session for unattended runs",
	Long: "Opens a visible browser window on the portal sign-in page. Complete the\n" +
		"login there (including any second factor), then press ENTER here to save\n" +
		"the session cookies for later unattended runs.",
	RunE: runLogin,
}

func init() {
	f := loginCmd.Flags()
	f.StringVar(&loginFlags.state, "state", ".casewatch/session.json", "Session state file")
	f.StringVar(&loginFlags.selectors, "selectors", "", "Selector document (YAML); built-in defaults when empty")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg := selectors.Default()
	if loginFlags.selectors != "" {
		var err error
		cfg, err = selectors.LoadFromPath(loginFlags.selectors)
		if err != nil {
			return fmt.Errorf("load selectors: %w", err)
		}
	}

	ctx := cmd.Context()
	b, err := browser.Start(ctx, browser.Options{Headless: false})
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer b.Close()

	if err := b.Navigate(ctx, cfg.SigninURL); err != nil {
		return fmt.Errorf("open sign-in page: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Complete the login in the browser window, then press ENTER here.")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return fmt.Errorf("wait for confirmation: %w", err)
	}

	cookies, err := b.ExportCookies(ctx)
	if err != nil {
		return fmt.Errorf("export cookies: %w", err)
	}
	now := time.Now().UTC()
	st := &session.State{CreatedAt: now, LastRefreshedAt: now, Cookies: cookies}
	if err := session.SaveState(loginFlags.state, st); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s (%d cookies).\n", loginFlags.state, len(cookies))
	return nil
}
