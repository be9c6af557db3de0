package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage user preferences and parse options",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set one setting",
	Long: `Set one setting. Keys:
  auto-save, notifications, dark-mode, secure (true/false)
  session-timeout (minutes)
  parse-admins, parse-bots, parse-premium, parse-regular, parse-no-username (true/false)
  delay (seconds, e.g. 1.5)`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings and parse options",
	RunE:  runSettingsReset,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsResetCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	s := app.mgr.Settings()
	o := app.mgr.ParseOptions()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "auto-save\t%v\n", s.AutoSave)
	fmt.Fprintf(w, "notifications\t%v\n", s.Notifications)
	fmt.Fprintf(w, "dark-mode\t%v\n", s.DarkMode)
	fmt.Fprintf(w, "secure\t%v\n", s.SecureConnection)
	fmt.Fprintf(w, "session-timeout\t%d min\n", s.SessionTimeout)
	fmt.Fprintf(w, "parse-admins\t%v\n", o.ParseAdmins)
	fmt.Fprintf(w, "parse-bots\t%v\n", o.ParseBots)
	fmt.Fprintf(w, "parse-premium\t%v\n", o.ParsePremium)
	fmt.Fprintf(w, "parse-regular\t%v\n", o.ParseRegular)
	fmt.Fprintf(w, "parse-no-username\t%v\n", o.ParseNoUsername)
	fmt.Fprintf(w, "delay\t%.1fs\n", o.Delay)
	return w.Flush()
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	key, value := args[0], args[1]
	s := app.mgr.Settings()
	o := app.mgr.ParseOptions()

	switch key {
	case "auto-save", "notifications", "dark-mode", "secure",
		"parse-admins", "parse-bots", "parse-premium", "parse-regular", "parse-no-username":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s wants true or false, got %q", key, value)
		}
		switch key {
		case "auto-save":
			s.AutoSave = b
		case "notifications":
			s.Notifications = b
		case "dark-mode":
			s.DarkMode = b
		case "secure":
			s.SecureConnection = b
		case "parse-admins":
			o.ParseAdmins = b
		case "parse-bots":
			o.ParseBots = b
		case "parse-premium":
			o.ParsePremium = b
		case "parse-regular":
			o.ParseRegular = b
		case "parse-no-username":
			o.ParseNoUsername = b
		}

	case "session-timeout":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("session-timeout wants a positive number of minutes, got %q", value)
		}
		s.SessionTimeout = n

	case "delay":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("delay wants a non-negative number of seconds, got %q", value)
		}
		o.Delay = f

	default:
		return fmt.Errorf("unknown setting %q", key)
	}

	app.mgr.SetSettings(s)
	app.mgr.SetParseOptions(o)
	fmt.Printf("%s = %s\n", key, value)
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.mgr.ResetSettings()
	app.mgr.ResetParseOptions()
	fmt.Println("settings reset to defaults")
	return nil
}
