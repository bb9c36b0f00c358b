package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/outline-metrics/internal/credential"
)

var loginClear bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the outline service session id in the system keyring",
	Long: `Reads the session id from stdin and stores it in the system keyring.
Copy the value of the "sessionid" cookie from a logged-in browser session.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginClear, "clear", false,
		"remove the stored session instead")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	if loginClear {
		if err := credential.Delete(credential.SessionKey); err != nil {
			return err
		}
		fmt.Println("Session cleared.")
		return nil
	}

	fmt.Fprint(os.Stderr, "Session id: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading session id: %w", err)
	}
	session := strings.TrimSpace(line)
	if session == "" {
		return fmt.Errorf("session id must not be empty")
	}

	if err := credential.Set(credential.SessionKey, session); err != nil {
		return err
	}
	fmt.Println("Session stored.")
	return nil
}
