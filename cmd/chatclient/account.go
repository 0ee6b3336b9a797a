package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"building_chat/internal/restclient"
)

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Log in and print a bearer token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		client := restclient.New(cfg.Chat.APIURL, "", cfg.Chat.RequestTimeout)
		token, err := client.Login(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username> <password>",
	Short: "Create a gateway account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("display-name")
		role, _ := cmd.Flags().GetString("role")

		client := restclient.New(cfg.Chat.APIURL, "", cfg.Chat.RequestTimeout)
		if err := client.Register(cmd.Context(), args[0], args[1], name, role); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", args[0])
		return nil
	},
}

func init() {
	registerCmd.Flags().String("display-name", "", "name shown to other residents")
	registerCmd.Flags().String("role", "resident", "resident, manager or staff")

	rootCmd.AddCommand(loginCmd, registerCmd)
}
