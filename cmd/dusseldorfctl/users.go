package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/org/dusseldorf/internal/session"
	"github.com/org/dusseldorf/pkg/models"
)

// usernameRe limits account names to characters safe in zone authz
// aliases and log lines.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)

var validRoles = map[string]bool{
	"readonly":    true,
	"readwrite":   true,
	"assignroles": true,
	"owner":       true,
	"admin":       true,
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage user accounts"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			users, err := store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Username", "Email", "Full Name", "Roles", "Created"})
			for _, u := range users {
				table.Append([]string{
					u.Username,
					u.Email,
					u.FullName,
					strings.Join(u.Roles, ","),
					u.CreatedAt.Format(time.RFC3339),
				})
			}
			table.Render()
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create or update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if !usernameRe.MatchString(username) {
				return fmt.Errorf("invalid username %q: only letters, digits, dots and underscores are allowed", username)
			}

			email, _ := cmd.Flags().GetString("email")
			fullName, _ := cmd.Flags().GetString("full-name")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			for _, role := range roles {
				if !validRoles[role] {
					return fmt.Errorf("unknown role %q", role)
				}
			}

			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				fmt.Print("Password: ")
				scanner := bufio.NewScanner(os.Stdin)
				scanner.Scan()
				password = strings.TrimSpace(scanner.Text())
			}
			if password == "" {
				return fmt.Errorf("a password is required")
			}
			hash, err := session.HashPassword(password)
			if err != nil {
				return err
			}

			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			user := &models.User{
				Username:     username,
				Email:        email,
				FullName:     fullName,
				Roles:        roles,
				PasswordHash: hash,
				CreatedAt:    time.Now().UTC(),
			}
			if err := store.UpsertUser(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Printf("user %s saved\n", username)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Email address")
	createCmd.Flags().String("full-name", "", "Full name")
	createCmd.Flags().String("password", "", "Password (prompted if omitted)")
	createCmd.Flags().StringSlice("roles", nil, "Global roles (readonly, readwrite, assignroles, owner, admin)")

	deleteCmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user and their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("user %s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, createCmd, deleteCmd)
	return cmd
}
