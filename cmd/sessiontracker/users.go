package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/sessiontracker/internal/config"
	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/goodtune/sessiontracker/internal/users"
)

var (
	userEmail string
	userAge   int
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
	Long:  `Create, list and delete the users sessions are tracked for.`,
}

var usersAddCmd = &cobra.Command{
	Use:     "add [flags] [ID]",
	Short:   "Create a user",
	Example: `  sessiontracker users add --email alice@example.com --age 34 alice`,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runUsersAdd,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a user; their sessions are kept",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	usersAddCmd.Flags().StringVar(&userEmail, "email", "", "E-mail address")
	usersAddCmd.Flags().IntVar(&userAge, "age", 0, "Age in years")

	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}

// withUsers opens storage and hands a user checker to fn.
func withUsers(fn func(ctx context.Context, checker *users.Checker) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return fn(ctx, users.NewChecker(store.Users(), users.Config{}, quietLogger()))
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	user := storage.User{Email: userEmail, Age: userAge}
	if len(args) == 1 {
		user.ID = args[0]
	}

	return withUsers(func(ctx context.Context, checker *users.Checker) error {
		if err := checker.Create(ctx, &user); err != nil {
			return err
		}
		_, _ = color.New(color.FgGreen).Printf("Created user %s\n", user.ID)
		return nil
	})
}

func runUsersList(cmd *cobra.Command, args []string) error {
	return withUsers(func(ctx context.Context, checker *users.Checker) error {
		list, err := checker.List(ctx)
		if err != nil {
			return err
		}
		printUsers(list)
		return nil
	})
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	return withUsers(func(ctx context.Context, checker *users.Checker) error {
		if err := checker.Delete(ctx, args[0]); err != nil {
			return err
		}
		_, _ = color.New(color.FgYellow).Printf("Deleted user %s\n", args[0])
		return nil
	})
}

func printUsers(list []storage.User) {
	if len(list) == 0 {
		fmt.Println("No users")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = color.New(color.FgCyan, color.Bold).Fprintln(w, "ID\tEMAIL\tAGE\tCREATED")
	for _, u := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", u.ID, u.Email, u.Age, u.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
