package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"invoicedesk/internal/api"
	"invoicedesk/internal/logger"
	"invoicedesk/internal/session"
	"invoicedesk/pkg/models"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the invoice backend and store the session",
	Example: `  invoicedesk login --email admin@example.com --password secret
  INVOICEDESK_PASSWORD=secret invoicedesk login --email admin@example.com`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account (admins use this to add users)",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user, role and assigned projects",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.Remove(appConfig.SessionFile); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts (admin only)",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

var usersProjectCmd = &cobra.Command{
	Use:   "set-project <user-id> <project>",
	Short: "Assign a user to a project",
	Long:  "Assign a user to one of: " + strings.Join(models.AdminProjects, ", "),
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersProject,
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, whoamiCmd, logoutCmd, usersCmd)
	usersCmd.AddCommand(usersListCmd, usersDeleteCmd, usersProjectCmd)

	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("password", "", "Account password (default from INVOICEDESK_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("email")

	registerCmd.Flags().String("name", "", "Full name")
	registerCmd.Flags().String("email", "", "Account email")
	registerCmd.Flags().String("password", "", "Account password (default from INVOICEDESK_PASSWORD)")
	_ = registerCmd.MarkFlagRequired("name")
	_ = registerCmd.MarkFlagRequired("email")
}

func password(cmd *cobra.Command) (string, error) {
	pw, _ := cmd.Flags().GetString("password")
	if pw == "" {
		pw = os.Getenv("INVOICEDESK_PASSWORD")
	}
	if pw == "" {
		return "", fmt.Errorf("password is required (use --password or INVOICEDESK_PASSWORD)")
	}
	return pw, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("login")

	email, _ := cmd.Flags().GetString("email")
	pw, err := password(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	client, _ := newClient(false)
	s, err := client.Login(ctx, api.Credentials{Email: email, Password: pw})
	if err != nil {
		return handleAPIError(err, log)
	}
	if err := s.Save(appConfig.SessionFile); err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s)\n", email, s.Role())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("register")

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	pw, err := password(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	// An admin adding a user sends their own token; self sign-up works without.
	client, err := newClient(true)
	if err != nil {
		client, _ = newClient(false)
	}
	s, err := client.Register(ctx, api.Registration{Name: name, Email: email, Password: pw})
	if err != nil {
		return handleAPIError(err, log)
	}
	if s == nil {
		fmt.Printf("User %s registered\n", email)
		return nil
	}
	if err := s.Save(appConfig.SessionFile); err != nil {
		return err
	}
	fmt.Printf("Registered and logged in as %s\n", email)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("whoami")

	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}
	s := client.Session()

	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	profile, err := client.Me(ctx)
	if err != nil {
		return handleAPIError(err, log)
	}

	out := struct {
		ID        string    `json:"id"`
		Name      string    `json:"name,omitempty"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
		Projects  []string  `json:"projects,omitempty"`
		ExpiresAt time.Time `json:"expiresAt,omitempty"`
	}{
		ID:        s.UserID(),
		Name:      profile.Name,
		Email:     s.Email(),
		Role:      string(s.Role()),
		Projects:  profile.Projects(),
		ExpiresAt: s.ExpiresAt(),
	}
	if profile.ID.String() != "" {
		out.ID = profile.ID.String()
	}
	if profile.Email != "" {
		out.Email = profile.Email
	}

	if jsonOutput(cmd) {
		return printJSON(os.Stdout, out)
	}
	tw := newTable(os.Stdout)
	row(tw, "ID", out.ID)
	row(tw, "Name", out.Name)
	row(tw, "Email", out.Email)
	row(tw, "Role", out.Role)
	row(tw, "Projects", strings.Join(out.Projects, ", "))
	if !out.ExpiresAt.IsZero() {
		row(tw, "Expires", out.ExpiresAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runUsersList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("users")

	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	users, err := client.ListUsers(ctx)
	if err != nil {
		return handleAPIError(err, log)
	}

	if jsonOutput(cmd) {
		return printJSON(os.Stdout, users)
	}
	tw := newTable(os.Stdout)
	row(tw, "ID", "NAME", "EMAIL", "ROLE", "PROJECTS")
	for _, u := range users {
		row(tw, u.ID.String(), u.Name, u.Email, u.Role, u.Projects().String())
	}
	return tw.Flush()
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("users")

	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	if err := client.DeleteUser(ctx, args[0]); err != nil {
		return handleAPIError(err, log)
	}
	fmt.Printf("User %s deleted\n", args[0])
	return nil
}

func runUsersProject(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("users")

	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	if err := client.SetProjectRole(ctx, args[0], args[1]); err != nil {
		return handleAPIError(err, log)
	}
	fmt.Printf("User %s assigned to %s\n", args[0], args[1])
	return nil
}
