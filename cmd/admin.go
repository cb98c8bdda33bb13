// Package cmd provides the casetrack administrative command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casetrack/config"
	"casetrack/core"
	"casetrack/storage"
	"casetrack/util"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for admin commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

// defaultTimeout bounds a single CLI operation.
const defaultTimeout = 30 * time.Second

// adminEnv holds the storage layers an admin command operates on.
type adminEnv struct {
	users  core.UserStorage
	grants core.GrantStorage
	cases  core.CaseStorage
	config *config.Config
}

// initAdminEnv opens storage directly; admin commands bypass the API and its
// authorization layer on purpose, they run on the host that owns the database.
func initAdminEnv(ctx context.Context) (*adminEnv, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar := logger.Sugar()

	sqlite, err := storage.NewSQLite(cfg.GetSQLitePath(), sugar)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	users, err := storage.NewSQLiteUserStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, nil, fmt.Errorf("failed to initialize user storage: %w", err)
	}
	grants, err := storage.NewSQLiteGrantStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, nil, fmt.Errorf("failed to initialize grant storage: %w", err)
	}
	cases, err := storage.NewSQLiteCaseStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, nil, fmt.Errorf("failed to initialize case storage: %w", err)
	}

	cleanup := func() {
		sqlite.Close()
		logger.Sync()
	}
	return &adminEnv{users: users, grants: grants, cases: cases, config: cfg}, cleanup, nil
}

// NewAdminCmd creates the root admin command with all subcommands.
func NewAdminCmd() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer casetrack users and case access",
		Long: `Administer casetrack users and case access directly against the database.

These commands are intended for operators on the host running casetrack. They do
not go through the HTTP API and are not subject to its authorization checks.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	adminCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	adminCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	adminCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	adminCmd.AddCommand(newCreateUserCmd())
	adminCmd.AddCommand(newGrantAccessCmd())
	adminCmd.AddCommand(newListUsersCmd())

	return adminCmd
}

// newCreateUserCmd creates the 'create-user' subcommand
func newCreateUserCmd() *cobra.Command {
	var (
		password    string
		serverAdmin bool
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a platform user",
		Long: `Create a platform user. When --password is omitted a secure random
password is generated and printed once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			env, cleanup, err := initAdminEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			username := args[0]
			if username == "" {
				return fmt.Errorf("username must not be empty")
			}

			if _, err := env.users.GetUserByUsername(ctx, username); err == nil {
				return fmt.Errorf("user %q already exists", username)
			} else if !errors.Is(err, storage.ErrUserNotFound) {
				return fmt.Errorf("failed to check username: %w", err)
			}

			generated := false
			if password == "" {
				password, err = generatePassword()
				if err != nil {
					return err
				}
				generated = true
			} else {
				policy := util.DefaultPasswordPolicy()
				if err := policy.Validate(password, username); err != nil {
					return fmt.Errorf("password rejected: %w", err)
				}
			}

			hash, err := util.HashPassword(password, env.config.Auth.BcryptCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			perms := []core.Permission{core.PermStandardUser}
			if serverAdmin {
				perms = append(perms, core.PermServerAdministrator)
			}

			now := time.Now().UTC()
			user := &core.User{
				ID:           uuid.NewString(),
				Username:     username,
				PasswordHash: hash,
				Permissions:  perms,
				Active:       !inactive,
				CreatedAt:    now,
				UpdatedAt:    now,
			}

			if err := env.users.CreateUser(ctx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			if outputJSON {
				return outputAsJSON(user)
			}

			successColor.Printf("User %q created\n", username)
			printField("ID", user.ID)
			printField("Permissions", fmt.Sprintf("%v", user.Permissions))
			printField("Active", formatBool(user.Active))
			if generated && !quiet {
				fmt.Println()
				warningColor.Println("Generated password (shown once):")
				fmt.Printf("  %s\n", password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (generated when omitted)")
	cmd.Flags().BoolVar(&serverAdmin, "server-administrator", false, "Grant the global server_administrator permission")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the account disabled")

	return cmd
}

// newGrantAccessCmd creates the 'grant-access' subcommand
func newGrantAccessCmd() *cobra.Command {
	var (
		caseID      string
		levelName   string
		subjectKind string
	)

	cmd := &cobra.Command{
		Use:   "grant-access <username-or-group-id>",
		Short: "Grant case access to a user or group",
		Long: `Grant an access level on a case to a user (by username) or a group (by id).
An existing grant for the same subject and case is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			env, cleanup, err := initAdminEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			level, ok := core.ParseAccessLevel(levelName)
			if !ok {
				return fmt.Errorf("unknown access level %q (want read_only or full_access)", levelName)
			}

			subjectType := core.SubjectType(subjectKind)
			if !subjectType.IsValid() {
				return fmt.Errorf("unknown subject type %q (want user or group)", subjectKind)
			}

			if _, err := env.cases.GetCase(ctx, caseID); err != nil {
				return fmt.Errorf("case %s: %w", caseID, err)
			}

			subjectID := args[0]
			if subjectType == core.SubjectUser {
				user, err := env.users.GetUserByUsername(ctx, subjectID)
				if err != nil {
					return fmt.Errorf("user %q: %w", subjectID, err)
				}
				subjectID = user.ID
			}

			grant := &core.AccessGrant{
				ID:          uuid.NewString(),
				SubjectType: subjectType,
				SubjectID:   subjectID,
				CaseID:      caseID,
				Level:       level,
				GrantedBy:   "admin-cli",
			}
			if err := env.grants.UpsertGrant(ctx, grant); err != nil {
				return fmt.Errorf("failed to upsert grant: %w", err)
			}

			if outputJSON {
				return outputAsJSON(grant)
			}

			successColor.Printf("Granted %s on case %s\n", level, caseID)
			printField("Subject", fmt.Sprintf("%s %s", subjectType, subjectID))
			return nil
		},
	}

	cmd.Flags().StringVar(&caseID, "case", "", "Case ID the grant applies to")
	cmd.Flags().StringVar(&levelName, "level", "read_only", "Access level: read_only or full_access")
	cmd.Flags().StringVar(&subjectKind, "subject-type", "user", "Subject type: user or group")
	cmd.MarkFlagRequired("case")

	return cmd
}

// newListUsersCmd creates the 'list-users' subcommand
func newListUsersCmd() *cobra.Command {
	var showInactive bool

	cmd := &cobra.Command{
		Use:     "list-users",
		Aliases: []string{"ls"},
		Short:   "List platform users",
		Long:    "Display a table of all users with their permissions and status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			env, cleanup, err := initAdminEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			users, err := env.users.ListUsers(ctx)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			if !showInactive {
				var filtered []*core.User
				for _, u := range users {
					if u.Active {
						filtered = append(filtered, u)
					}
				}
				users = filtered
			}

			if outputJSON {
				return outputAsJSON(users)
			}

			renderUsersTable(users)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showInactive, "all", false, "Show disabled accounts")

	return cmd
}
