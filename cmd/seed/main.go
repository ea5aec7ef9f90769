// cmd/seed/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gurkanbulca/taskdesk/internal/database"
	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/internal/repository"
	"github.com/gurkanbulca/taskdesk/internal/xmlschema"
	"github.com/gurkanbulca/taskdesk/pkg/auth"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

type options struct {
	dataDir string
	verbose bool
	fs      afero.Fs
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(fs afero.Fs) *cobra.Command {
	opts := &options{fs: fs}

	defaultDir := os.Getenv("DATA_DIR")
	if defaultDir == "" {
		defaultDir = "./data"
	}

	root := &cobra.Command{
		Use:          "taskdesk-seed",
		Short:        "Manage the taskdesk XML data files",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", defaultDir, "directory holding users.xml and tasks.xml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log store activity")

	root.AddCommand(
		initCmd(opts),
		validateCmd(opts),
		createAdminCmd(opts),
		schemaCmd(),
	)
	return root
}

func (o *options) open() (*database.XMLDatabase, error) {
	level := logger.ErrorLevel
	if o.verbose {
		level = logger.DebugLevel
	}
	return database.NewXMLDatabase(database.Config{
		Fs:     o.fs,
		Dir:    o.dataDir,
		Logger: logger.NewLogger(&logger.Config{Level: level, Output: os.Stderr, TimeFormat: "15:04:05"}),
	})
}

// initCmd writes the bundled documents into an empty data directory.
func initCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create users.xml and tasks.xml from the bundled seed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			if force {
				for _, kind := range []models.Kind{models.KindUsers, models.KindTasks} {
					if err := opts.fs.Remove(db.Path(kind)); err != nil && !errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("remove %s: %w", db.Path(kind), err)
					}
				}
			}
			if err := db.Warm(); err != nil {
				return err
			}
			return printStatus(cmd, db.Status())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data files")
	return cmd
}

func validateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check both data files against their schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			return printStatus(cmd, db.Status())
		},
	}
}

func createAdminCmd(opts *options) *cobra.Command {
	var username, password, email, fullName string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Add an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			log := logger.NewLogger(&logger.Config{Level: logger.WarnLevel, Output: cmd.ErrOrStderr()})
			users := repository.NewUserRepository(db, auth.NewPasswordManager(0, auth.DefaultBcryptCost), log)

			user, err := users.Insert(users.NewUser(models.UserTypeAdmin, username, password, email, fullName))
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	for _, f := range []string{"username", "password", "email", "name"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema users|tasks",
		Short:     "Print the XSD a data file is validated against",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(models.KindUsers), string(models.KindTasks)},
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := xmlschema.SchemaSource(models.Kind(args[0]))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(src)
			return err
		},
	}
}

func printStatus(cmd *cobra.Command, statuses []database.KindStatus) error {
	var errs []error
	for _, st := range statuses {
		state := "ok"
		if !st.Ready {
			state = "FAILED"
			errs = append(errs, st.Err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-7s %4d records  %s\n", st.Kind, state, st.Records, st.Path)
		if st.Err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "       %v\n", st.Err)
		}
	}
	return errors.Join(errs...)
}
