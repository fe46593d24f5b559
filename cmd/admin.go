package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dosada05/lanparty/db"
	"github.com/Dosada05/lanparty/repositories"
	"github.com/Dosada05/lanparty/services"
)

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var (
		databaseURL string
		input       services.SignUpInput
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := resolveDatabaseURL(databaseURL)
			if url == "" {
				return errors.New("DATABASE_URL is not set")
			}
			if input.Password == "" {
				input.Password = os.Getenv("ADMIN_PASSWORD")
			}
			logger := newLogger(slog.LevelInfo)

			conn, err := db.Connect(url, 5*time.Second, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			users := services.NewUserService(
				repositories.NewPostgresUserRepository(conn),
				repositories.NewPostgresRegistrationRepository(conn),
				nil, nil, logger,
			)
			user, err := users.CreateAdmin(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "administrator %q created with id %d\n", user.Username, user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	create.Flags().StringVar(&input.Username, "username", "", "login name")
	create.Flags().StringVar(&input.DisplayName, "display-name", "", "display name (default username)")
	create.Flags().StringVar(&input.Password, "password", "", "password (default $ADMIN_PASSWORD)")
	_ = create.MarkFlagRequired("username")

	cmd.AddCommand(create)
	return cmd
}
