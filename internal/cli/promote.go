package cli

import (
	"fmt"
	"robocomp/internal/app/service"
	"robocomp/internal/domain/model"
	"robocomp/internal/domain/repository"
	"robocomp/internal/platform/config"

	"github.com/spf13/cobra"
)

func newPromoteCmd(cfg func() *config.Config) *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Set the role of an existing user",
		Long: `Promote changes a stored user's role without an authorization check. Use
it to bootstrap the first admin; the user must have signed in once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), cfg())
			if err != nil {
				return err
			}
			defer db.Close()

			activity := service.NewActivityService(repository.NewPgActivityRepository(db))
			users := service.NewUserService(repository.NewPgUserRepository(db), activity)
			if err := users.AssignRole(cmd.Context(), email, role); err != nil {
				return err
			}
			activity.Log(cmd.Context(), nil, model.ActivityUserRole, email+" -> "+role+" via robocompctl")
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", email, role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email of the user to promote (required)")
	cmd.Flags().StringVar(&role, "role", model.RoleAdmin, "Role to assign")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
