package main

import (
	"errors"

	"github.com/spf13/cobra"

	"mentora-auth/internal/config"
	"mentora-auth/internal/service"
)

// newCreateAdminCmd crea una cuenta admin confirmada. El registro publico no
// puede asignar ese rol.
func newCreateAdminCmd(d deps) *cobra.Command {
	var input service.RegisterInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a confirmed admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errDatabaseURLRequired
			}

			users, closeFn, err := d.openUsers(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer closeFn()

			creds, err := service.NewCredentialService(d.logger, users, nil, nil, service.CredentialConfig{
				AccessTokenSecret:  cfg.AccessTokenSecret,
				RefreshTokenSecret: cfg.RefreshTokenSecret,
				AccessTokenTTL:     cfg.AccessTokenTTL,
				RefreshTokenTTL:    cfg.RefreshTokenTTL,
				Issuer:             cfg.TokenIssuer,
				BcryptCost:         cfg.BcryptCost,
				ResetCodeTTL:       cfg.ResetCodeTTL,
			})
			if err != nil {
				return err
			}

			user, err := creds.CreateAdmin(cmd.Context(), input)
			if err != nil {
				var domainErr *service.Error
				if errors.As(err, &domainErr) && domainErr.ClientFault() {
					return errors.New(domainErr.Message)
				}
				return err
			}
			cmd.Printf("Admin created: %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&input.Password, "password", "", "admin password")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
