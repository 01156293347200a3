package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/password"
	"github.com/MrEthical07/authsession/store/sqlite"
)

type createPrincipalOptions struct {
	database string
	email    string
	password string
	active   bool
	admin    bool
}

// NewCreatePrincipalCmd creates the create-principal subcommand.
func NewCreatePrincipalCmd() *cobra.Command {
	opts := &createPrincipalOptions{}

	cmd := &cobra.Command{
		Use:   "create-principal",
		Short: "Create a principal with an argon2id password hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := createPrincipal(cmd, opts)
			if err != nil {
				return err
			}
			cmd.Println(id)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.database, "database", "authsession.db", "SQLite database path")
	cmd.Flags().StringVar(&opts.email, "email", "", "principal email")
	cmd.Flags().StringVar(&opts.password, "password", "", "principal password")
	cmd.Flags().BoolVar(&opts.active, "active", false, "mark the principal active")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "grant the admin role")
	return cmd
}

func createPrincipal(cmd *cobra.Command, opts *createPrincipalOptions) (string, error) {
	if opts.email == "" || opts.password == "" {
		return "", errors.New("--email and --password are required")
	}

	hasher, err := password.NewArgon2(password.DefaultArgon2Config())
	if err != nil {
		return "", err
	}
	hash, err := hasher.Hash(opts.password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	store, err := sqlite.NewStore(opts.database)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.ApplyMigrations(); err != nil {
		return "", fmt.Errorf("migrate database: %w", err)
	}

	role := authsession.RoleOrdinary
	if opts.admin {
		role = authsession.RoleAdmin
	}
	p := authsession.Principal{
		ID:           uuid.NewString(),
		Email:        opts.email,
		PasswordHash: hash,
		Active:       opts.active,
		Role:         role,
	}
	if err := store.CreatePrincipal(cmd.Context(), p); err != nil {
		return "", fmt.Errorf("create principal: %w", err)
	}
	return p.ID, nil
}
