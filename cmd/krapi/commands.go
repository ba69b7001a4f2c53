package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krapi-cms/krapi-core/internal/app"
	"github.com/krapi-cms/krapi-core/internal/bootstrap"
	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
)

// withContainer arma el Container con el esquema listo y lo cierra al final.
func withContainer(cmd *cobra.Command, g *globals, fn func(c *app.Container) error) error {
	return withRawContainer(cmd, g, func(c *app.Container) error {
		if err := c.Store.EnsureReady(cmd.Context()); err != nil {
			return err
		}
		return fn(c)
	})
}

// withRawContainer como withContainer pero sin tocar el esquema.
func withRawContainer(cmd *cobra.Command, g *globals, fn func(c *app.Container) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	c, err := app.New(cmd.Context(), cfg, app.Options{Logger: logger.L(), Version: version})
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func newMigrateCmd(g *globals) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes del control plane",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRawContainer(cmd, g, func(c *app.Container) error {
				out := cmd.OutOrStdout()
				pending, err := c.Store.PendingMigrations(cmd.Context())
				if err != nil {
					return err
				}
				if dryRun {
					fmt.Fprintf(out, "pending migrations: %v\n", pending)
					return nil
				}
				if err := c.Store.EnsureReady(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(out, "applied migrations: %v\n", pending)
				fmt.Fprintf(out, "control plane schema up to date (%s)\n", c.Store.ControlPlaneDialect().Name())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Sólo lista las migraciones pendientes")
	return cmd
}

func newAdminCmd(g *globals) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Gestión de administradores del control plane",
	}

	var (
		username, email, password string
		nonInteractive            bool
	)
	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Crea el primer administrador si no existe ninguno",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, g, func(c *app.Container) error {
				_, err := bootstrap.CheckAndCreateAdmin(cmd.Context(), bootstrap.AdminBootstrapConfig{
					Admins:        c.Services.Admins,
					SkipPrompt:    nonInteractive,
					AdminUsername: username,
					AdminEmail:    email,
					AdminPassword: password,
					In:            cmd.InOrStdin(),
					Out:           cmd.OutOrStdout(),
				})
				return err
			})
		},
	}
	bootstrapCmd.Flags().StringVar(&username, "username", "", "Usuario (default admin)")
	bootstrapCmd.Flags().StringVar(&email, "email", "", "Email del administrador")
	bootstrapCmd.Flags().StringVar(&password, "password", "", "Contraseña (se pide por terminal si falta)")
	bootstrapCmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "No pedir datos por terminal")

	var (
		cUsername, cEmail, cPassword, cRole, cAccess string
		cPerms                                     []string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Crea un administrador",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, g, func(c *app.Container) error {
				u, err := c.Services.Admins.Create(cmd.Context(), repository.CreateAdminInput{
					Username:    cUsername,
					Email:       cEmail,
					Password:    cPassword,
					Role:        repository.AdminRole(cRole),
					AccessLevel: repository.AccessLevel(cAccess),
					Permissions: cPerms,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin created: id=%s username=%s role=%s\n", u.ID, u.Username, u.Role)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&cUsername, "username", "", "Usuario (requerido)")
	createCmd.Flags().StringVar(&cEmail, "email", "", "Email (requerido)")
	createCmd.Flags().StringVar(&cPassword, "password", "", "Contraseña (requerido)")
	createCmd.Flags().StringVar(&cRole, "role", string(repository.AdminRoleAdmin), "operator|admin|master")
	createCmd.Flags().StringVar(&cAccess, "access-level", string(repository.AccessLevelFull), "full|read_write|read_only")
	createCmd.Flags().StringSliceVar(&cPerms, "permission", nil, "Permiso (repetible)")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(bootstrapCmd, createCmd)
	return adminCmd
}

func newSessionsCmd(g *globals) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Mantenimiento de sesiones",
	}
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Desactiva sesiones expiradas y borra las antiguas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, g, func(c *app.Container) error {
				deactivated, deleted, err := c.Janitor.SweepOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deactivated=%d deleted=%d\n", deactivated, deleted)
				return nil
			})
		},
	}
	sessionsCmd.AddCommand(cleanupCmd)
	return sessionsCmd
}
