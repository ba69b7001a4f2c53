package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
)

// AdminStore es lo que el bootstrap necesita del servicio de admins.
type AdminStore interface {
	ListAll(ctx context.Context) ([]repository.AdminUser, error)
	Create(ctx context.Context, input repository.CreateAdminInput) (*repository.AdminUser, error)
}

// AdminBootstrapConfig holds configuration for admin bootstrap
type AdminBootstrapConfig struct {
	Admins     AdminStore
	SkipPrompt bool // sin prompts (CI, tests)

	// Pre-cargados (opcionales en modo interactivo)
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	// In/Out default a os.Stdin/os.Stdout. ReadPassword default lee sin eco
	// de la terminal.
	In           io.Reader
	Out          io.Writer
	ReadPassword func() ([]byte, error)
}

// CheckAndCreateAdmin crea el primer admin (rol master) si el control plane no
// tiene ninguno. Sin SkipPrompt pide las credenciales por terminal.
func CheckAndCreateAdmin(ctx context.Context, cfg AdminBootstrapConfig) (*repository.AdminUser, error) {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	hasAdmin, err := hasExistingAdmin(ctx, cfg.Admins)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing admins: %w", err)
	}
	if hasAdmin {
		fmt.Fprintln(out, "Admin user detected. Skipping bootstrap.")
		return nil, nil
	}

	fmt.Fprintln(out, "No admin users found in the control plane.")

	creds := credentials{
		username: strings.TrimSpace(cfg.AdminUsername),
		email:    strings.TrimSpace(cfg.AdminEmail),
		password: cfg.AdminPassword,
	}
	if cfg.SkipPrompt {
		if creds.email == "" || creds.password == "" {
			return nil, fmt.Errorf("SkipPrompt=true requires AdminEmail and AdminPassword")
		}
	} else {
		creds, err = promptAdminCredentials(cfg, out, creds)
		if err != nil {
			return nil, fmt.Errorf("failed to prompt admin credentials: %w", err)
		}
	}
	if creds.username == "" {
		creds.username = "admin"
	}

	admin, err := cfg.Admins.Create(ctx, repository.CreateAdminInput{
		Username:    creds.username,
		Email:       creds.email,
		Password:    creds.password,
		Role:        repository.AdminRoleMaster,
		AccessLevel: repository.AccessLevelFull,
		Permissions: []string{"*"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	fmt.Fprintf(out, "Admin created with ID: %s\n", admin.ID)
	fmt.Fprintf(out, "   Username: %s\n", admin.Username)
	fmt.Fprintf(out, "   Email: %s\n", admin.Email)
	return admin, nil
}

// ShouldRunBootstrap indica si no hay admins. Ante error retorna false.
func ShouldRunBootstrap(ctx context.Context, admins AdminStore) bool {
	hasAdmin, err := hasExistingAdmin(ctx, admins)
	if err != nil {
		return false
	}
	return !hasAdmin
}

func hasExistingAdmin(ctx context.Context, admins AdminStore) (bool, error) {
	if admins == nil {
		return false, errors.New("admin service not configured")
	}
	list, err := admins.ListAll(ctx)
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

type credentials struct {
	username, email, password string
}

func promptAdminCredentials(cfg AdminBootstrapConfig, out io.Writer, pre credentials) (credentials, error) {
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	readPassword := cfg.ReadPassword
	if readPassword == nil {
		readPassword = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }
	}
	reader := bufio.NewReader(in)
	c := pre

	if c.username == "" {
		fmt.Fprint(out, "Admin Username [admin]: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return c, err
		}
		c.username = strings.TrimSpace(line)
	}

	if c.email == "" {
		fmt.Fprint(out, "Admin Email: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return c, err
		}
		c.email = strings.TrimSpace(line)
	}
	if c.email == "" {
		return c, fmt.Errorf("email cannot be empty")
	}
	if !strings.Contains(c.email, "@") {
		return c, fmt.Errorf("invalid email format")
	}

	if c.password != "" {
		return c, nil
	}

	fmt.Fprint(out, "Admin Password: ")
	pw, err := readPassword()
	if err != nil {
		return c, err
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "Confirm Password: ")
	confirm, err := readPassword()
	if err != nil {
		return c, err
	}
	fmt.Fprintln(out)

	if string(pw) != string(confirm) {
		return c, fmt.Errorf("passwords do not match")
	}
	c.password = string(pw)
	return c, nil
}
