package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/krapi-cms/krapi-core/internal/config"
	"github.com/krapi-cms/krapi-core/internal/observability/logger"
)

// version se sobreescribe con -ldflags "-X main.version=..."
var version = "dev"

type globals struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{
		configPath: envOr("KRAPI_CONFIG", ""),
		envFile:    envOr("KRAPI_ENV_FILE", ".env"),
	}

	root := &cobra.Command{
		Use:           "krapi",
		Short:         "Core de sesiones y ruteo multi-tenant de KRAPI",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", g.configPath, "Ruta al YAML de configuración (env KRAPI_CONFIG)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", g.envFile, "Archivo .env opcional (env KRAPI_ENV_FILE)")

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newAdminCmd(g),
		newSessionsCmd(g),
	)
	return root
}

// load carga .env, configuración y logger global.
func (g *globals) load() (*config.Config, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", g.envFile, err)
		}
	}

	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}

	logger.Init(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.Log.Level,
		Service: "krapi",
		Version: version,
	})
	return cfg, nil
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
