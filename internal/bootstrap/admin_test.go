package bootstrap

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krapi-cms/krapi-core/internal/domain/repository"
	"github.com/krapi-cms/krapi-core/internal/security/password"
	"github.com/krapi-cms/krapi-core/internal/services/admin"
	"github.com/krapi-cms/krapi-core/internal/store/storetest"
)

func newAdmins(t *testing.T) admin.Service {
	t.Helper()
	return admin.NewService(admin.Deps{
		Store:  storetest.NewManager(t),
		Hasher: password.Argon2id{Params: password.Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}},
	})
}

func TestCheckAndCreateAdmin_NonInteractive(t *testing.T) {
	ctx := context.Background()
	admins := newAdmins(t)
	var out bytes.Buffer

	require.True(t, ShouldRunBootstrap(ctx, admins))

	created, err := CheckAndCreateAdmin(ctx, AdminBootstrapConfig{
		Admins:        admins,
		SkipPrompt:    true,
		AdminEmail:    "root@example.com",
		AdminPassword: "long-enough",
		Out:           &out,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	require.Equal(t, "admin", created.Username)
	require.Equal(t, repository.AdminRoleMaster, created.Role)
	require.Contains(t, out.String(), created.ID)

	require.False(t, ShouldRunBootstrap(ctx, admins))

	again, err := CheckAndCreateAdmin(ctx, AdminBootstrapConfig{Admins: admins, SkipPrompt: true, Out: &out})
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestCheckAndCreateAdmin_SkipPromptNeedsCredentials(t *testing.T) {
	_, err := CheckAndCreateAdmin(context.Background(), AdminBootstrapConfig{
		Admins:     newAdmins(t),
		SkipPrompt: true,
		Out:        &bytes.Buffer{},
	})
	require.Error(t, err)
}

func TestCheckAndCreateAdmin_Prompt(t *testing.T) {
	ctx := context.Background()
	admins := newAdmins(t)

	passwords := []string{"s3cret-pass", "s3cret-pass"}
	created, err := CheckAndCreateAdmin(ctx, AdminBootstrapConfig{
		Admins: admins,
		In:     strings.NewReader("ops\nops@example.com\n"),
		Out:    &bytes.Buffer{},
		ReadPassword: func() ([]byte, error) {
			p := passwords[0]
			passwords = passwords[1:]
			return []byte(p), nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "ops", created.Username)

	_, err = admins.VerifyPassword(ctx, "ops", "s3cret-pass")
	require.NoError(t, err)
}

func TestCheckAndCreateAdmin_PromptMismatch(t *testing.T) {
	answers := []string{"one-password", "another-one"}
	_, err := CheckAndCreateAdmin(context.Background(), AdminBootstrapConfig{
		Admins: newAdmins(t),
		In:     strings.NewReader("\nops@example.com\n"),
		Out:    &bytes.Buffer{},
		ReadPassword: func() ([]byte, error) {
			p := answers[0]
			answers = answers[1:]
			return []byte(p), nil
		},
	})
	require.ErrorContains(t, err, "passwords do not match")
}
