package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// parámetros baratos para tests
var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHashVerify_Argon2id(t *testing.T) {
	h, err := Hash(fast, "s3cret-pass")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=1024,t=1,p=1$"))

	require.True(t, Verify("s3cret-pass", h))
	require.False(t, Verify("wrong", h))

	h2, err := Hash(fast, "s3cret-pass")
	require.NoError(t, err)
	require.NotEqual(t, h, h2, "salt must differ")
}

func TestHash_Empty(t *testing.T) {
	_, err := Hash(fast, "")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestVerify_Bcrypt(t *testing.T) {
	b, err := bcrypt.GenerateFromPassword([]byte("legacy"), bcrypt.MinCost)
	require.NoError(t, err)
	require.True(t, Verify("legacy", string(b)))
	require.False(t, Verify("other", string(b)))
}

func TestVerify_Malformed(t *testing.T) {
	for _, h := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1024,t=1,p=1$onlysalt",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
	} {
		require.False(t, Verify("pw", h), h)
	}
}

func TestNeedsRehash(t *testing.T) {
	h, err := Hash(fast, "pw")
	require.NoError(t, err)
	require.False(t, NeedsRehash(fast, h))
	require.True(t, NeedsRehash(Default, h))
	require.True(t, NeedsRehash(fast, "$2a$10$abc"))
}

func TestPolicy(t *testing.T) {
	ok, _ := DefaultPolicy.Validate("longenough")
	require.True(t, ok)

	ok, reasons := DefaultPolicy.Validate("short")
	require.False(t, ok)
	require.Contains(t, reasons, "too_short")

	strict := Policy{MinLength: 4, RequireUpper: true, RequireDigit: true}
	ok, reasons = strict.Validate("abcd")
	require.False(t, ok)
	require.ElementsMatch(t, []string{"missing_upper", "missing_digit"}, reasons)
}
