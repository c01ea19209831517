package passphrase

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSource(env map[string]string, tty bool, answers ...string) *Source {
	s := NewSource("SINK_PASS", "funder keystore")
	s.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	s.isTerminal = func() bool { return tty }
	s.readSecret = func() ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no input")
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
	s.prompt = io.Discard
	return s
}

func TestEnvironmentWins(t *testing.T) {
	s := testSource(map[string]string{"SINK_PASS": "from-env"}, true, "typed")
	got, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "from-env", got)
}

func TestEmptyEnvironmentRejected(t *testing.T) {
	_, err := testSource(map[string]string{"SINK_PASS": "  "}, true).Get()
	require.ErrorContains(t, err, "set but empty")
}

func TestNoTerminal(t *testing.T) {
	_, err := testSource(nil, false).Get()
	require.ErrorContains(t, err, "SINK_PASS")
}

func TestPromptIsCached(t *testing.T) {
	s := testSource(nil, true, "typed")
	first, err := s.Get()
	require.NoError(t, err)
	second, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "typed", first)
	require.Equal(t, first, second)
}

func TestConfirmation(t *testing.T) {
	got, err := testSource(nil, true, "abc", "abc").WithConfirmation().Get()
	require.NoError(t, err)
	require.Equal(t, "abc", got)

	_, err = testSource(nil, true, "abc", "abd").WithConfirmation().Get()
	require.ErrorIs(t, err, ErrMismatch)

	_, err = testSource(nil, true, " ").Get()
	require.ErrorContains(t, err, "cannot be empty")
}
