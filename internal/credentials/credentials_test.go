package credentials

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vxkit/vxh/internal/config"
	"github.com/vxkit/vxh/internal/vxrail"
)

func envFrom(m map[string]string) Env {
	return Env{Getenv: func(k string) string { return m[k] }}
}

func TestChain_FlagsBeatEnv(t *testing.T) {
	env := envFrom(map[string]string{
		config.EnvHost:     "env-host",
		config.EnvUsername: "env-user",
		config.EnvPassword: "env-secret",
	})

	c, err := Resolve(context.Background(), Static{Host: "flag-host"}, env)
	require.NoError(t, err)
	assert.Equal(t, "flag-host", c.Host)
	assert.Equal(t, "env-user", c.Username)
	assert.Equal(t, "env-secret", c.Secret)
}

func TestResolve_Incomplete(t *testing.T) {
	_, err := Resolve(context.Background(), Static{Host: "h"}, envFrom(nil))
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "username, password")
}

func TestChain_StopsWhenComplete(t *testing.T) {
	called := false
	tail := providerFunc(func(ctx context.Context, c vxrail.Credentials) (vxrail.Credentials, error) {
		called = true
		return c, nil
	})
	_, err := Resolve(context.Background(), Static{Host: "h", Username: "u", Secret: "s"}, tail)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestChain_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	failing := providerFunc(func(ctx context.Context, c vxrail.Credentials) (vxrail.Credentials, error) {
		return c, boom
	})
	_, err := Resolve(context.Background(), failing)
	assert.ErrorIs(t, err, boom)
}

type providerFunc func(context.Context, vxrail.Credentials) (vxrail.Credentials, error)

func (f providerFunc) Fill(ctx context.Context, c vxrail.Credentials) (vxrail.Credentials, error) {
	return f(ctx, c)
}

func pipeWith(t *testing.T, input string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestPrompt_AsksForMissingFields(t *testing.T) {
	var out bytes.Buffer
	p := &Prompt{
		In:         pipeWith(t, "vxm.example.net\nadmin\n"),
		Out:        &out,
		isTerminal: func(int) bool { return true },
		readSecret: func(int) ([]byte, error) { return []byte("s3cret"), nil },
	}

	c, err := p.Fill(context.Background(), vxrail.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "vxm.example.net", c.Host)
	assert.Equal(t, "admin", c.Username)
	assert.Equal(t, "s3cret", c.Secret)
	assert.Contains(t, out.String(), "Password:")
	assert.NotContains(t, out.String(), "s3cret")
}

func TestPrompt_OnlyMissingPassword(t *testing.T) {
	var out bytes.Buffer
	p := &Prompt{
		In:         pipeWith(t, ""),
		Out:        &out,
		isTerminal: func(int) bool { return true },
		readSecret: func(int) ([]byte, error) { return []byte("pw"), nil },
	}
	c, err := p.Fill(context.Background(), vxrail.Credentials{Host: "h", Username: "u"})
	require.NoError(t, err)
	assert.Equal(t, "pw", c.Secret)
	assert.NotContains(t, out.String(), "Username")
}

func TestPrompt_NotATerminal(t *testing.T) {
	var out bytes.Buffer
	p := &Prompt{In: pipeWith(t, "ignored\n"), Out: &out, isTerminal: func(int) bool { return false }}

	c, err := p.Fill(context.Background(), vxrail.Credentials{Host: "h"})
	require.NoError(t, err)
	assert.Empty(t, c.Username)
	assert.Empty(t, out.String())
}
