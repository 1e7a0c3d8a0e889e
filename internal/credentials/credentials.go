// Package credentials supplies the manager host, username and password.
package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/vxkit/vxh/internal/config"
	"github.com/vxkit/vxh/internal/vxrail"
)

// ErrIncomplete is returned when no provider could fill every field.
var ErrIncomplete = errors.New("incomplete credentials")

// Provider fills missing fields of partial credentials. Fields already set
// must be left alone.
type Provider interface {
	Fill(ctx context.Context, partial vxrail.Credentials) (vxrail.Credentials, error)
}

// Static supplies fixed values, typically from flags and config.
type Static vxrail.Credentials

// Fill implements Provider.
func (s Static) Fill(_ context.Context, c vxrail.Credentials) (vxrail.Credentials, error) {
	return merge(c, vxrail.Credentials(s)), nil
}

// Env reads VXRAIL_HOST, VXRAIL_USERNAME and VXRAIL_PASSWORD.
type Env struct {
	Getenv func(string) string
}

// Fill implements Provider.
func (e Env) Fill(_ context.Context, c vxrail.Credentials) (vxrail.Credentials, error) {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return merge(c, vxrail.Credentials{
		Host:     strings.TrimSpace(getenv(config.EnvHost)),
		Username: strings.TrimSpace(getenv(config.EnvUsername)),
		Secret:   getenv(config.EnvPassword),
	}), nil
}

// Prompt asks for missing fields on a terminal. The password is read without
// echo when In is a terminal.
type Prompt struct {
	In  *os.File
	Out io.Writer

	// Terminal hooks, replaced in tests.
	isTerminal func(fd int) bool
	readSecret func(fd int) ([]byte, error)
}

// NewPrompt returns a prompt on stdin, writing questions to stderr.
func NewPrompt() *Prompt {
	return &Prompt{In: os.Stdin, Out: os.Stderr, isTerminal: term.IsTerminal, readSecret: term.ReadPassword}
}

// Interactive reports whether the prompt can ask anything.
func (p *Prompt) Interactive() bool {
	if p.In == nil {
		return false
	}
	isTerminal := p.isTerminal
	if isTerminal == nil {
		isTerminal = term.IsTerminal
	}
	return isTerminal(int(p.In.Fd()))
}

// Fill implements Provider. It asks nothing when c is already complete.
func (p *Prompt) Fill(ctx context.Context, c vxrail.Credentials) (vxrail.Credentials, error) {
	if c.Complete() {
		return c, nil
	}
	if !p.Interactive() {
		return c, nil
	}
	if err := ctx.Err(); err != nil {
		return c, err
	}

	reader := bufio.NewReader(p.In)
	var err error
	if c.Host == "" {
		if c.Host, err = p.ask(reader, "VxRail Manager IP or hostname: "); err != nil {
			return c, err
		}
	}
	if c.Username == "" {
		if c.Username, err = p.ask(reader, "Username: "); err != nil {
			return c, err
		}
	}
	if c.Secret == "" {
		fmt.Fprint(p.Out, "Password: ")
		read := p.readSecret
		if read == nil {
			read = term.ReadPassword
		}
		secret, err := read(int(p.In.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return c, fmt.Errorf("reading password: %w", err)
		}
		c.Secret = string(secret)
	}
	return c, nil
}

func (p *Prompt) ask(r *bufio.Reader, question string) (string, error) {
	fmt.Fprint(p.Out, question)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Chain runs providers in order until the credentials are complete.
type Chain []Provider

// Fill implements Provider.
func (ch Chain) Fill(ctx context.Context, c vxrail.Credentials) (vxrail.Credentials, error) {
	for _, p := range ch {
		if c.Complete() {
			break
		}
		var err error
		if c, err = p.Fill(ctx, c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Resolve runs the chain and fails if anything is still missing.
func Resolve(ctx context.Context, providers ...Provider) (vxrail.Credentials, error) {
	c, err := Chain(providers).Fill(ctx, vxrail.Credentials{})
	if err != nil {
		return c, err
	}
	if missing := Missing(c); len(missing) > 0 {
		return c, fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return c, nil
}

// Missing names the empty fields of c.
func Missing(c vxrail.Credentials) []string {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Secret == "" {
		missing = append(missing, "password")
	}
	return missing
}

func merge(c, from vxrail.Credentials) vxrail.Credentials {
	if c.Host == "" {
		c.Host = from.Host
	}
	if c.Username == "" {
		c.Username = from.Username
	}
	if c.Secret == "" {
		c.Secret = from.Secret
	}
	return c
}
