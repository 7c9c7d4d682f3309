package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jbweber/virtconn/internal/libvirt"
)

// prompter answers credential requests interactively.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // terminal descriptor for hidden input, -1 when in is not a terminal
}

func newPrompter(in *os.File, out io.Writer) *prompter {
	fd := -1
	if term.IsTerminal(int(in.Fd())) {
		fd = int(in.Fd())
	}
	return &prompter{in: bufio.NewReader(in), out: out, fd: fd}
}

// promptCredentials is the CredentialCallback used by the CLI. data must be
// a *prompter.
func promptCredentials(creds []*libvirt.Credential, data any) error {
	p, ok := data.(*prompter)
	if !ok || p == nil {
		return errors.New("no credential prompter available")
	}

	for _, c := range creds {
		if c.Type == libvirt.CredExternal {
			continue
		}

		prompt := c.Prompt
		if c.DefResult != "" {
			prompt = fmt.Sprintf("%s [%s]", prompt, c.DefResult)
		}
		fmt.Fprintf(p.out, "%s: ", prompt)

		answer, err := p.read(hidden(c.Type))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", strings.ToLower(c.Prompt), err)
		}
		if answer == "" {
			answer = c.DefResult
		}
		c.Result = answer
	}
	return nil
}

func hidden(t libvirt.CredentialType) bool {
	return t == libvirt.CredPassphrase || t == libvirt.CredNoEchoPrompt
}

func (p *prompter) read(hide bool) (string, error) {
	if hide && p.fd >= 0 {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
