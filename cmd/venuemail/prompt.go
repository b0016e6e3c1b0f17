package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"venuemail/internal/config"
	"venuemail/internal/dispatch"
)

// stdin is shared by every prompt so that input buffered by one read is not
// lost to the next.
var stdin = bufio.NewReader(os.Stdin)

// credentials resolves the sender identity from -user, the environment and,
// on a terminal, a no-echo prompt. Nothing is written to disk.
func credentials(user string) (config.Credentials, error) {
	c := config.CredentialsFromEnv(os.Getenv)
	if u := strings.TrimSpace(user); u != "" {
		c.User = u
	}
	if c.Complete() {
		return c, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return c, fmt.Errorf("%w: set %s and %s", dispatch.ErrNoCredentials, config.EnvSMTPUser, config.EnvSMTPPassword)
	}
	if c.User == "" {
		fmt.Fprint(os.Stderr, "Sender email: ")
		line, err := readLine(stdin)
		if err != nil {
			return c, err
		}
		c.User = line
	}
	if c.Password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s: ", c.User)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return c, err
		}
		c.Password = string(pw)
	}
	if !c.Complete() {
		return c, dispatch.ErrNoCredentials
	}
	return c, nil
}

// confirm asks a yes/no question on the terminal; anything but y/yes is no.
func confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("confirmation needs a terminal; pass -yes")
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	line, err := readLine(stdin)
	if err != nil {
		return false, err
	}
	return isYes(line), nil
}

// readLine returns the next line without its terminator. A final line with
// no newline is still returned.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
