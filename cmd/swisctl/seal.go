package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"swisctl/pkg/secret"
)

// runSeal encrypts a password read from stdin into a blob that Reconstruct
// accepts with the same key.
func runSeal(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("swisctl seal", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	keyText := flagSet.StringP("key", "k", "", "key fragments: 16 decimal bytes")
	delimiter := flagSet.String("key-delimiter", secret.DefaultDelimiter, "separator between key fragments")
	out := flagSet.StringP("out", "o", "", "write the blob here instead of stdout")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	key, err := secret.ParseKey(*keyText, *delimiter)
	if err != nil {
		return err
	}

	password, err := readPassword(stdin, stderr)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("%w: empty password", secret.ErrConfig)
	}

	blob, err := secret.Seal(password, key)
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = fmt.Fprintln(stdout, blob)
		return err
	}
	if err := os.WriteFile(*out, []byte(blob), 0o600); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

// readPassword prompts without echo on a terminal and otherwise takes the
// first line of stdin.
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
