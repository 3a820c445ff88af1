package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const minKeyLength = 16

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	key, err := readKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if len(key) < minKeyLength {
		fmt.Fprintf(os.Stderr, "Error: client key must be at least %d characters\n", minKeyLength)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword(key, *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: failed to hash client key:", err)
		os.Exit(1)
	}

	fmt.Printf("AUTH_CLIENT_KEY_HASH=%s\n", hash)
}

// readKey prompts twice on a terminal and reads one line otherwise.
func readKey() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadBytes('\n')
		if err != nil && len(line) == 0 {
			return nil, fmt.Errorf("read client key: %w", err)
		}
		return bytes.TrimSpace(line), nil
	}

	fmt.Fprint(os.Stderr, "Client key: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read client key: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat client key: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read client key: %w", err)
	}

	if !bytes.Equal(first, second) {
		return nil, fmt.Errorf("client keys do not match")
	}
	return bytes.TrimSpace(first), nil
}
