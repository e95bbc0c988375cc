package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"golang.org/x/term"

	"weekspend/internal/auth"
	"weekspend/internal/backend"
	"weekspend/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	emailFlag := fs.String("email", "", "Account email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	backendFlag := fs.String("backend", "", "Data backend override (sqlite or postgres)")
	dbPath := fs.String("db", "", "SQLite database path override")

	if err := fs.Parse(args); err != nil {
		return err
	}

	address := strings.ToLower(strings.TrimSpace(*emailFlag))
	if address == "" {
		fmt.Fprintln(stdout, "Usage: adduser -email <address> [-password <password>] [-backend <sqlite|postgres>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return fmt.Errorf("invalid email address: %s", address)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if len(strings.TrimSpace(password)) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	cfg := config.Load()
	if *backendFlag != "" {
		cfg.DataBackend = *backendFlag
	} else if cfg.DataBackend == "local" {
		// Accounts only exist on the multi-user backends.
		cfg.DataBackend = "sqlite"
	}
	if *dbPath != "" {
		cfg.SQLiteDBPath = *dbPath
	}

	be, err := backend.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer be.Close()

	if be.Users == nil {
		return fmt.Errorf("backend %s does not support accounts", cfg.DataBackend)
	}

	ctx := context.Background()
	if existing, err := be.Users.GetUserByEmail(ctx, address); err == nil && existing.ID != "" {
		return fmt.Errorf("user %s already exists", address)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := be.Users.CreateUser(ctx, address, hash)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", user.Email, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Prompt without echo only on a real terminal.
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
