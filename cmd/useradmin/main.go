package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"photo-library/internal/database"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
	minPasswordLength  = 8
)

// passwordReader reads one line without echo.
type passwordReader func() ([]byte, error)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "photo-library.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	ctx, cancelOp := context.WithTimeout(ctx, defaultTimeout)
	defer cancelOp()

	readPassword := func() ([]byte, error) {
		p, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		return p, err
	}

	if err := run(ctx, db, os.Args[1:], readPassword, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage()
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid arguments")

func run(ctx context.Context, db *database.Database, args []string, read passwordReader, out io.Writer) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "add":
		if len(rest) < 1 || len(rest) > 2 {
			return errUsage
		}
		root := ""
		if len(rest) == 2 {
			root = rest[1]
		}
		return addUser(ctx, db, rest[0], root, read, out)
	case "passwd":
		if len(rest) != 1 {
			return errUsage
		}
		return changePassword(ctx, db, rest[0], read, out)
	case "root":
		if len(rest) != 2 {
			return errUsage
		}
		return setRoot(ctx, db, rest[0], rest[1], out)
	case "list":
		return listUsers(ctx, db, out)
	default:
		return fmt.Errorf("unknown command %s: %w", sanitizeCommand(cmd), errUsage)
	}
}

// sanitizeCommand keeps only [a-zA-Z0-9_-] so the echoed command cannot
// inject terminal sequences.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Photo Library User Management")
	fmt.Println("")
	fmt.Println("Usage: useradmin <command> [arguments]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  add <username> [root]     - Create a user, optionally with a library root")
	fmt.Println("  passwd <username>         - Change a user's password")
	fmt.Println("  root <username> <path>    - Set the library root scanned for a user")
	fmt.Println("  list                      - List users and their roots")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func promptPassword(read passwordReader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	password, err := read()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Fprint(out, "Confirm Password: ")
	confirm, err := read()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if err := validatePassword(password, confirm); err != nil {
		return "", err
	}
	return string(password), nil
}

func validatePassword(password, confirm []byte) error {
	if !bytes.Equal(password, confirm) {
		return errors.New("passwords do not match")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// resolveRoot makes root absolute and requires an existing directory.
func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("library root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("library root %s is not a directory", abs)
	}
	return abs, nil
}

func addUser(ctx context.Context, db *database.Database, username, root string, read passwordReader, out io.Writer) error {
	root, err := resolveRoot(root)
	if err != nil {
		return err
	}
	if _, err := db.FindUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user %s already exists", username)
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	password, err := promptPassword(read, out)
	if err != nil {
		return err
	}
	user, err := db.CreateUser(ctx, username, password, root, false)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	fmt.Fprintf(out, "Created user %s (%s)\n", user.Username, user.ID)
	if root == "" {
		fmt.Fprintln(out, "No library root set; the user is skipped by scans until one is.")
	}
	return nil
}

func changePassword(ctx context.Context, db *database.Database, username string, read passwordReader, out io.Writer) error {
	user, err := db.FindUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("finding user %s: %w", username, err)
	}
	password, err := promptPassword(read, out)
	if err != nil {
		return err
	}
	if err := db.SetUserPassword(ctx, user.ID, password); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	fmt.Fprintln(out, "Password updated successfully.")
	return nil
}

func setRoot(ctx context.Context, db *database.Database, username, root string, out io.Writer) error {
	root, err := resolveRoot(root)
	if err != nil {
		return err
	}
	user, err := db.FindUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("finding user %s: %w", username, err)
	}
	if err := db.SetUserRootPath(ctx, user.ID, root); err != nil {
		return fmt.Errorf("updating root: %w", err)
	}
	fmt.Fprintf(out, "Library root of %s is now %s\n", user.Username, root)
	return nil
}

func listUsers(ctx context.Context, db *database.Database, out io.Writer) error {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tID\tROOT")
	for _, u := range users {
		root := u.RootPath
		if root == "" {
			root = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Username, u.ID, root)
	}
	return tw.Flush()
}
