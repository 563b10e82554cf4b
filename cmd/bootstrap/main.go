// Command bootstrap provisions an account and prints a fresh API key.
// It is meant for first deploys and CI, before anyone can sign in.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/repository"
	"github.com/recast/recast/internal/service"
)

// PasswordEnv supplies the account password without a prompt.
const PasswordEnv = "RECAST_BOOTSTRAP_PASSWORD"

type output struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Plan      string `json:"plan"`
	KeyID     string `json:"key_id"`
	Key       string `json:"key"`
	KeyPrefix string `json:"key_prefix"`
}

type options struct {
	databaseURL string
	email       string
	name        string
	plan        string
	keyName     string
	format      string
	migrate     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&opts.email, "email", "", "Account email (required)")
	flag.StringVar(&opts.name, "name", "Admin", "Display name for a new account")
	flag.StringVar(&opts.plan, "plan", model.PlanPro, "Plan to assign: free or pro")
	flag.StringVar(&opts.keyName, "key-name", "bootstrap", "API key name")
	flag.StringVar(&opts.format, "format", "plain", "Output format: plain or json")
	flag.BoolVar(&opts.migrate, "migrate", true, "Apply database migrations first")
	flag.Parse()

	if err := opts.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := run(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := render(os.Stdout, opts.format, out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o options) validate() error {
	var errs []error
	if o.databaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if strings.TrimSpace(o.email) == "" {
		errs = append(errs, errors.New("-email is required"))
	}
	if !slices.Contains(model.ValidPlans, o.plan) {
		errs = append(errs, fmt.Errorf("invalid plan %q", o.plan))
	}
	if o.format != "plain" && o.format != "json" {
		errs = append(errs, errors.New("invalid format; use plain or json"))
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, opts options) (*output, error) {
	repo, err := repository.New(ctx, opts.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	if opts.migrate {
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	accounts := service.NewAccountService(repo, logger)

	user, err := ensureUser(ctx, repo, accounts, opts)
	if err != nil {
		return nil, err
	}

	if user.Plan != opts.plan {
		if err := repo.UpdateUserPlan(ctx, user.ID, opts.plan); err != nil {
			return nil, err
		}
		user.Plan = opts.plan
	}

	id := &model.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Plan:   user.Plan,
		Method: model.AuthMethodSession,
	}
	created, err := accounts.CreateAPIKey(ctx, id, opts.keyName)
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	return &output{
		UserID:    user.ID,
		Email:     user.Email,
		Plan:      user.Plan,
		KeyID:     created.ID,
		Key:       created.Key,
		KeyPrefix: created.KeyPrefix,
	}, nil
}

// ensureUser returns the account for opts.email, signing it up when missing.
func ensureUser(ctx context.Context, repo *repository.Repository, accounts *service.AccountService, opts options) (*model.User, error) {
	user, err := repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(opts.email)))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	password, err := readPassword(os.Stdin, os.Stderr, os.Getenv(PasswordEnv))
	if err != nil {
		return nil, err
	}

	user, err = accounts.Signup(ctx, service.SignupInput{
		Email:    opts.email,
		Password: password,
		Name:     opts.name,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// readPassword prefers fromEnv, then prompts without echo on a terminal,
// then reads one line from a pipe.
func readPassword(in *os.File, prompt io.Writer, fromEnv string) (string, error) {
	if fromEnv != "" {
		return fromEnv, nil
	}

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password for new account: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password given; set %s or pipe one on stdin", PasswordEnv)
	}
	return line, nil
}

func render(w io.Writer, format string, out *output) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		_, err := fmt.Fprintln(w, out.Key)
		return err
	}
}
