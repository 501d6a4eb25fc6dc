package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/barambur26/go-aidock-client/authapi"
	"github.com/barambur26/go-aidock-client/internal/config"
	"github.com/barambur26/go-aidock-client/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	username := pflag.StringP("username", "u", "", "username or email")
	password := pflag.StringP("password", "p", "", "password")
	remember := pflag.Bool("remember", false, "persist the session across restarts")
	baseURL := pflag.String("base-url", "", "override the API base URL")
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}

	logger := newLogger(cfg.LogLevel)
	api := authapi.NewClient(cfg.BaseURL,
		authapi.WithTimeout(cfg.RequestTimeout),
		authapi.WithLogger(logger),
	)
	manager, err := session.NewManager(api,
		session.NewFileTokenStore(cfg.DataDir, session.WithStoreLogger(logger)),
		session.WithLogger(logger),
		session.WithSafetyMargin(cfg.RefreshMargin),
	)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch args[0] {
	case "login":
		return login(ctx, manager, *username, *password, *remember)
	case "me":
		return me(ctx, manager)
	case "status":
		return status(manager)
	case "logout":
		manager.Logout(ctx)
		fmt.Println("Logged out.")
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func login(ctx context.Context, manager *session.Manager, username, password string, remember bool) error {
	rec, err := manager.Login(ctx, session.Credentials{
		Username:   username,
		Password:   password,
		RememberMe: remember,
	})
	if err != nil {
		return err
	}
	name := username
	if rec.User != nil {
		name = rec.User.Username
	}
	fmt.Printf("Logged in as %s, session expires %s.\n", name, rec.ExpiresAt.Format(time.RFC3339))
	return nil
}

func me(ctx context.Context, manager *session.Manager) error {
	profile, err := manager.Profile(ctx)
	if err != nil {
		return err
	}
	department := ""
	if profile.Department != nil {
		department = *profile.Department
	}
	fmt.Printf("%s <%s>\n", profile.Username, profile.Email)
	fmt.Printf("  role:        %s\n", profile.Role)
	fmt.Printf("  department:  %s\n", department)
	fmt.Printf("  permissions: %s\n", strings.Join(profile.Permissions, ", "))
	return nil
}

func status(manager *session.Manager) error {
	if !manager.IsAuthenticated() {
		fmt.Println("Not authenticated.")
		return nil
	}
	user := manager.CurrentUser()
	if user != nil {
		fmt.Printf("Authenticated as %s.\n", user.Username)
	} else {
		fmt.Println("Authenticated.")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

func usage() {
	displayAppname("AI Dock")
	fmt.Println("Usage: aidock [flags] <login|me|status|logout>")
	fmt.Println()
	pflag.PrintDefaults()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
