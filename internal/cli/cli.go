package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/session"
	"github.com/utafrali/marketplace/pkg/logger"
)

const usage = `usage: marketctl [-api URL] [-store FILE] <command>

commands:
  login -email EMAIL [-password PASSWORD]   sign in and store the session token
  whoami [-verify]                          show the stored session
  logout                                    forget the stored session
`

// Env is what a command runs against.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultStorePath is where the session token is kept unless -store or
// MARKETCTL_STORE says otherwise.
func DefaultStorePath(getenv func(string) string) string {
	if p := getenv("MARKETCTL_STORE"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "marketctl", "session.json")
}

// Run executes one marketctl invocation and returns the process exit code.
func Run(ctx context.Context, args []string, env Env) int {
	if env.Getenv == nil {
		env.Getenv = os.Getenv
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.Logger == nil {
		env.Logger = logger.Discard()
	}

	global := flag.NewFlagSet("marketctl", flag.ContinueOnError)
	global.SetOutput(env.Stderr)
	global.Usage = func() { fmt.Fprint(env.Stderr, usage) }
	apiURL := global.String("api", firstNonEmpty(env.Getenv("MARKETPLACE_API"), "http://localhost:8080"), "marketplace API base URL")
	storePath := global.String("store", DefaultStorePath(env.Getenv), "session file")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	client := session.NewClient(
		session.NewFileStore(*storePath),
		// The CLI has no signing secret; the server re-verifies every token.
		session.DecoderFunc(auth.ParseUnverified),
		session.WithClientClock(env.Now),
		session.WithLogger(env.Logger),
	)
	api := NewAPI(*apiURL, nil, env.Logger)

	cmd, rest := global.Arg(0), global.Args()[1:]
	var err error
	switch cmd {
	case "login":
		err = login(ctx, rest, env, api, client)
	case "whoami":
		err = whoami(ctx, rest, env, api, client)
	case "logout":
		client.Logout(ctx)
		fmt.Fprintln(env.Stdout, "logged out")
	default:
		fmt.Fprintf(env.Stderr, "unknown command %q\n", cmd)
		global.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "marketctl %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func login(ctx context.Context, args []string, env Env, api *API, client *session.Client) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}
	if *password == "" {
		line, err := bufio.NewReader(env.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	token, err := api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	state, err := client.Login(ctx, token)
	if err != nil {
		return err
	}
	printState(env.Stdout, state)
	return nil
}

func whoami(ctx context.Context, args []string, env Env, api *API, client *session.Client) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	verify := fs.Bool("verify", false, "ask the server to verify the stored token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	state := client.Rehydrate(ctx)
	if state.IsAuthorized() && *verify {
		token, err := client.Token(ctx)
		if err != nil {
			return err
		}
		if _, err := api.Session(ctx, token); err != nil {
			state = client.Logout(ctx)
			printState(env.Stdout, state)
			return fmt.Errorf("server rejected the stored session: %w", err)
		}
	}
	printState(env.Stdout, state)
	return nil
}

func printState(w io.Writer, state session.AppContext) {
	if !state.IsAuthorized() {
		if state.Auth.Expired {
			fmt.Fprintln(w, "guest (session expired, please log in again)")
			return
		}
		fmt.Fprintln(w, "guest")
		return
	}
	c := state.Auth.Claims
	fmt.Fprintf(w, "logged in as %s <%s>\n", c.Username, c.Email)
	fmt.Fprintf(w, "  account: %s\n", c.ID)
	if c.ExpiresAt != nil {
		fmt.Fprintf(w, "  expires: %s\n", c.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
