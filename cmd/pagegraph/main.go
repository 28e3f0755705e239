package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hanpama/pagegraph/internal/auth"
	"github.com/hanpama/pagegraph/internal/cms"
	"github.com/hanpama/pagegraph/internal/cmsrt"
	"github.com/hanpama/pagegraph/internal/logging"
	"github.com/hanpama/pagegraph/internal/schema"
	"github.com/hanpama/pagegraph/internal/store/mongostore"
	"github.com/rs/zerolog/log"
)

const rootUsage = `pagegraph: GraphQL API for CMS pages and page types

USAGE:
  pagegraph <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server
  print-schema     Print the GraphQL schema as SDL
  seed             Load a fixture into MongoDB
  token            Issue a bearer token for the dashboard
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>            HTTP listen address (default: :8080)
  -server.pretty                 Pretty-print JSON responses
  -server.timeout <duration>     Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body <bytes>       Maximum request body size (default: 1048576)
  -server.cors-origin <origin>   Allow a CORS origin. Repeatable; * allows any
  -store.driver <name>           memory or mongo (default: memory)
  -store.fixture <file>          JSON fixture for the memory store (default: built-in)
  -mongo.uri <uri>               MongoDB connection string (default: mongodb://localhost:27017)
  -mongo.database <name>         MongoDB database (default: pagegraph)
  -cache.redis-addr <addr>       Redis address of the shared page type cache
  -cache.retention <duration>    Page type cache lifetime; 0 disables the cache (default: 1m)
  -loader.max-batch <n>          Maximum keys per loader batch; 0 means unbounded
  -graphql.introspection <bool>  Enable GraphQL introspection (default: true)
  -auth.secret <secret>          HS256 secret of bearer tokens; empty means anonymous only
  -auth.issuer <name>            Expected token issuer (default: pagegraph)
  -log.level <level>             debug, info, warn or error (default: info)
  -log.pretty                    Human-readable logs
  -otel.endpoint <addr>          OTLP collector endpoint
  -otel.service <name>           OpenTelemetry service name (default: pagegraph)
  -metrics.path <path>           Prometheus endpoint; empty disables it (default: /metrics)
`

const printSchemaUsage = `print-schema FLAGS:
  -out <file>   Write SDL to file (default: stdout)
`

const seedUsage = `seed FLAGS:
  -store.fixture <file>     JSON fixture (default: built-in)
  -mongo.uri <uri>          MongoDB connection string (default: mongodb://localhost:27017)
  -mongo.database <name>    MongoDB database (default: pagegraph)
`

const tokenUsage = `token FLAGS:
  -auth.secret <secret>     HS256 secret (required)
  -auth.issuer <name>       Token issuer (default: pagegraph)
  -subject <name>           Token subject (required)
  -permission <name>        Grant a permission, e.g. MANAGE_PAGES. Repeatable
  -ttl <duration>           Token lifetime (default: 24h)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("pagegraph")
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("pagegraph", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs)
	case "print-schema":
		return cmdPrintSchema(cmdArgs, stdout)
	case "seed":
		return cmdSeed(ctx, cmdArgs)
	case "token":
		return cmdToken(cmdArgs, stdout)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "print-schema":
		fmt.Fprint(stdout, printSchemaUsage)
	case "seed":
		fmt.Fprint(stdout, seedUsage)
	case "token":
		fmt.Fprint(stdout, tokenUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdPrintSchema(args []string, stdout io.Writer) error {
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, printSchemaUsage)
		return err
	}

	sch, err := cmsrt.LoadSchema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Fprint(stdout, sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func cmdSeed(ctx context.Context, args []string) error {
	fixture := ""
	uri := "mongodb://localhost:27017"
	database := "pagegraph"
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&fixture, "store.fixture", fixture, "JSON fixture")
	fs.StringVar(&uri, "mongo.uri", uri, "MongoDB connection string")
	fs.StringVar(&database, "mongo.database", database, "MongoDB database")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, seedUsage)
		return err
	}

	f, err := loadFixture(fixture)
	if err != nil {
		return err
	}
	store, disconnect, err := mongostore.Connect(ctx, uri, database)
	if err != nil {
		return err
	}
	defer func() { _ = disconnect(context.Background()) }()
	if err := store.Seed(ctx, f); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	logger := logging.NewLogger("seed")
	logger.Info().
		Str("database", database).
		Int("pages", len(f.Pages)).
		Int("page_types", len(f.PageTypes)).
		Msg("fixture loaded")
	return nil
}

func loadFixture(path string) (*cms.Fixture, error) {
	if path == "" {
		return cms.DefaultFixture(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return cms.ReadFixture(file)
}

func cmdToken(args []string, stdout io.Writer) error {
	secret := ""
	issuer := "pagegraph"
	subject := ""
	ttl := 24 * time.Hour
	var perms stringListFlag
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&secret, "auth.secret", secret, "HS256 secret")
	fs.StringVar(&issuer, "auth.issuer", issuer, "Token issuer")
	fs.StringVar(&subject, "subject", subject, "Token subject")
	fs.Var(&perms, "permission", "Grant a permission")
	fs.DurationVar(&ttl, "ttl", ttl, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, tokenUsage)
		return err
	}
	if secret == "" || subject == "" {
		fmt.Fprint(os.Stderr, tokenUsage)
		return fmt.Errorf("-auth.secret and -subject are required")
	}

	granted := make([]auth.Permission, len(perms))
	for i, p := range perms {
		switch perm := auth.Permission(strings.ToUpper(p)); perm {
		case auth.ManagePages, auth.ManagePageTypesAndAttributes:
			granted[i] = perm
		default:
			return fmt.Errorf("unknown permission %q", p)
		}
	}
	token, err := auth.NewAuthenticator(secret, issuer).Issue(subject, granted, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(stdout, token)
	return nil
}
