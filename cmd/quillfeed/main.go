package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillfeed/quillfeed/cmd/quillfeed/cli"
	"github.com/quillfeed/quillfeed/internal/app"
	"github.com/quillfeed/quillfeed/internal/content"
	"github.com/quillfeed/quillfeed/internal/follow"
	"github.com/quillfeed/quillfeed/internal/identity"
	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/platform/cache"
	"github.com/quillfeed/quillfeed/internal/platform/db"
	"github.com/quillfeed/quillfeed/internal/roles"
	"github.com/quillfeed/quillfeed/internal/tokens"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping ops startup")
		return
	}

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	exitCode := 2
	switch os.Args[1] {
	case "roles-sync":
		exitCode = runRolesSync(ctx, cfg, logger, os.Args[2:])
	case "mirror-backfill":
		exitCode = runMirrorBackfill(ctx, cfg, logger, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
	}
	stop()
	os.Exit(exitCode)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: quillfeed <command> [arguments]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  roles-sync       reconcile the stored role catalog against the built-in definitions")
	fmt.Fprintln(w, "  mirror-backfill  re-emit audit snapshots for all entities to the ledger")
}

func runRolesSync(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("roles-sync", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "emit a JSON summary")
	_ = fs.Parse(args)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	store, closeStore, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		return 1
	}
	defer closeStore()

	mirror := ledger.NewMirror(store, cfg.LedgerNamespace, logger, nil, nil)
	rolesSvc := roles.NewService(roles.NewRepository(pool), mirror)

	return cli.NewRolesOpsCLI(rolesSvc).SyncCommand(ctx, cli.RolesSyncOptions{JSONOutput: *jsonOut})
}

func runMirrorBackfill(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("mirror-backfill", flag.ExitOnError)
	mode := fs.String("mode", string(cli.MirrorBackfillModeDry), "dry previews, apply writes")
	jsonOut := fs.Bool("json", false, "emit a JSON summary")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	_ = fs.Parse(args)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	store, closeStore, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		return 1
	}
	defer closeStore()

	rolesSvc := roles.NewService(roles.NewRepository(pool), nil)
	identitySvc := identity.NewService(
		identity.NewRepository(pool),
		rolesSvc,
		identity.BcryptHasher{Cost: cfg.BcryptCost},
		tokens.NewSigner(cfg.TokenSecret),
		nil,
		logger,
		cfg.AdminEmail,
	)
	followSvc := follow.NewService(follow.NewRepository(pool), nil)
	contentSvc := content.NewService(content.NewRepository(pool), nil)

	ops := cli.NewMirrorOpsCLI(store, cfg.LedgerNamespace, []cli.NamedSource{
		{Name: "roles", Source: rolesSvc.AuditEntries},
		{Name: "users", Source: identitySvc.AuditEntries},
		{Name: "follows", Source: followSvc.AuditEntries},
		{Name: "posts", Source: contentSvc.PostAuditEntries},
		{Name: "comments", Source: contentSvc.CommentAuditEntries},
	})

	opts := cli.MirrorBackfillOptions{
		Mode:       cli.MirrorBackfillMode(*mode),
		JSONOutput: *jsonOut,
	}
	if *yes {
		opts.Confirm = func(io.Reader, io.Writer) (bool, error) { return true, nil }
	}
	return ops.BackfillCommand(ctx, opts)
}

// openLedger selects the audit store named by LEDGER_BACKEND. The returned
// closer releases backend resources.
func openLedger(ctx context.Context, cfg *app.Config, logger *slog.Logger) (ledger.Ledger, func(), error) {
	switch cfg.LedgerBackend {
	case "redis":
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
		return ledger.NewRedisLedger(client), closer, nil
	case "badger":
		store, err := ledger.OpenBadgerLedger(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := store.Close(); err != nil {
				logger.Warn("badger close", slog.Any("error", err))
			}
		}
		return store, closer, nil
	default:
		return ledger.Nop{}, func() {}, nil
	}
}
