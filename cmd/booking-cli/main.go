package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-print"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/goliatone/go-booking-auth/client"
	"github.com/goliatone/go-booking-auth/config"
	"github.com/goliatone/go-booking-auth/session"
)

const usage = `usage: booking-cli [-c config.yaml] [-v] <command> [args]

commands:
  register <name> <email> <password>
  login <email> <password>
  logout
  whoami
  users [--search s] [--page n] [--page-size n] [--sort col] [--desc]
  rooms
  book --room <id> [--room <id>...] --in YYYY-MM-DD --out YYYY-MM-DD
  bookings
`

type command func(ctx context.Context, c *client.Client, args []string) error

var commands = map[string]command{
	"register": cmdRegister,
	"login":    cmdLogin,
	"logout":   cmdLogout,
	"whoami":   cmdWhoami,
	"users":    cmdUsers,
	"rooms":    cmdRooms,
	"book":     cmdBook,
	"bookings": cmdBookings,
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	global := flag.NewFlagSet("booking-cli", flag.ContinueOnError)
	global.SetInterspersed(false)
	configPath := global.StringP("config", "c", os.Getenv("APP_CONFIG"), "path to a YAML config file")
	verbose := global.BoolP("verbose", "v", false, "log session activity")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	if err := global.Parse(argv); err != nil {
		return 2
	}

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	zl := newZap(*verbose)
	defer zl.Sync()
	logger := auth.NewZapLogger(zl)

	for _, warning := range cfg.Warnings() {
		logger.Warn("insecure configuration", "warning", warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newSessionStore(ctx, cfg, logger.Named("session"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeStore()

	store.Subscribe(func() {
		logger.Debug("session changed", "state", store.State().String(), "user", store.UserName())
	})
	store.Rehydrate(ctx)

	c := client.New(cfg.Session.APIURL, store, client.WithLogger(logger.Named("client")))

	if err := cmd(ctx, c, args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newZap(verbose bool) *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return zl
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger auth.Logger) (*session.Store, func(), error) {
	opts := []session.Option{session.WithLogger(logger)}
	closer := func() {}

	switch cfg.Session.Storage {
	case "memory":
		opts = append(opts, session.WithStorage(session.NewMemoryStorage()))
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
		closer = func() { rdb.Close() }
		opts = append(opts, session.WithStorage(session.NewRedisStorage(rdb, "")))
	case "bun":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Session.Path)
		if err != nil {
			return nil, closer, err
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		closer = func() { db.Close() }
		storage := session.NewBunStorage(db)
		if err := storage.Migrate(ctx); err != nil {
			closer()
			return nil, func() {}, err
		}
		opts = append(opts, session.WithStorage(storage))
	default:
		opts = append(opts, session.WithStorage(session.NewFileStorage(cfg.Session.Path)))
	}

	if cfg.Session.Cipher == "gcm" {
		opts = append(opts, session.WithCipher(session.NewGCMCipher(cfg.Session.Passphrase)))
	} else {
		opts = append(opts, session.WithCipher(session.NewPassphraseCipher(cfg.Session.Passphrase)))
	}

	if cfg.Session.Verify {
		opts = append(opts, session.WithVerifier(auth.NewHMACValidator(auth.ValidatorOptions{
			SigningKey:       []byte(cfg.GetSigningKey()),
			Issuer:           cfg.GetIssuer(),
			Audience:         cfg.GetAudience(),
			ValidateIssuer:   cfg.GetValidateIssuer(),
			ValidateAudience: cfg.GetValidateAudience(),
		}, logger)))
	}

	return session.New(opts...), closer, nil
}

func show(v any) {
	fmt.Println(print.MaybePrettyJSON(v))
}

func need(args []string, n int, names string) error {
	if len(args) != n {
		return fmt.Errorf("expected %s", names)
	}
	return nil
}

func cmdRegister(ctx context.Context, c *client.Client, args []string) error {
	if err := need(args, 3, "<name> <email> <password>"); err != nil {
		return err
	}
	id, err := c.Register(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Println("registered", id)
	return nil
}

func cmdLogin(ctx context.Context, c *client.Client, args []string) error {
	if err := need(args, 2, "<email> <password>"); err != nil {
		return err
	}
	if _, err := c.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Println("logged in as", c.Session().UserName())
	return nil
}

func cmdLogout(ctx context.Context, c *client.Client, _ []string) error {
	if err := c.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func cmdWhoami(_ context.Context, c *client.Client, _ []string) error {
	snap := c.Session().Snapshot()
	if !snap.IsLoggedIn {
		fmt.Println("not logged in")
		return nil
	}

	out := map[string]any{
		"user":  snap.UserName,
		"roles": snap.Roles,
	}
	if snap.Claims != nil {
		out["email"] = snap.Claims.Email
		out["id"] = snap.Claims.UserID
		if snap.Claims.ExpiresAt != nil {
			out["expires"] = snap.Claims.ExpiresAt.Time.Format(time.RFC3339)
		}
	}
	show(out)
	return nil
}

func cmdUsers(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	search := fs.String("search", "", "filter by name or email")
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", auth.DefaultPageSize, "page size")
	sortBy := fs.String("sort", "name", "sort column")
	desc := fs.Bool("desc", false, "sort descending")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.SearchUsers(ctx, auth.UserQuery{
		Page:      *page,
		PageSize:  *pageSize,
		Search:    *search,
		SortBy:    *sortBy,
		Ascending: !*desc,
	})
	if err != nil {
		return err
	}
	show(res)
	return nil
}

func cmdRooms(ctx context.Context, c *client.Client, _ []string) error {
	rooms, err := c.Rooms(ctx)
	if err != nil {
		return err
	}
	show(rooms)
	return nil
}

func cmdBook(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	rooms := fs.StringSlice("room", nil, "room id, repeatable")
	in := fs.String("in", "", "check-in date YYYY-MM-DD")
	out := fs.String("out", "", "check-out date YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	checkIn, err := time.Parse(time.DateOnly, strings.TrimSpace(*in))
	if err != nil {
		return fmt.Errorf("--in: %w", err)
	}
	checkOut, err := time.Parse(time.DateOnly, strings.TrimSpace(*out))
	if err != nil {
		return fmt.Errorf("--out: %w", err)
	}

	booking, err := c.CreateBooking(ctx, auth.BookingRequest{
		RoomIDs:      *rooms,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
	})
	if err != nil {
		return err
	}
	show(booking)
	return nil
}

func cmdBookings(ctx context.Context, c *client.Client, _ []string) error {
	bookings, err := c.Bookings(ctx)
	if err != nil {
		return err
	}
	show(bookings)
	return nil
}
