package auth

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-booking-auth/middleware/jwtware"
)

// RouteDeps collects what RegisterRoutes needs.
type RouteDeps struct {
	Auther    *Auther
	Registrar AccountRegistrerer
	Repo      RepositoryManager
	Config    Config
	Logger    Logger
	Debug     bool
	// ValidationListeners run after a token validates on gated routes.
	ValidationListeners []ValidationListener
}

// NewServer returns a go-router server backed by fiber with the JSON error
// handler, panic recovery, the given fiber middleware and every route mounted.
func NewServer(deps RouteDeps, middleware ...fiber.Handler) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "booking-api",
			DisableStartupMessage: true,
			ErrorHandler:          ErrorHandler(deps.Logger, deps.Debug),
		})

		app.Use(recover.New(recover.Config{EnableStackTrace: deps.Debug}))
		for _, mw := range middleware {
			if mw != nil {
				app.Use(mw)
			}
		}
		return app
	})

	RegisterRoutes(srv.Router(), deps)
	return srv
}

// NewApp returns the fiber app behind NewServer.
func NewApp(deps RouteDeps, middleware ...fiber.Handler) *fiber.App {
	return NewServer(deps, middleware...).WrappedRouter()
}

// RegisterRoutes mounts the user, room, booking and status endpoints.
func RegisterRoutes[T any](app router.Router[T], deps RouteDeps) {
	if deps.Auther == nil {
		panic("AUTH: RegisterRoutes requires an Auther")
	}
	if deps.Repo == nil {
		panic("AUTH: RegisterRoutes requires a RepositoryManager")
	}

	logger := normalizeLogger(deps.Logger)
	registrar := deps.Registrar
	if registrar == nil {
		registrar = NewUserProvider(deps.Repo.Users()).WithLogger(logger)
	}

	contextKey, authScheme := DefaultContextKey, "Bearer"
	if deps.Config != nil {
		if k := deps.Config.GetContextKey(); k != "" {
			contextKey = k
		}
		if s := deps.Config.GetAuthScheme(); s != "" {
			authScheme = s
		}
	}

	ctrl := &Controller{
		Auther:     deps.Auther,
		Registrar:  registrar,
		Repo:       deps.Repo,
		Logger:     logger,
		ContextKey: contextKey,
		Debug:      deps.Debug,
	}

	protected := ProtectedRoute(deps.Auther, contextKey, authScheme, deps.ValidationListeners...)

	users := app.Group("/User")
	users.Post("/register", ctrl.Register).SetName("user.register")
	users.Post("/login", ctrl.Login).SetName("user.login")
	users.Get("/", ctrl.ListUsers, protected).SetName("user.list")
	users.Get("/search", ctrl.SearchUsers, protected).SetName("user.search")
	users.Get("/me", ctrl.Me, protected).SetName("user.me")

	app.Get("/Room", ctrl.ListRooms).SetName("room.list")

	bookings := app.Group("/Booking")
	bookings.Post("/", ctrl.CreateBooking, protected).SetName("booking.create")
	bookings.Get("/", ctrl.ListBookings, protected).SetName("booking.list")

	status := app.Group("/api/Status")
	status.Get("/healthcheck", ctrl.HealthCheck).SetName("status.health")
	status.Get("/dbhealthcheck", ctrl.DBHealthCheck).SetName("status.db")
	status.Get("/ping", ctrl.Ping).SetName("status.ping")
}

// ProtectedRoute returns the bearer gate backed by the Auther's validator.
// Rejections answer 401 with the body "Unauthorized" and nothing else.
func ProtectedRoute(auther *Auther, contextKey, authScheme string, listeners ...ValidationListener) router.MiddlewareFunc {
	cfg := jwtware.Config{
		ContextKey:      contextKey,
		AuthScheme:      authScheme,
		TokenValidator:  validatorAdapter(auther.Validator()),
		ContextEnricher: ContextEnricherAdapter,
		ErrorHandler: func(c router.Context, err error) error {
			auther.RecordTokenRejected(c.Context(), err)
			return jwtware.DefaultErrorHandler(c, err)
		},
	}
	RegisterValidationListeners(&cfg, listeners...)

	return jwtware.New(cfg)
}

// ErrorHandler is a fiber error handler that renders rich errors as JSON.
// Auth failures never carry details.
func ErrorHandler(logger Logger, debug bool) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		if debug {
			logger.Debug("request error",
				"path", c.Path(),
				"error", richErr.Message,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		}

		switch richErr.Category {
		case errors.CategoryAuth:
			return c.Status(fiber.StatusUnauthorized).SendString("Unauthorized")
		case errors.CategoryInternal:
			logger.Error("request failed", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		}

		code := richErr.Code
		if code < 400 {
			code = fiber.StatusBadRequest
		}
		return c.Status(code).JSON(fiber.Map{
			"error": richErr.Message,
			"code":  richErr.TextCode,
		})
	}
}
