package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/clearbook/scheduling-engine/availability"
	"github.com/clearbook/scheduling-engine/booking"
	"github.com/clearbook/scheduling-engine/calsync"
	"github.com/clearbook/scheduling-engine/controllers"
	"github.com/clearbook/scheduling-engine/cron"
	"github.com/clearbook/scheduling-engine/db"
	"github.com/clearbook/scheduling-engine/polls"
	"github.com/clearbook/scheduling-engine/queue"
	"github.com/clearbook/scheduling-engine/redis"
	"github.com/clearbook/scheduling-engine/routes"
	"github.com/clearbook/scheduling-engine/routing"
	"github.com/clearbook/scheduling-engine/utils"
	"github.com/clearbook/scheduling-engine/workflow"
)

func main() {
	godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") != "production" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db.Init()
	db.Migrate()
	redis.InitRedis()

	credBox, err := utils.NewCredentialBoxFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("credential key missing or invalid")
	}

	taskQueue := queue.NewRedis(redis.Client)

	providers := calsync.Registry{}
	if base := os.Getenv("GOOGLE_CALENDAR_API_BASE"); base != "" {
		providers.Add(calsync.NewRESTProvider("google", base, credBox))
	}
	if base := os.Getenv("OUTLOOK_CALENDAR_API_BASE"); base != "" {
		providers.Add(calsync.NewRESTProvider("outlook", base, credBox))
	}

	availSvc := availability.NewService(db.DB)
	routeSvc := routing.NewService(db.DB)
	bookingSvc := booking.NewService(db.DB, availSvc, routeSvc, taskQueue, log)
	pollSvc := polls.NewService(db.DB, bookingSvc, log)

	pusher := calsync.NewPusher(db.DB, taskQueue, providers, log)
	puller := calsync.NewPuller(db.DB, taskQueue, providers, log)
	dispatcher := workflow.NewDispatcher(db.DB, taskQueue, log)
	executor := workflow.NewExecutor(db.DB, taskQueue, workflow.NewActionSet(db.DB, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pusher.Run(ctx)
	go puller.Run(ctx)
	go executor.Run(ctx)

	scheduler, err := cron.Start(cron.Jobs{
		Dispatcher: dispatcher,
		Pusher:     pusher,
		Puller:     puller,
		Polls:      pollSvc,
		Queue:      taskQueue,
		Log:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start cron scheduler")
	}
	defer scheduler.Stop()

	controllers.Init(controllers.Deps{
		Availability: availSvc,
		Booking:      bookingSvc,
		Polls:        pollSvc,
		Pusher:       pusher,
		Queue:        taskQueue,
		Providers:    providers,
		CredBox:      credBox,
		Log:          log,
	})

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))

	routes.SetupAuthRoutes(app)
	routes.SetupRBACRoutes(app)
	routes.SetupBookingRoutes(app)
	routes.SetupPollRoutes(app)
	routes.SetupCalendarRoutes(app)
	routes.SetupStaffRoutes(app)
	routes.SetupAdminRoutes(app)

	go func() {
		<-ctx.Done()
		app.Shutdown()
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
