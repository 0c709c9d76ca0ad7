package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/muselane/studio-api/api/swagger"
	"github.com/muselane/studio-api/internal/handler"
	"github.com/muselane/studio-api/internal/middleware"
	"github.com/muselane/studio-api/internal/models"
	"github.com/muselane/studio-api/internal/repository"
	"github.com/muselane/studio-api/internal/service"
	"github.com/muselane/studio-api/pkg/cache"
	"github.com/muselane/studio-api/pkg/config"
	"github.com/muselane/studio-api/pkg/database"
	"github.com/muselane/studio-api/pkg/logger"
	corsmiddleware "github.com/muselane/studio-api/pkg/middleware/cors"
	reqidmiddleware "github.com/muselane/studio-api/pkg/middleware/requestid"
)

// @title Muselane Studio API
// @version 1.0.0
// @description Booking, scheduling and billing engine for independent music teachers.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, availability caching and job locks run in direct mode", zap.Error(err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close() //nolint:errcheck
		}
	}()

	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	slotRepo := repository.NewRecurringSlotRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db, cfg.Invoicing.NumberPrefix)
	settingsRepo := repository.NewSettingsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Booking.AvailabilityCacheTTL, logr, redisClient != nil)

	notifier := service.NewNotificationService(nil, nil, studentRepo, service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier.Start(runCtx)
	defer notifier.Stop()

	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, teacherRepo, cacheSvc, cfg.Booking.DefaultTimezone, cfg.Booking.AvailabilityCacheTTL, validate, logr)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, settingsRepo, studentRepo, notifier, metricsSvc, cfg.Invoicing.DueInDays, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, lessonRepo, studentRepo, settingsRepo, slotRepo, availabilitySvc, invoiceSvc, notifier, metricsSvc, service.BookingPolicy{
		MinLessonMinutes:      cfg.Booking.MinLessonMinutes,
		MaxLessonMinutes:      cfg.Booking.MaxLessonMinutes,
		DefaultRecurringWeeks: cfg.Booking.DefaultRecurringWeeks,
	}, validate, logr)
	lessonSvc := service.NewLessonService(lessonRepo, notifier, validate, logr)
	recurringSvc := service.NewRecurringService(slotRepo, lessonRepo, invoiceRepo, invoiceSvc, cacheSvc, metricsSvc, cfg.Jobs.LockTTL, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, teacherRepo, validate, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, teacherRepo, validate, logr)

	bookingHandler := handler.NewBookingHandler(bookingSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc)
	slotHandler := handler.NewRecurringSlotHandler(recurringSvc)
	jobsHandler := handler.NewJobsHandler(recurringSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, logr, authSvc, routeHandlers{
		booking:      bookingHandler,
		lesson:       lessonHandler,
		availability: availabilityHandler,
		teacher:      teacherHandler,
		student:      studentHandler,
		settings:     settingsHandler,
		invoice:      invoiceHandler,
		slot:         slotHandler,
		jobs:         jobsHandler,
	})

	var scheduler *cron.Cron
	if cfg.Jobs.Enabled {
		scheduler = startScheduler(runCtx, cfg, logr, recurringSvc, invoiceSvc)
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routeHandlers struct {
	booking      *handler.BookingHandler
	lesson       *handler.LessonHandler
	availability *handler.AvailabilityHandler
	teacher      *handler.TeacherHandler
	student      *handler.StudentHandler
	settings     *handler.SettingsHandler
	invoice      *handler.InvoiceHandler
	slot         *handler.RecurringSlotHandler
	jobs         *handler.JobsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, logr *zap.Logger, authSvc *service.AuthService, h routeHandlers) {
	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	lessons := api.Group("/lessons")
	{
		lessons.GET("", anyRole, h.lesson.List)
		lessons.GET("/:id", anyRole, h.lesson.Get)
		lessons.POST("/book-for-student", staff, middleware.Audit(logr, "book", "lesson"), h.booking.BookForStudent)
		lessons.PUT("/:id", staff, middleware.Audit(logr, "update", "lesson"), h.lesson.Update)
		lessons.DELETE("/:id", staff, middleware.Audit(logr, "cancel", "lesson"), h.lesson.Cancel)
	}

	teachers := api.Group("/teachers")
	{
		teachers.GET("", anyRole, h.teacher.List)
		teachers.GET("/:id", anyRole, h.teacher.Get)
		teachers.POST("", adminOnly, middleware.Audit(logr, "create", "teacher"), h.teacher.Create)
		teachers.PUT("/:id", staff, middleware.Audit(logr, "update", "teacher"), h.teacher.Update)
		teachers.DELETE("/:id", adminOnly, middleware.Audit(logr, "deactivate", "teacher"), h.teacher.Deactivate)

		teachers.GET("/:id/availability", anyRole, h.availability.Get)
		teachers.POST("/:id/availability-windows", staff, h.availability.CreateWindow)
		teachers.PUT("/:id/availability-windows/:windowId", staff, h.availability.UpdateWindow)
		teachers.DELETE("/:id/availability-windows/:windowId", staff, h.availability.DeleteWindow)
		teachers.POST("/:id/blocked-times", staff, h.availability.CreateBlockedTime)
		teachers.DELETE("/:id/blocked-times/:blockedId", staff, h.availability.DeleteBlockedTime)

		teachers.GET("/:id/lesson-settings", staff, h.settings.Get)
		teachers.PUT("/:id/lesson-settings", staff, middleware.Audit(logr, "update", "lesson-settings"), h.settings.Upsert)
	}

	students := api.Group("/students")
	{
		students.GET("", staff, h.student.List)
		students.GET("/:id", staff, h.student.Get)
		students.POST("", staff, middleware.Audit(logr, "create", "student"), h.student.Create)
		students.PUT("/:id", staff, middleware.Audit(logr, "update", "student"), h.student.Update)
		students.DELETE("/:id", staff, middleware.Audit(logr, "deactivate", "student"), h.student.Deactivate)
	}

	slots := api.Group("/recurring-slots")
	{
		slots.GET("", anyRole, h.slot.List)
		slots.GET("/:id", anyRole, h.slot.Get)
		slots.DELETE("/:id", staff, middleware.Audit(logr, "cancel", "recurring-slot"), h.slot.Cancel)
	}

	invoices := api.Group("/invoices")
	{
		invoices.GET("", anyRole, h.invoice.List)
		invoices.GET("/:id", anyRole, h.invoice.Get)
		invoices.PUT("/:id/status", staff, middleware.Audit(logr, "update-status", "invoice"), h.invoice.UpdateStatus)
	}

	admin := api.Group("/admin", adminOnly)
	{
		admin.POST("/background-jobs/generate-invoices", middleware.Audit(logr, "generate-invoices", "background-job"), h.jobs.GenerateInvoices)
		admin.POST("/background-jobs/generate-lessons", middleware.Audit(logr, "generate-lessons", "background-job"), h.jobs.GenerateLessons)
	}
}

// startScheduler registers the recurring batch jobs. The invoice entry runs
// on the 1st and bills the previous calendar month; the admin endpoints reuse
// the same service paths for manual reruns.
func startScheduler(ctx context.Context, cfg *config.Config, logr *zap.Logger, recurringSvc *service.RecurringService, invoiceSvc *service.InvoiceService) *cron.Cron {
	scheduler := cron.New()

	if _, err := scheduler.AddFunc(cfg.Jobs.InvoiceCron, func() {
		now := time.Now().UTC()
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0).Format("2006-01")
		summary, err := recurringSvc.GenerateMonthlyInvoices(ctx, month)
		if err != nil {
			logr.Error("monthly invoice job failed", zap.String("month", month), zap.Error(err))
			return
		}
		logr.Info("monthly invoice job finished",
			zap.String("month", month),
			zap.Int("invoices_created", summary.InvoicesCreated),
			zap.Int("slots_skipped", summary.SlotsSkipped),
			zap.Int("errors", len(summary.Errors)))
	}); err != nil {
		logr.Error("failed to schedule invoice job", zap.Error(err))
	}

	if _, err := scheduler.AddFunc(cfg.Jobs.LessonCron, func() {
		summary, err := recurringSvc.GenerateUpcomingLessons(ctx, cfg.Jobs.GenerationWeeks)
		if err != nil {
			logr.Error("lesson generation job failed", zap.Error(err))
			return
		}
		logr.Info("lesson generation job finished",
			zap.Int("lessons_created", summary.LessonsCreated),
			zap.Int("slots_processed", summary.SlotsProcessed),
			zap.Int("errors", len(summary.Errors)))
	}); err != nil {
		logr.Error("failed to schedule lesson generation job", zap.Error(err))
	}

	if _, err := scheduler.AddFunc(cfg.Jobs.OverdueCron, func() {
		marked, err := invoiceSvc.MarkOverdue(ctx)
		if err != nil {
			logr.Error("overdue sweep failed", zap.Error(err))
			return
		}
		if marked > 0 {
			logr.Info("overdue sweep finished", zap.Int("invoices_marked", marked))
		}
	}); err != nil {
		logr.Error("failed to schedule overdue sweep", zap.Error(err))
	}

	scheduler.Start()
	logr.Info("background jobs scheduled",
		zap.String("invoice_cron", cfg.Jobs.InvoiceCron),
		zap.String("lesson_cron", cfg.Jobs.LessonCron),
		zap.String("overdue_cron", cfg.Jobs.OverdueCron))
	return scheduler
}
