package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/internal/config"
	"github.com/famalink/telemed-api/internal/email"
	"github.com/famalink/telemed-api/internal/handler/health"
	"github.com/famalink/telemed-api/internal/realtime"
	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/internal/repository/encrypted"
	"github.com/famalink/telemed-api/internal/repository/memory"
	"github.com/famalink/telemed-api/internal/repository/postgres"
	"github.com/famalink/telemed-api/internal/service/appointment"
	"github.com/famalink/telemed-api/internal/service/audit"
	authsvc "github.com/famalink/telemed-api/internal/service/auth"
	"github.com/famalink/telemed-api/internal/service/calendar"
	"github.com/famalink/telemed-api/internal/service/consultation"
	"github.com/famalink/telemed-api/internal/service/doctor"
	"github.com/famalink/telemed-api/internal/service/notification"
	"github.com/famalink/telemed-api/internal/service/patient"
	"github.com/famalink/telemed-api/pkg/auth"
	"github.com/famalink/telemed-api/pkg/chat"
	"github.com/famalink/telemed-api/pkg/lock"
	"github.com/famalink/telemed-api/pkg/logger"
	"github.com/famalink/telemed-api/pkg/messaging"
	msgredis "github.com/famalink/telemed-api/pkg/messaging/redis"
	"github.com/famalink/telemed-api/pkg/metrics"
	"github.com/famalink/telemed-api/pkg/retry"
	"github.com/famalink/telemed-api/pkg/security"
	"github.com/famalink/telemed-api/pkg/sms"
	"github.com/famalink/telemed-api/pkg/validator"
	"github.com/famalink/telemed-api/pkg/video"
)

type repositories struct {
	authUsers     repository.AuthUserRepository
	doctors       repository.DoctorRepository
	patients      repository.PatientRepository
	appointments  repository.AppointmentRepository
	consultations repository.ConsultationRepository
	outbox        repository.OutboxRepository
}

type services struct {
	auth         *authsvc.Service
	appointment  appointment.Service
	calendar     calendar.Service
	patient      *patient.Service
	consultation consultation.Service
	doctor       doctor.Service
	notification *notification.Service
}

// app holds the infrastructure shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	location *time.Location
	repos    repositories
	redis    *goredis.Client
	broker   messaging.Broker
	auditor  *audit.Service
	hub      *realtime.Hub
	checks   map[string]health.Check
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	lg := logger.NewLogger(&cfg.Log)
	lg.SetGlobal()

	location, err := cfg.Scheduling.Location()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      lg,
		metrics:  metrics.New("famalink"),
		location: location,
		checks:   make(map[string]health.Check),
	}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.sealConsultations(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.auditor, err = audit.NewService(cfg.Audit.OutputPaths)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}
	a.closers = append(a.closers, func() error {
		// zap returns an error syncing stdout on some platforms.
		_ = a.auditor.Sync()
		return nil
	})

	a.hub = realtime.NewHub(cfg.CORS.AllowedOrigins, a.metrics)
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	if a.cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		a.repos = repositories{
			authUsers:     store.AuthUsers(),
			doctors:       store.Doctors(),
			patients:      store.Patients(),
			appointments:  store.Appointments(),
			consultations: store.Consultations(),
			outbox:        store.Outbox(),
		}
		return nil
	}

	db, err := postgres.NewDB(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }

	base := postgres.NewBaseRepository(db, a.cfg.Database.QueryTimeout, retry.DefaultConfig())
	a.repos = repositories{
		authUsers:     postgres.NewAuthUserRepository(base),
		doctors:       postgres.NewDoctorRepository(base),
		patients:      postgres.NewPatientRepository(base),
		appointments:  postgres.NewAppointmentRepository(base),
		consultations: postgres.NewConsultationRepository(base),
		outbox:        postgres.NewOutboxRepository(base),
	}
	return nil
}

func (a *app) sealConsultations() error {
	if a.cfg.Secrets.NotesKey == "" {
		return nil
	}
	key, err := security.ParseKey(a.cfg.Secrets.NotesKey)
	if err != nil {
		return fmt.Errorf("invalid TELEMED_NOTES_KEY: %w", err)
	}
	enc, err := security.NewAESEncryptor(key)
	if err != nil {
		return err
	}
	a.repos.consultations = encrypted.NewConsultationRepository(a.repos.consultations, enc)
	return nil
}

func (a *app) openRedis(ctx context.Context) error {
	if a.cfg.Redis.URL == "" {
		log.Warn().Msg("Redis not configured, using in-process lock, broker and revocation store")
		local := messaging.NewLocalBroker(256)
		a.broker = local
		a.closers = append(a.closers, local.Close)
		return nil
	}

	client, err := msgredis.NewClient(ctx, msgredis.Config{
		URL:          a.cfg.Redis.URL,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		RetryBackoff: a.cfg.Redis.RetryBackoff,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redis = client
	a.broker = msgredis.NewRedisBroker(client, *a.log.Zerolog())
	a.closers = append(a.closers, a.broker.Close, client.Close)
	a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return nil
}

func (a *app) locker() lock.Locker {
	if a.redis == nil {
		return lock.NewKeyedMutex()
	}
	return lock.NewRedisLocker(a.redis, "famalink:lock:", a.cfg.Redis.LockTTL)
}

func (a *app) revocationStore() authsvc.RevocationStore {
	if a.redis == nil {
		return authsvc.NewMemoryRevocationStore()
	}
	return authsvc.NewRedisRevocationStore(a.redis, "famalink:revoked:")
}

func (a *app) videoProvider() video.RoomCreator {
	c := a.cfg.Video
	if a.cfg.Secrets.DailyAPIKey == "" {
		log.Warn().Msg("TELEMED_DAILY_API_KEY not set, video rooms are unavailable")
	}
	return video.NewDailyClient(video.Config{
		BaseURL:    c.BaseURL,
		APIKey:     a.cfg.Secrets.DailyAPIKey,
		RoomPrefix: c.RoomPrefix,
		RoomTTL:    c.RoomTTL,
		Language:   c.Language,
		Timeout:    c.Timeout,
	})
}

func (a *app) chatProvider() (chat.Provider, error) {
	if !a.cfg.Chat.Enabled {
		return chat.Disabled{}, nil
	}
	p, err := chat.NewStreamProvider(a.cfg.Secrets.StreamAPIKey, a.cfg.Secrets.StreamAPISecret, a.cfg.Chat.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat provider: %w", err)
	}
	return p, nil
}

func (a *app) smsSender() (sms.Sender, error) {
	n := a.cfg.Notifications
	if !n.SMSEnabled {
		return sms.LogSender{}, nil
	}
	s, err := sms.NewTwilioSender(a.cfg.Secrets.TwilioAccountSID, a.cfg.Secrets.TwilioAuthToken, n.SMSFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to create sms sender: %w", err)
	}
	return s, nil
}

func (a *app) emailService() email.Service {
	n := a.cfg.Notifications
	if !n.EmailEnabled {
		return email.LogService{}
	}
	return email.NewSMTPService(email.Config{
		Host:     n.SMTPHost,
		Port:     n.SMTPPort,
		Username: n.SMTPUser,
		Password: a.cfg.Secrets.SMTPPassword,
		From:     n.EmailFrom,
		AppURL:   n.AppURL,
	})
}

// services builds the domain layer. deliver controls whether this process
// sends SMS and email for appointment events.
func (a *app) services(deliver bool) (*services, error) {
	cfg := a.cfg

	if err := validator.Register(cfg.Scheduling.AllowedDurations); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	tokens, err := auth.NewTokenManager(cfg.Secrets.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	emailSvc := a.emailService()

	grid, err := calendar.NewGrid(calendar.GridConfig{
		SlotMinutes:  cfg.Scheduling.SlotMinutes,
		DayStartHour: cfg.Scheduling.DayStartHour,
		SlotCount:    cfg.Scheduling.SlotCount,
		Location:     a.location,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid calendar grid: %w", err)
	}
	calendarSvc := calendar.NewService(grid, a.repos.appointments, cfg.Scheduling.WeekCacheTTL, nil)

	locker := a.locker()
	appointmentSvc := appointment.NewService(a.repos.appointments, a.repos.patients, locker, calendarSvc, a.metrics, appointment.Config{
		AllowedDurations: cfg.Scheduling.AllowedDurations,
		CreateTimeout:    cfg.Scheduling.CreateTimeout,
	})

	chatProvider, err := a.chatProvider()
	if err != nil {
		return nil, err
	}
	smsSender, err := a.smsSender()
	if err != nil {
		return nil, err
	}

	return &services{
		auth:        authsvc.NewService(a.repos.authUsers, a.repos.doctors, security.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, a.revocationStore(), emailSvc),
		appointment: appointmentSvc,
		calendar:    calendarSvc,
		patient:     patient.NewService(a.repos.patients, a.repos.appointments, a.repos.consultations, calendarSvc, a.auditor),
		consultation: consultation.NewService(consultation.Dependencies{
			Consultations: a.repos.consultations,
			Patients:      a.repos.patients,
			Doctors:       a.repos.doctors,
			Appointments:  appointmentSvc,
			Video:         a.videoProvider(),
			Chat:          chatProvider,
			Locker:        locker,
			Auditor:       a.auditor,
			Metrics:       a.metrics,
			Location:      a.location,
		}),
		doctor: doctor.NewService(a.repos.doctors, a.repos.authUsers, a.repos.patients, a.repos.appointments, calendarSvc),
		notification: notification.NewService(a.repos.patients, a.repos.doctors, smsSender, emailSvc, a.hub, calendarSvc, a.metrics, notification.Config{
			Location: a.location,
			Deliver:  deliver,
		}),
	}, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("Error releasing resources")
	}
}
