package app

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/civicguru/internal/config"
	"github.com/xpanvictor/civicguru/internal/database"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/internal/domains/conversation"
	"github.com/xpanvictor/civicguru/internal/domains/preferences"
	convoRepo "github.com/xpanvictor/civicguru/internal/repository/conversation"
	prefRepo "github.com/xpanvictor/civicguru/internal/repository/preferences"
	"github.com/xpanvictor/civicguru/internal/server"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
	"github.com/xpanvictor/civicguru/pkg/io/stt"
	"github.com/xpanvictor/civicguru/pkg/io/stt/vad"
	"github.com/xpanvictor/civicguru/pkg/io/stt/whisper"
	"gorm.io/gorm"
)

const devJWTSecret = "civicguru-dev-secret-change-me"

// App represents the application with all its dependencies
type App struct {
	Config  *config.Settings
	Logger  *Logger.Logger
	DB      *gorm.DB
	RC      *redis.Client
	Gateway *Gateway
	// Recognizer is the server-side Whisper recognizer, nil when no
	// Whisper service is configured.
	Recognizer stt.Recognizer

	// repos
	ConversationRepo types.ConversationRepository
	PreferenceRepo   types.PreferenceRepository

	ConversationService conversation.ConversationService
	PreferenceService   preferences.PreferenceService
	AuthService         auth.AuthService
	ServerDeps          server.Dependencies

	vad vad.VAD
}

// NewApp connects storage when configured, falling back to memory, and
// builds the services and the AI gateway.
func NewApp(ctx context.Context, cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.setupStorage(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.setupDependencies(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) setupStorage() error {
	if a.Config.DB.Enabled() {
		db, err := database.InitDB(*a.Config)
		if err != nil {
			return err
		}
		if err := database.MigrateDB(db); err != nil {
			return err
		}
		a.DB = db
		a.ConversationRepo = convoRepo.NewGormConvoRepo(db)
		a.Logger.Infof("conversation history stored in mysql at %s", a.Config.DB.Host)
	} else {
		a.ConversationRepo = convoRepo.NewMemoryConvoRepo()
		a.Logger.Warn("database not configured, conversation history kept in memory")
	}

	if a.Config.Redis.Enabled() {
		rc, err := database.NewRedis(a.Config.Redis)
		if err != nil {
			return err
		}
		a.RC = rc
		a.PreferenceRepo = prefRepo.NewRedisPreferenceRepo(rc)
		a.Logger.Infof("preferences stored in redis at %s", a.Config.Redis.Addr)
	} else {
		a.PreferenceRepo = prefRepo.NewMemoryPreferenceRepo()
		a.Logger.Warn("redis not configured, preferences kept in memory")
	}
	return nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies(ctx context.Context) error {
	gw, err := NewGatewayFactory(a.Config.AI, a.Logger).Create(ctx)
	if err != nil {
		return err
	}
	a.Gateway = gw

	if url := a.Config.STT.WhisperURL; url != "" {
		a.vad = vad.New(a.Config.STT.VAD, a.Logger.Named("vad"))
		client := whisper.NewWhisperClient(url, a.Config.STT.InitialPrompt, a.Logger.Named("whisper"))
		a.Recognizer = whisper.NewRecognizer(client, a.vad, a.Config.STT.Recognizer, a.Logger.Named("recognizer"))
	}

	jwtSecret := a.Config.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = devJWTSecret
		a.Logger.Warn("JWT secret not configured, using default (not secure for production)")
	}
	tokenTTLHours := a.Config.Auth.TokenTTLHours
	if tokenTTLHours == 0 {
		tokenTTLHours = 24
	}
	if a.Config.Auth.PairingCodeHash == "" {
		a.Logger.Warn("pairing code not configured, any device may pair")
	}

	a.ConversationService = conversation.New(a.ConversationRepo, a.Logger, a.Config.Location())
	a.PreferenceService = preferences.New(a.PreferenceRepo, a.Logger)
	a.AuthService = auth.NewAuthService(
		a.Logger,
		jwtSecret,
		a.Config.Auth.PairingCodeHash,
		time.Duration(tokenTTLHours)*time.Hour,
	)

	a.ServerDeps = server.Dependencies{
		Config:              a.Config,
		Logger:              a.Logger,
		ConversationService: a.ConversationService,
		PreferenceService:   a.PreferenceService,
		AuthService:         a.AuthService,
		Gateway:             a.Gateway.Router,
		ConfigMissing:       a.Gateway.ConfigMissing,
		Recognizer:          a.Recognizer,
	}
	return nil
}

// Close releases storage connections and provider clients.
func (a *App) Close() error {
	var errs []error
	if a.Gateway != nil {
		errs = append(errs, a.Gateway.Close())
	}
	if a.vad != nil {
		errs = append(errs, a.vad.Close())
	}
	if a.RC != nil {
		errs = append(errs, a.RC.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
