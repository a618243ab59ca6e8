package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/assistant/gateway"
	"github.com/xpanvictor/civicguru/pkg/assistant/providers/gemini"
	genaiProvider "github.com/xpanvictor/civicguru/pkg/assistant/providers/genai"
	"github.com/xpanvictor/civicguru/pkg/assistant/providers/ollama"
	openaiProvider "github.com/xpanvictor/civicguru/pkg/assistant/providers/openai"
	"github.com/xpanvictor/civicguru/pkg/io/stt/vad"
	"github.com/xpanvictor/civicguru/pkg/io/stt/whisper"
	"github.com/xpanvictor/civicguru/pkg/io/tts/piper"
)

const envPrefix = "CIVICGURU"

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Enabled reports whether a database is configured. Without one the server
// keeps history in memory.
func (d DBConfig) Enabled() bool { return d.Host != "" }

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
	// PairingCodeHash is a bcrypt hash; empty disables pairing codes.
	PairingCodeHash string `mapstructure:"pairing_code_hash"`
}

type RoutesConfig struct {
	Live          string   `mapstructure:"live"`
	Text          string   `mapstructure:"text"`
	TextFallbacks []string `mapstructure:"text_fallbacks"`
	Speech        string   `mapstructure:"speech"`
}

func (r RoutesConfig) Gateway() gateway.Routes {
	return gateway.Routes{Live: r.Live, Text: r.Text, TextFallbacks: r.TextFallbacks, Speech: r.Speech}
}

type AIConfig struct {
	// APIKey is the shared Gemini credential, also read from API_KEY or
	// GEMINI_API_KEY.
	APIKey string                `mapstructure:"api_key"`
	Routes RoutesConfig          `mapstructure:"routes"`
	Genai  genaiProvider.Config  `mapstructure:"genai"`
	Gemini gemini.Config         `mapstructure:"gemini"`
	OpenAI openaiProvider.Config `mapstructure:"openai"`
	Ollama ollama.Config         `mapstructure:"ollama"`
	Piper  piper.Config          `mapstructure:"piper"`
}

type AudioConfig struct {
	InputRate  int `mapstructure:"input_rate"`
	BlockSize  int `mapstructure:"block_size"`
	OutputRate int `mapstructure:"output_rate"`
}

type STTConfig struct {
	WhisperURL    string                   `mapstructure:"whisper_url"`
	InitialPrompt string                   `mapstructure:"initial_prompt"`
	Recognizer    whisper.RecognizerConfig `mapstructure:"recognizer"`
	VAD           vad.VADConfig            `mapstructure:"vad"`
}

type SessionConfig struct {
	Mode     string `mapstructure:"mode"`
	Language string `mapstructure:"language"`
}

// Defaults parses Mode and Language, falling back to live and hindi.
func (s SessionConfig) Defaults() (types.Mode, types.Language) {
	mode, err := types.ParseMode(s.Mode)
	if err != nil {
		mode = types.LIVE
	}
	lang, err := types.ParseLanguage(s.Language)
	if err != nil {
		lang = types.HINDI
	}
	return mode, lang
}

type Settings struct {
	Env      string        `mapstructure:"env"`
	Debug    bool          `mapstructure:"debug" default:"false"`
	Timezone string        `mapstructure:"timezone"`
	Server   ServerConfig  `mapstructure:"server"`
	DB       DBConfig      `mapstructure:"database"`
	Redis    RedisConfig   `mapstructure:"redis"`
	Auth     AuthConfig    `mapstructure:"auth"`
	AI       AIConfig      `mapstructure:"ai"`
	Audio    AudioConfig   `mapstructure:"audio"`
	STT      STTConfig     `mapstructure:"stt"`
	Session  SessionConfig `mapstructure:"session"`
}

// Location resolves Timezone, defaulting to the host zone.
func (s *Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	g := genaiProvider.DefaultConfig()
	rc := whisper.DefaultRecognizerConfig()
	vc := vad.DefaultVADConfig()

	v.SetDefault("env", "dev")
	v.SetDefault("debug", false)
	v.SetDefault("timezone", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "civicguru")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.pass", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_hours", 24*30)
	v.SetDefault("auth.pairing_code_hash", "")

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.routes.live", "genai")
	v.SetDefault("ai.routes.text", "genai")
	v.SetDefault("ai.routes.text_fallbacks", []string{"gemini", "openai", "ollama"})
	v.SetDefault("ai.routes.speech", "genai")
	v.SetDefault("ai.genai.live_model", g.LiveModel)
	v.SetDefault("ai.genai.quick_model", g.QuickModel)
	v.SetDefault("ai.genai.deep_model", g.DeepModel)
	v.SetDefault("ai.genai.speech_model", g.SpeechModel)
	v.SetDefault("ai.genai.speech_voice", g.SpeechVoice)
	v.SetDefault("ai.genai.thinking_budget", g.ThinkingBudget)
	v.SetDefault("ai.gemini.quick_model", g.QuickModel)
	v.SetDefault("ai.gemini.deep_model", g.DeepModel)
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", "")
	v.SetDefault("ai.ollama.quick_model", "llama3.1:8b-instruct")
	v.SetDefault("ai.ollama.deep_model", "llama3.1:8b-instruct")
	v.SetDefault("ai.piper.base_url", "")
	v.SetDefault("ai.piper.timeout", 20*time.Second)

	v.SetDefault("audio.input_rate", 16000)
	v.SetDefault("audio.block_size", 4096)
	v.SetDefault("audio.output_rate", 24000)

	v.SetDefault("stt.whisper_url", "")
	v.SetDefault("stt.initial_prompt", "")
	v.SetDefault("stt.recognizer.buffer_bytes", rc.BufferBytes)
	v.SetDefault("stt.recognizer.interim_every", rc.InterimEvery)
	v.SetDefault("stt.recognizer.end_silence", rc.EndSilence)
	v.SetDefault("stt.recognizer.no_speech_timeout", rc.NoSpeechTimeout)
	v.SetDefault("stt.recognizer.max_utterance", rc.MaxUtterance)
	v.SetDefault("stt.recognizer.pre_roll", rc.PreRoll)
	v.SetDefault("stt.vad.sample_rate", vc.SampleRate)
	v.SetDefault("stt.vad.threshold", vc.Threshold)
	v.SetDefault("stt.vad.min_speech_ms", vc.MinSpeechMs)
	v.SetDefault("stt.vad.min_silence_ms", vc.MinSilenceMs)
	v.SetDefault("stt.vad.service_url", vc.ServiceURL)

	v.SetDefault("session.mode", string(types.LIVE))
	v.SetDefault("session.language", string(types.HINDI))
}

// Load reads .env, then config_<ENV>.yaml from the working directory or
// ./config, then CIVICGURU_* environment overrides. A missing config file
// leaves the defaults in place.
func Load() (*Settings, error) {
	return LoadFrom(".", "./config")
}

func LoadFrom(paths ...string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config_" + genEnv())
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	settings.resolveCredentials()
	return &settings, nil
}

// resolveCredentials fills the shared Gemini key from the environment and
// hands it to the Gemini providers that have none of their own.
func (s *Settings) resolveCredentials() {
	if s.AI.APIKey == "" {
		s.AI.APIKey = firstEnv("API_KEY", "GEMINI_API_KEY")
	}
	if s.AI.Genai.APIKey == "" {
		s.AI.Genai.APIKey = s.AI.APIKey
	}
	if s.AI.Gemini.APIKey == "" {
		s.AI.Gemini.APIKey = s.AI.APIKey
	}
	if s.AI.OpenAI.APIKey == "" {
		s.AI.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func genEnv() string {
	if env := os.Getenv(envPrefix + "_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}
