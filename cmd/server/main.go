package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/revoice/internal/audio"
	"github.com/codebuildervaibhav/revoice/internal/cleanup"
	"github.com/codebuildervaibhav/revoice/internal/handlers"
	"github.com/codebuildervaibhav/revoice/internal/pipeline"
	"github.com/codebuildervaibhav/revoice/internal/queue"
	"github.com/codebuildervaibhav/revoice/internal/session"
	"github.com/codebuildervaibhav/revoice/internal/storage"
	"github.com/codebuildervaibhav/revoice/internal/synthesis"
	"github.com/codebuildervaibhav/revoice/internal/timeline"
	"github.com/codebuildervaibhav/revoice/internal/transcription"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Whisper struct {
		ModelPath string `yaml:"model_path"`
		Language  string `yaml:"language"`
	} `yaml:"whisper"`

	Workers struct {
		Count     int `yaml:"count"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"workers"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Merge struct {
		SampleRate int    `yaml:"sample_rate"`
		Channels   int    `yaml:"channels"`
		CursorMode string `yaml:"cursor_mode"`
		Stretcher  string `yaml:"stretcher"`
	} `yaml:"merge"`

	Synthesis struct {
		Provider       string `yaml:"provider"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Attempts       int    `yaml:"attempts"`
		BackoffSeconds int    `yaml:"backoff_seconds"`
	} `yaml:"synthesis"`

	Publish struct {
		Provider string `yaml:"provider"`
		Bucket   string `yaml:"bucket"`
		Region   string `yaml:"region"`
		Prefix   string `yaml:"prefix"`
		Attempts int    `yaml:"attempts"`
	} `yaml:"publish"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

func main() {
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// API keys live in the environment; a .env file is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: failed to read .env: %v", err)
	}

	if err := cleanup.EnsureTempDirExists(config.Storage.TempDir); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	if err := os.MkdirAll(config.Storage.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	log.SetOutput(io.MultiWriter(os.Stdout, logBuffer))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("Initializing components...")

	localStorage := storage.NewLocalStorage(config.Storage.OutputDir)
	publisher := newPublisher(ctx, config, localStorage.Root())

	db, err := storage.NewMetadataDB(config.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	merger, err := newMerger(config)
	if err != nil {
		log.Fatalf("Invalid merge config: %v", err)
	}

	synth, cloner := newSynthesizer(config)
	var resynth *synthesis.Resynthesizer
	if synth != nil {
		resynth = synthesis.NewResynthesizer(synth, synthesis.Options{
			Policy: synthesis.RetryPolicy{
				Attempts: config.Synthesis.Attempts,
				Timeout:  time.Duration(config.Synthesis.TimeoutSeconds) * time.Second,
				Backoff:  time.Duration(config.Synthesis.BackoffSeconds) * time.Second,
			},
			Publisher: publisher,
		})
	}

	svc := pipeline.NewService(pipeline.Deps{
		Sessions:    session.NewManager(localStorage),
		Storage:     localStorage,
		Publisher:   publisher,
		DB:          db,
		Transcriber: transcription.NewWhisperTranscriber(config.Whisper.ModelPath, config.Whisper.Language, config.Storage.TempDir),
		Resynth:     resynth,
		Cloner:      cloner,
		Merger:      merger,
	})

	workerPool := queue.NewWorkerPool(config.Workers.Count, config.Workers.QueueSize)
	workerPool.Start(ctx)

	cleanupScheduler := cleanup.NewScheduler(
		config.Storage.TempDir,
		time.Duration(config.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(config.Cleanup.MaxAgeHours)*time.Hour,
		svc,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: config.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	handlers.Register(app, svc, workerPool, handlers.Options{
		TempDir:   config.Storage.TempDir,
		MaxSizeMB: config.Limits.MaxFileSizeMB,
	})

	app.Get("/history", func(c *fiber.Ctx) error {
		sessions, err := db.ListSessions(c.QueryInt("limit", 50))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(sessions)
	})

	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /sessions                          - Upload a recording")
	log.Println("   POST /sessions/gdrive                   - Start from a Google Drive link")
	log.Println("   POST /sessions/:id/transcribe           - Transcribe with Whisper")
	log.Println("   PUT  /sessions/:id/transcript           - Install an external transcript")
	log.Println("   POST /sessions/:id/split                - Cut sentence clips")
	log.Println("   PUT  /sessions/:id/sentences            - Edit sentence texts")
	log.Println("   POST /sessions/:id/voice                - Set the reference voice")
	log.Println("   POST /sessions/:id/clone                - Re-synthesize every sentence")
	log.Println("   POST /sessions/:id/sentences/:sid/regenerate")
	log.Println("   POST /sessions/:id/merge                - Rebuild the track")
	log.Println("   POST /sessions/:id/subtitles            - Write the SRT file")
	log.Println("   GET  /jobs/:id, /ws/jobs/:id            - Job status")
	log.Println("   GET  /ws/upload                         - Streamed upload")
	log.Println("   GET  /history, /logs, /health")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	workerPool.Stop()
}

// newPublisher builds the remote store for artifacts. Any setup failure
// falls back to local-only storage.
func newPublisher(ctx context.Context, config *Config, root string) storage.Publisher {
	var next storage.Publisher
	switch config.Publish.Provider {
	case "s3":
		p, err := storage.NewS3Publisher(ctx, config.Publish.Region, config.Publish.Bucket, config.Publish.Prefix, root)
		if err != nil {
			log.Printf("WARNING: S3 not available: %v", err)
			return storage.NopPublisher{}
		}
		log.Printf("Publishing artifacts to s3://%s/%s", config.Publish.Bucket, config.Publish.Prefix)
		next = p
	case "gdrive":
		if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err != nil {
			log.Println("Google Drive credentials not found - saving locally only")
			return storage.NopPublisher{}
		}
		dc, err := storage.NewDriveClient(ctx,
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
			root,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			return storage.NopPublisher{}
		}
		log.Println("Google Drive integration enabled")
		next = dc
	default:
		log.Println("No remote store configured - saving locally only")
		return storage.NopPublisher{}
	}
	return storage.NewRetryPublisher(next, config.Publish.Attempts)
}

func newSynthesizer(config *Config) (synthesis.Synthesizer, synthesis.VoiceCloner) {
	switch config.Synthesis.Provider {
	case "elevenlabs":
		key := os.Getenv("ELEVENLABS_API_KEY")
		if key == "" {
			log.Println("WARNING: ELEVENLABS_API_KEY not set - synthesis disabled")
			return nil, nil
		}
		el := synthesis.NewElevenLabsSynthesizer(key, config.Synthesis.Model)
		return el, el
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			log.Println("WARNING: OPENAI_API_KEY not set - synthesis disabled")
			return nil, nil
		}
		return synthesis.NewOpenAISynthesizer(key, config.Synthesis.Model), nil
	default:
		log.Printf("WARNING: unknown synthesis provider %q - synthesis disabled", config.Synthesis.Provider)
		return nil, nil
	}
}

func newMerger(config *Config) (*timeline.Merger, error) {
	mode, err := timeline.ParseCursorMode(config.Merge.CursorMode)
	if err != nil {
		return nil, err
	}
	f := audio.DefaultFormat
	if config.Merge.SampleRate > 0 {
		f.SampleRate = config.Merge.SampleRate
	}
	if config.Merge.Channels > 0 {
		f.Channels = config.Merge.Channels
	}
	opts := timeline.Options{
		Format:     f,
		CursorMode: mode,
	}
	switch config.Merge.Stretcher {
	case "", "resample":
	case "ffmpeg":
		opts.Stretcher = audio.FFmpegStretcher{TempDir: config.Storage.TempDir}
	default:
		return nil, fmt.Errorf("unknown stretcher %q (want resample or ffmpeg)", config.Merge.Stretcher)
	}
	return timeline.NewMerger(opts), nil
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
