// mediactl runs the media pipeline outside the HTTP server.
//
//	mediactl normalize [flags] <file>...   classify, validate, transcode and store files
//	mediactl token [flags]                 mint an admin bearer token for the upload endpoint
//
// normalize uses the same flow as POST /api/upload, so its output directory can
// be served directly as the uploads directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/amirphl/hylacviet-media/app/services"
	businessflow "github.com/amirphl/hylacviet-media/business_flow"
	"github.com/amirphl/hylacviet-media/config"
	"github.com/amirphl/hylacviet-media/models"
	"github.com/amirphl/hylacviet-media/repository"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}

	switch args[0] {
	case "normalize":
		return runNormalize(args[1:], stdout, stderr)
	case "token":
		return runToken(args[1:], stdout)
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  mediactl normalize [flags] <file>...
  mediactl token [flags]

Run "mediactl <command> --help" for flags.
`)
}

// normalizeResult is printed once per input file as a JSON line
type normalizeResult struct {
	Source     string `json:"source"`
	Filename   string `json:"filename,omitempty"`
	URL        string `json:"url,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Transcoded bool   `json:"transcoded"`
	Checksum   string `json:"checksum,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runNormalize(args []string, stdout, stderr io.Writer) error {
	media := config.DefaultMediaConfig()
	var (
		contentType string
		verbose     bool
	)

	flagSet := pflag.NewFlagSet("normalize", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&media.StorageDir, "out", "o", media.StorageDir, "directory artifacts are written to")
	flagSet.StringVar(&media.PublicPrefix, "public-prefix", media.PublicPrefix, "URL prefix reported for stored artifacts")
	flagSet.Int64Var(&media.MaxUploadBytes, "max-bytes", media.MaxUploadBytes, "largest accepted input in bytes")
	flagSet.IntVar(&media.MaxImageWidth, "max-width", media.MaxImageWidth, "wider rasters are downscaled to this width")
	flagSet.IntVar(&media.WebPQuality, "quality", media.WebPQuality, "WEBP quality (1-100)")
	flagSet.Int64Var(&media.MaxPixels, "max-pixels", media.MaxPixels, "largest accepted width*height before decoding")
	flagSet.IntVarP(&media.TranscodeWorkers, "workers", "j", runtime.NumCPU(), "transcode workers")
	flagSet.StringVar(&contentType, "content-type", "", "declared content type for every input (default: inferred from extension)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log pipeline state transitions to stderr")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	files := flagSet.Args()
	if len(files) == 0 {
		return errors.New("normalize: at least one file is required")
	}
	if err := config.ValidateMediaConfig(media); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := services.NewTranscodePool(media.TranscodeWorkers, media.TranscodeQueue, logger)
	stop := pool.Start()
	defer stop()

	flow := businessflow.NewMediaUploadFlow(
		repository.NewDiskArtifactRepository(media.StorageDir, media.PublicPrefix),
		pool,
		media,
		logger,
	)

	enc := json.NewEncoder(stdout)
	failures := 0
	for _, path := range files {
		result := normalizeFile(ctx, flow, path, contentType)
		if result.Error != "" {
			failures++
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(files))
	}
	return nil
}

func normalizeFile(ctx context.Context, flow businessflow.MediaUploadFlow, path, contentType string) normalizeResult {
	result := normalizeResult{Source: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Code = "READ_ERROR"
		result.Error = err.Error()
		return result
	}

	artifact, err := flow.NormalizeField(ctx, &models.UploadField{
		Name:                "file",
		DeclaredFilename:    filepath.Base(path),
		DeclaredContentType: contentType,
		Bytes:               data,
	})
	if err != nil {
		result.Code = businessflow.ErrorCode(err)
		result.Error = err.Error()
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			result.Error = be.PublicMessage()
		}
		return result
	}

	result.Filename = artifact.Filename
	result.URL = artifact.PublicURL
	result.SizeBytes = artifact.SizeBytes
	result.Width = artifact.Width
	result.Height = artifact.Height
	result.Transcoded = artifact.Transcoded
	result.Checksum = artifact.Checksum
	return result
}

func runToken(args []string, stdout io.Writer) error {
	var (
		secret   string
		adminID  string
		username string
		role     string
		issuer   string
		audience string
		ttl      time.Duration
	)

	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringVar(&secret, "secret", os.Getenv("JWT_SECRET_KEY"), "HMAC secret (default: $JWT_SECRET_KEY)")
	flagSet.StringVar(&adminID, "admin-id", "1", "subject claim")
	flagSet.StringVar(&username, "username", "admin", "username claim")
	flagSet.StringVar(&role, "role", "admin", "role claim")
	flagSet.StringVar(&issuer, "issuer", os.Getenv("JWT_ISSUER"), "issuer claim (default: $JWT_ISSUER)")
	flagSet.StringVar(&audience, "audience", os.Getenv("JWT_AUDIENCE"), "audience claim (default: $JWT_AUDIENCE)")
	flagSet.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	tokenService, err := services.NewTokenService(secret, ttl, issuer, audience)
	if err != nil {
		return err
	}
	token, err := tokenService.GenerateAdminToken(adminID, username, role)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}
