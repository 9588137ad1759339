package geozarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/alertzarr/internal/config"
)

// CommandRunner executes the conversion engine.
type CommandRunner interface {
	Run(ctx context.Context, env []string, command string, args ...string) (stdout []byte, stderr []byte, err error)
}

// ExecCommandRunner runs commands through os/exec with the parent
// environment plus env.
type ExecCommandRunner struct{}

func (ExecCommandRunner) Run(ctx context.Context, env []string, command string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Request is one conversion of a source Zarr product into a GeoZarr store.
type Request struct {
	SourceHref string
	OutputURI  string
}

// Converter drives the eopf-geozarr command line tool.
type Converter struct {
	command        string
	groups         []string
	spatialChunk   int
	minDimension   int
	tileWidth      int
	sharding       bool
	timeout        time.Duration
	sourceEndpoint string
	env            []string
	runner         CommandRunner
	logger         *slog.Logger
}

// NewConverter builds a converter from the engine settings. A nil runner
// uses ExecCommandRunner.
func NewConverter(cfg *config.Config, runner CommandRunner, logger *slog.Logger) *Converter {
	if runner == nil {
		runner = ExecCommandRunner{}
	}
	return &Converter{
		command:        cfg.ConverterCommand,
		groups:         cfg.ConverterGroups,
		spatialChunk:   cfg.ConverterSpatialChunk,
		minDimension:   cfg.ConverterMinDimension,
		tileWidth:      cfg.ConverterTileWidth,
		sharding:       cfg.ConverterEnableSharding,
		timeout:        cfg.ConverterTimeout,
		sourceEndpoint: strings.TrimRight(cfg.SourceS3Endpoint, "/"),
		env: []string{
			"AWS_ACCESS_KEY_ID=" + cfg.S3AccessKey,
			"AWS_SECRET_ACCESS_KEY=" + cfg.S3SecretKey,
			"AWS_DEFAULT_REGION=" + cfg.S3Region,
			"AWS_ENDPOINT_URL=" + cfg.S3Endpoint,
		},
		runner: runner,
		logger: logger,
	}
}

// Convert runs the engine to completion. It reports success or failure only;
// the caller accounts for the bytes written.
func (c *Converter) Convert(ctx context.Context, req Request) error {
	if req.SourceHref == "" {
		return errors.New("convert: source href is required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.args(req)
	c.logger.Info("starting conversion", "command", c.command, "source", req.SourceHref, "output", req.OutputURI)

	_, stderr, err := c.runner.Run(ctx, c.env, c.command, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("convert %s: %w", req.SourceHref, ctx.Err())
		}
		return fmt.Errorf("convert %s: %w: %s", req.SourceHref, err, tail(stderr, 512))
	}
	return nil
}

func (c *Converter) args(req Request) []string {
	args := []string{"convert", c.resolveSource(req.SourceHref), req.OutputURI}
	if len(c.groups) > 0 {
		args = append(args, "--groups")
		args = append(args, c.groups...)
	}
	args = append(args,
		"--spatial-chunk", strconv.Itoa(c.spatialChunk),
		"--min-dimension", strconv.Itoa(c.minDimension),
		"--tile-width", strconv.Itoa(c.tileWidth),
	)
	if c.sharding {
		args = append(args, "--enable-sharding")
	}
	return args
}

// resolveSource rewrites s3:// hrefs onto the public source endpoint so the
// engine can read them anonymously over HTTPS.
func (c *Converter) resolveSource(href string) string {
	rest, ok := strings.CutPrefix(href, "s3://")
	if !ok || c.sourceEndpoint == "" {
		return href
	}
	return c.sourceEndpoint + "/" + rest
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
