package cmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadgoon/threadgoon/batch"
	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/config"
)

func TestPrompt(t *testing.T) {
	t.Run("reads one line", func(t *testing.T) {
		line, err := prompt(context.Background(), strings.NewReader("  1,3 \n5\n"))
		require.NoError(t, err)
		assert.Equal(t, "1,3", line)
	})

	t.Run("eof is an empty selection", func(t *testing.T) {
		line, err := prompt(context.Background(), strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, line)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		r, w := io.Pipe()
		t.Cleanup(func() { w.Close() })

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := prompt(ctx, r)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSelectListings(t *testing.T) {
	listings := []board.ListingSummary{
		{ID: 10, Title: "first"},
		{ID: 20, Title: "second"},
		{ID: 30, Title: "third"},
	}

	selected, err := selectListings("3, 1 x", listings)
	require.NoError(t, err)
	assert.Equal(t, []batch.Selection{
		{ID: 10, Title: "first"},
		{ID: 30, Title: "third"},
	}, selected)

	_, err = selectListings("4", listings)
	var rangeErr *RangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestCompileFilter(t *testing.T) {
	cfg = &config.Config{Filters: config.FilterConfig{"busy": "Images > 10"}}
	t.Cleanup(func() {
		cfg = nil
		filterCompiler = nil
	})

	var err error
	filterCompiler, err = newFilterCompiler(cfg.Filters)
	require.NoError(t, err)

	f, err := compileFilter("busy")
	require.NoError(t, err)
	assert.Equal(t, "Images > 10", f.Expression())

	f, err = compileFilter("Replies == 0")
	require.NoError(t, err)
	assert.Equal(t, "Replies == 0", f.Expression())

	_, err = compileFilter("Images >")
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var stderr, file bytes.Buffer
	log := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &stderr, &file)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), `"message":"shown"`)
	assert.Contains(t, file.String(), `"message":"shown"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestSetupLoggerConsole(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var stderr bytes.Buffer
	log := setupLogger(config.LoggingConfig{Level: "info", Format: "console"}, &stderr, nil)
	log.Info().Str("thread", "alpha").Msg("Fetched")

	out := stderr.String()
	assert.Contains(t, out, "Fetched")
	assert.Contains(t, out, "thread=alpha")
	assert.NotContains(t, out, `"message"`)
}

func TestNewFilterCompilerRejectsBrokenPreset(t *testing.T) {
	_, err := newFilterCompiler(config.FilterConfig{"ok": "Images > 1", "broken": "Images >"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid filter "broken"`)
}

func overrideFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("board", "b", "", "")
	flags.StringP("output", "o", "", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func testConfig() *config.Config {
	return &config.Config{
		Board: config.BoardConfig{
			Name:       "gif",
			APIURL:     "https://a.4cdn.org",
			MediaURL:   "https://i.4cdn.org",
			Extensions: []string{".webm"},
		},
		HTTP: config.HTTPConfig{
			ConnectTimeout: time.Second,
			ReadTimeout:    time.Second,
		},
		Download: config.DownloadConfig{
			OutputDir: ".",
			ChunkSize: 8192,
			Naming:    "stable",
		},
		Logging: config.LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Run("unset flags keep config", func(t *testing.T) {
		c := testConfig()
		require.NoError(t, applyOverrides(overrideFlags(t), c))
		assert.Equal(t, "gif", c.Board.Name)
		assert.Equal(t, ".", c.Download.OutputDir)
	})

	t.Run("flags override config", func(t *testing.T) {
		c := testConfig()
		require.NoError(t, applyOverrides(overrideFlags(t, "-b", "wsg", "--output", "/tmp/out"), c))
		assert.Equal(t, "wsg", c.Board.Name)
		assert.Equal(t, "/tmp/out", c.Download.OutputDir)
	})

	t.Run("overridden board is validated", func(t *testing.T) {
		c := testConfig()
		err := applyOverrides(overrideFlags(t, "--board", "a/b"), c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid board.name")
	})
}
