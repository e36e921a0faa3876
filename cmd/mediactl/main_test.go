package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/hylacviet-media/app/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
}

func readResults(t *testing.T, out *bytes.Buffer) map[string]normalizeResult {
	t.Helper()
	results := map[string]normalizeResult{}
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var r normalizeResult
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		results[filepath.Base(r.Source)] = r
	}
	return results
}

func TestRun_Normalize(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "uploads")

	writePNG(t, filepath.Join(in, "wide.png"), 1500, 30)
	require.NoError(t, os.WriteFile(filepath.Join(in, "logo.svg"), []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), 0o644))

	var stdout, stderr bytes.Buffer
	err := run([]string{"normalize", "-o", out, "-j", "2", filepath.Join(in, "wide.png"), filepath.Join(in, "logo.svg")}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	results := readResults(t, &stdout)
	require.Len(t, results, 2)

	wide := results["wide.png"]
	assert.True(t, wide.Transcoded)
	assert.Equal(t, 1200, wide.Width)
	assert.Equal(t, 24, wide.Height)
	assert.True(t, strings.HasSuffix(wide.Filename, ".webp"))
	assert.FileExists(t, filepath.Join(out, wide.Filename))

	logo := results["logo.svg"]
	assert.False(t, logo.Transcoded)
	assert.Equal(t, "/uploads/"+logo.Filename, logo.URL)
}

func TestRun_NormalizeReportsFailures(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("hello"), 0o644))

	var stdout, stderr bytes.Buffer
	err := run([]string{"normalize", "-o", t.TempDir(), filepath.Join(in, "notes.txt"), filepath.Join(in, "missing.png")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 2 files failed")

	results := readResults(t, &stdout)
	// No declared type and an unknown extension: accepted as binary, then rejected by the decoder
	assert.Equal(t, "DECODE_ERROR", results["notes.txt"].Code)
	assert.Equal(t, "Failed to decode image: image: unknown format", results["notes.txt"].Error)
	assert.Equal(t, "READ_ERROR", results["missing.png"].Code)
}

func TestRun_NormalizeRejectsInvalidFlags(t *testing.T) {
	in := t.TempDir()
	src := filepath.Join(in, "a.png")
	writePNG(t, src, 8, 8)

	tests := []struct {
		name string
		flag []string
		want string
	}{
		{name: "quality zero", flag: []string{"--quality", "0"}, want: "WebPQuality failed on 'min'"},
		{name: "quality above range", flag: []string{"--quality", "500"}, want: "WebPQuality failed on 'max'"},
		{name: "zero width", flag: []string{"--max-width", "0"}, want: "MaxImageWidth failed on 'gt'"},
		{name: "no workers", flag: []string{"-j", "0"}, want: "TranscodeWorkers failed on 'gt'"},
		{name: "relative prefix", flag: []string{"--public-prefix", "uploads"}, want: "PublicPrefix failed on 'startswith'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "uploads")
			args := append([]string{"normalize", "-o", out}, tt.flag...)

			var stdout bytes.Buffer
			err := run(append(args, src), &stdout, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, stdout.String())
			assert.NoDirExists(t, out)
		})
	}
}

func TestRun_Token(t *testing.T) {
	secret := "mediactl-test-secret-0123456789abcdef"

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"token", "--secret", secret, "--admin-id", "42", "--username", "ops"}, &stdout, &bytes.Buffer{}))

	tokenService, err := services.NewTokenService(secret, time.Hour, "", "")
	require.NoError(t, err)
	claims, err := tokenService.ValidateAdminToken(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, "42", claims.AdminID())
	assert.Equal(t, "ops", claims.Username)
}

func TestRun_Usage(t *testing.T) {
	assert.Error(t, run(nil, &bytes.Buffer{}, &bytes.Buffer{}))
	assert.Error(t, run([]string{"bogus"}, &bytes.Buffer{}, &bytes.Buffer{}))
	assert.NoError(t, run([]string{"help"}, &bytes.Buffer{}, &bytes.Buffer{}))
	assert.Error(t, run([]string{"normalize"}, &bytes.Buffer{}, &bytes.Buffer{}))
}
