package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/debris-tracker/internal/debris/export"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/monitor"
	"github.com/banshee-data/debris-tracker/internal/debris/storage/sqlite"
	"github.com/banshee-data/debris-tracker/internal/monitoring"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		version bool
	}{
		{"synthetic", []string{"-synthetic"}, false, false},
		{"input", []string{"-input", "frames"}, false, false},
		{"neither", nil, true, false},
		{"both", []string{"-synthetic", "-input", "frames"}, true, false},
		{"version", []string{"-version"}, false, true},
		{"unknown flag", []string{"-bogus"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, showVersion, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if showVersion != tt.version {
				t.Errorf("Expected showVersion=%v, got %v", tt.version, showVersion)
			}
		})
	}
}

func TestRun_SyntheticSession(t *testing.T) {
	monitoring.SetLogger(t.Logf)
	defer monitoring.SetLogger(nil)

	dir := t.TempDir()
	o, _, err := parseFlags([]string{
		"-synthetic", "-frames", "20", "-width", "240", "-height", "64",
		"-out", filepath.Join(dir, "session"),
		"-db", filepath.Join(dir, "debris.db"),
		"-cbor", "-histograms", "-log-level", "quiet",
	})
	require.NoError(t, err)

	summary, err := run(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Frames)
	assert.Equal(t, 5, summary.Warming)
	assert.Equal(t, 15, summary.Processed)
	assert.Positive(t, summary.Detections[l4classify.LabelDebris])

	out := filepath.Join(dir, "session")
	for _, name := range []string{export.DetectionsFile, export.MetadataFile, monitor.PreviewFile, "detections.html", "detections.cbor"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	fh, err := os.Open(filepath.Join(out, "detections.cbor"))
	require.NoError(t, err)
	defer fh.Close()
	records, err := export.ReadCBOR(fh)
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	dets, err := export.ReadDetections(filepath.Join(out, export.DetectionsFile))
	require.NoError(t, err)
	assert.Len(t, dets, summary.Detections[l4classify.LabelDebris])
	for _, d := range dets {
		assert.Equal(t, l4classify.LabelDebris, d.Label)
	}

	meta, err := export.ReadMetadata(filepath.Join(out, export.MetadataFile))
	require.NoError(t, err)
	assert.Equal(t, 20, meta.Frames)
	assert.NotEmpty(t, meta.Params)

	db, err := sqlite.Open(filepath.Join(dir, "debris.db"))
	require.NoError(t, err)
	defer db.Close()
	sess, err := db.GetSession(meta.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.Finished())
	assert.Equal(t, 15, sess.FramesProcessed)
}

func TestRun_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buffer_size: 0\n"), 0o644))

	o, _, err := parseFlags([]string{"-synthetic", "-config", path, "-out", t.TempDir(), "-log-level", "quiet"})
	require.NoError(t, err)
	_, err = run(context.Background(), o)
	assert.Error(t, err)
}

func TestRun_EmptyInputDir(t *testing.T) {
	o, _, err := parseFlags([]string{"-input", t.TempDir(), "-out", t.TempDir(), "-log-level", "quiet"})
	require.NoError(t, err)
	_, err = run(context.Background(), o)
	assert.Error(t, err)
}
