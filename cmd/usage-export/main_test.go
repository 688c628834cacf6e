package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/petshop-storefront/internal/domain/consent"
	"github.com/xenking/petshop-storefront/internal/storage"
	"github.com/xenking/petshop-storefront/internal/storage/memory"
)

var exportTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func seedLog(t *testing.T, kv storage.KV) {
	t.Helper()
	log := consent.EncodeLog([]consent.Entry{
		consent.NewEntry(consent.EventConsentGranted, exportTime),
		consent.NewEntry(consent.EventSearch, exportTime, consent.String("query", "dog"), consent.Int("results", 3)),
	})
	require.NoError(t, kv.Set(context.Background(), storage.KeyUsageLog, string(log)))
}

func TestExportSession(t *testing.T) {
	ctx := context.Background()
	kv := memory.New().Namespace("abc")
	seedLog(t, kv)
	opts := options{outDir: t.TempDir(), now: exportTime}

	path, count, err := exportSession(ctx, kv, "abc", opts)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, filepath.Join(opts.outDir, "abc_usage_2024-03-09-14-05-07.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"event,ts,query,results\n"+
			`"consent_granted","2024-03-09T14:05:07.000Z","",""`+"\n"+
			`"search","2024-03-09T14:05:07.000Z","dog","3"`,
		string(data))
}

func TestExportSession_Gzip(t *testing.T) {
	ctx := context.Background()
	kv := memory.New().Namespace("abc")
	seedLog(t, kv)
	opts := options{outDir: t.TempDir(), now: exportTime, compress: true}

	path, _, err := exportSession(ctx, kv, "abc", opts)
	require.NoError(t, err)
	assert.Equal(t, ".gz", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := pgzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, string(consent.CSV(mustDecode(t, kv))), string(plain))
}

func mustDecode(t *testing.T, kv storage.KV) []consent.Entry {
	t.Helper()
	raw, err := kv.Get(context.Background(), storage.KeyUsageLog)
	require.NoError(t, err)
	entries, err := consent.DecodeLog([]byte(raw))
	require.NoError(t, err)
	return entries
}

func TestExportSession_Empty(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	opts := options{outDir: t.TempDir(), now: exportTime}

	_, _, err := exportSession(ctx, backend.Namespace("none"), "none", opts)
	assert.True(t, errors.Is(err, consent.ErrEmptyExportSet))

	kv := backend.Namespace("blank")
	require.NoError(t, kv.Set(ctx, storage.KeyUsageLog, "[]"))
	_, _, err = exportSession(ctx, kv, "blank", opts)
	assert.True(t, errors.Is(err, consent.ErrEmptyExportSet))

	bad := backend.Namespace("bad")
	require.NoError(t, bad.Set(ctx, storage.KeyUsageLog, "{"))
	_, _, err = exportSession(ctx, bad, "bad", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode usage log")
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	for _, id := range []string{"s1", "s2", "s3"} {
		seedLog(t, backend.Namespace(id))
	}
	opts := options{outDir: t.TempDir(), now: exportTime}

	require.NoError(t, exportAll(ctx, backend, []string{"s1", "s2", "s3", "missing"}, opts))

	files, err := os.ReadDir(opts.outDir)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestSessionIDs(t *testing.T) {
	const (
		a = "0f8fad5b-d9cb-469f-a165-70867728950e"
		b = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
		c = "c2d29867-3d0b-4497-9f5a-df0b1b0a1f2d"
	)
	file := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(file, []byte(b+"\n\n "+c+" \n"+a+"\n"), 0o644))

	ids, err := sessionIDs(" "+a+", "+b+" ,,", file)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, ids)

	ids, err = sessionIDs("", "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = sessionIDs("", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestSessionIDs_RejectsPaths(t *testing.T) {
	_, err := sessionIDs("../x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid session id "../x"`)

	file := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(file, []byte("0f8fad5b-d9cb-469f-a165-70867728950e\n/etc/passwd\n"), 0o644))
	_, err = sessionIDs("", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReportCarts_Unsupported(t *testing.T) {
	err := reportCarts(context.Background(), memory.New())
	require.ErrorIs(t, err, errStatsUnsupported)
}
