package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcz2osz/batch"
	"mcz2osz/rating"
	"mcz2osz/transcode"
)

const chartJSON = `{
  "meta": {
    "creator": "mapper", "background": "bg.jpg", "version": "Hard", "mode": 0,
    "song": {"title": "Song", "artist": "Band"}, "mode_ext": {"column": 4}
  },
  "time": [{"beat": [0, 0, 1], "bpm": 120}],
  "note": [
    {"beat": [1, 0, 1], "column": 0},
    {"beat": [2, 0, 1], "endbeat": [3, 0, 1], "column": 3},
    {"beat": [0, 0, 1], "sound": "song.ogg", "type": 1}
  ]
}`

func newServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	return &Server{
		Orchestrator: &batch.Orchestrator{
			Transcoder: &transcode.Transcoder{Logger: logger},
			Workers:    1,
			Logger:     logger,
		},
		UploadDir: t.TempDir(),
		Logger:    logger,
	}
}

func mczBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	return uploadForm(t, target, filename, data, nil)
}

func uploadForm(t *testing.T, target, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(formField, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadThenDownload(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	data := mczBytes(t, map[string]string{"0/hard.mc": chartJSON, "0/song.ogg": "ogg", "0/bg.jpg": "jpg"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/upload", "My Song.mcz", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Summaries, 1)
	assert.Equal(t, "Hard", resp.Summaries[0].Version)
	assert.Equal(t, 4, resp.Summaries[0].Columns)
	assert.Nil(t, resp.Summaries[0].Rating)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.Download, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="My Song.osz"`, rec.Header().Get("Content-Disposition"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"bg.jpg", "hard.osu", "song.ogg"}, names)

	left, err := os.ReadDir(s.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.Download, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadWithRating(t *testing.T) {
	h := newServer(t).Handler()
	data := mczBytes(t, map[string]string{"hard.mc": chartJSON})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/upload?rate=true&speed=1.5", "set.mcz", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Summaries, 1)
	assert.NotNil(t, resp.Summaries[0].Rating)
}

func TestUploadFormWithoutRating(t *testing.T) {
	s := newServer(t)
	s.Orchestrator.Transcoder.Rater = rating.Mania{}
	h := s.Handler()
	data := mczBytes(t, map[string]string{"hard.mc": chartJSON})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadForm(t, "/upload", "set.mcz", data, map[string]string{"rate": "false"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Summaries, 1)
	assert.Nil(t, resp.Summaries[0].Rating)
	assert.NotNil(t, s.Orchestrator.Transcoder.Rater)
}

func TestUnclaimedDownloadsExpire(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/upload", "set.mcz", mczBytes(t, map[string]string{"hard.mc": chartJSON})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Zero(t, s.expire(time.Now().Add(-time.Hour)))
	left, err := os.ReadDir(s.UploadDir)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	assert.Equal(t, 1, s.expire(time.Now()))
	left, err = os.ReadDir(s.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.Download, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShutdownRemovesUnclaimedDownloads(t *testing.T) {
	s := newServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "/upload", "set.mcz", mczBytes(t, map[string]string{"hard.mc": chartJSON})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.ListenAndServe(ctx, "127.0.0.1:0"))

	left, err := os.ReadDir(s.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestUploadRejects(t *testing.T) {
	s := newServer(t)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/upload", "set.zip", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/upload?speed=-1", "set.mcz", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/upload", "set.mcz", []byte("not a zip")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	left, err := os.ReadDir(s.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDownloadUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(t).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/nope.osz", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndIndex(t *testing.T) {
	h := newServer(t).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="file"`)
	assert.Contains(t, rec.Body.String(), `<option value="false">`)
}

func TestCORS(t *testing.T) {
	s := newServer(t)
	s.AllowedOrigins = []string{"https://example.org"}
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://elsewhere.org")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
