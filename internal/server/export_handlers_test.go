package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jaki95/timeline-editor/internal/job"
	"github.com/jaki95/timeline-editor/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) waitForJob(t *testing.T, jobID string) *job.Status {
	t.Helper()
	var status *job.Status
	require.Eventually(t, func() bool {
		var err error
		status, err = ts.jobs.GetJob(jobID)
		return err == nil && status.Done()
	}, 2*time.Second, 10*time.Millisecond)
	return status
}

func TestExportLifecycle(t *testing.T) {
	ts := newTestServer(t)
	video := ts.uploadFile(t, "a.mp4", "video/mp4", "video")
	ts.place(t, video.ID)
	ts.place(t, video.ID)

	rr := ts.do(t, http.MethodPost, "/api/v1/exports", job.Request{Format: "webm"})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	jobID := decode[map[string]string](t, rr)["jobId"]
	require.NotEmpty(t, jobID)

	status := ts.waitForJob(t, jobID)
	require.Equal(t, job.StatusCompleted, status.Status, status.Error)
	assert.Equal(t, job.ProgressComplete, status.Progress)
	assert.Equal(t, "video/webm", status.MimeType)
	assert.True(t, strings.HasSuffix(status.FileName, ".webm"))

	rr = ts.do(t, http.MethodGet, "/api/v1/exports/"+jobID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, job.StatusCompleted, decode[job.Status](t, rr).Status)

	rr = ts.do(t, http.MethodGet, "/api/v1/exports/"+jobID+"/download", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rendered", rr.Body.String())
	assert.Equal(t, "video/webm", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), status.FileName)

	ts.transcoder.mu.Lock()
	assert.Len(t, ts.transcoder.calls, 3, "two trims and a concat render")
	assert.Empty(t, ts.transcoder.files, "every handle is released")
	ts.transcoder.mu.Unlock()
	assert.Eventually(t, func() bool {
		ts.transcoder.mu.Lock()
		defer ts.transcoder.mu.Unlock()
		return ts.transcoder.closed
	}, time.Second, 10*time.Millisecond)

	rr = ts.do(t, http.MethodGet, "/api/v1/exports", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[job.Response](t, rr).TotalJobs)

	rr = ts.do(t, http.MethodDelete, "/api/v1/exports/"+jobID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(t, http.MethodGet, "/api/v1/exports/"+jobID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExportDefaultsFormat(t *testing.T) {
	ts := newTestServer(t)
	video := ts.uploadFile(t, "a.mp4", "video/mp4", "video")
	ts.place(t, video.ID)

	rr := ts.do(t, http.MethodPost, "/api/v1/exports", nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	status := ts.waitForJob(t, decode[map[string]string](t, rr)["jobId"])
	assert.Equal(t, "mp4", status.Format)
	assert.Equal(t, "video/mp4", status.MimeType)
}

func TestExportFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.transcoder.failErr = errors.New("encoder crashed")
	video := ts.uploadFile(t, "a.mp4", "video/mp4", "video")
	ts.place(t, video.ID)

	rr := ts.do(t, http.MethodPost, "/api/v1/exports", job.Request{Format: "mp4"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	jobID := decode[map[string]string](t, rr)["jobId"]

	status := ts.waitForJob(t, jobID)
	assert.Equal(t, job.StatusFailed, status.Status)
	assert.Contains(t, status.Error, "encoder crashed")

	rr = ts.do(t, http.MethodGet, "/api/v1/exports/"+jobID+"/download", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/v1/exports/"+jobID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestExportValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/v1/exports", job.Request{Format: "mp4"})
	assert.Equal(t, http.StatusConflict, rr.Code, "empty timeline")

	video := ts.uploadFile(t, "a.mp4", "video/mp4", "video")
	ts.place(t, video.ID)

	rr = ts.do(t, http.MethodPost, "/api/v1/exports", job.Request{Format: "gif"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/exports/export-404", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/v1/exports/formats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"video/webm"`)
}

func TestExportEventsStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	status, _ := ts.jobs.CreateJob("mp4")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/exports/" + status.ID + "/events"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first progress.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, progress.StageQueued, first.Stage)

	require.NoError(t, ts.jobs.StartJob(status.ID))
	require.NoError(t, ts.jobs.UpdateJobProgress(status.ID, 40, "Rendering 40%"))
	require.NoError(t, ts.jobs.CompleteJob(t.Context(), status.ID, "out.mp4", "video/mp4", []byte("x")))

	var last progress.Event
	for {
		var event progress.Event
		if err := conn.ReadJSON(&event); err != nil {
			var closeErr *websocket.CloseError
			require.True(t, errors.As(err, &closeErr), "unexpected error: %v", err)
			assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
			break
		}
		assert.GreaterOrEqual(t, event.Progress, last.Progress)
		last = event
	}
	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Equal(t, 100, last.Progress)
}

func TestExportEventsUnknownJob(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/v1/exports/export-404/events", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
