package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/crm"
	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/ingest"
)

var snapshotIDRe = regexp.MustCompile(models.SnapshotIDPattern)

type triggerRequest struct {
	SnapshotID string       `json:"snapshot_id"`
	Limit      *int         `json:"limit"`
	DryRun     bool         `json:"dry_run"`
	TestMode   bool         `json:"test_mode"`
	Filters    []crm.Filter `json:"filters"`
}

// parseTrigger reads the trigger parameters from the query string, then
// lets a JSON body override them.
func parseTrigger(r *http.Request) (triggerRequest, error) {
	var req triggerRequest

	qs := r.URL.Query()
	req.SnapshotID = qs.Get("snapshot_id")
	req.DryRun = qs.Get("dry_run") == "true"
	req.TestMode = qs.Get("test_mode") == "true"
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, errors.New("limit must be a non-negative integer")
		}
		req.Limit = &n
	}

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
	}

	if req.SnapshotID != "" && !snapshotIDRe.MatchString(req.SnapshotID) {
		return req, fmt.Errorf("snapshot_id %q is not a UTC second timestamp", req.SnapshotID)
	}
	if req.Limit != nil && *req.Limit < 0 {
		return req, errors.New("limit must be a non-negative integer")
	}
	return req, nil
}

// TriggerSnapshot runs one ingestion synchronously and returns its report.
func (c *Controller) TriggerSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseTrigger(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	limit := c.App.Config.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	runner, err := c.App.RunnerFor(ctx, req.TestMode)
	if err != nil {
		c.App.Logger.Error("Unable to open warehouse for trigger", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	report, err := runner.Run(ctx, ingest.Options{
		SnapshotID:  req.SnapshotID,
		Limit:       limit,
		Filters:     req.Filters,
		DryRun:      req.DryRun,
		TriggeredBy: "http",
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListSnapshots returns recent registry entries, newest first.
func (c *Controller) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	qs := r.URL.Query()

	limit := 0
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	store, err := c.App.StoreFor(ctx, qs.Get("test_mode") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	entries, err := store.ListSnapshots(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"snapshots": entries})
}

// LatestSnapshot returns the most recent registry entry, 404 when the
// registry is empty.
func (c *Controller) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	store, err := c.App.StoreFor(ctx, r.URL.Query().Get("test_mode") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	entry, err := store.LatestSnapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, errors.New("no snapshots registered"))
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
