package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/notesync/core/internal/authgw"
	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/syncerr"
	"github.com/notesync/core/internal/synctx"
)

// requestTimeout is the per-attempt HTTP deadline from spec §4.4.1 step 5
// and §5's "Cancellation & timeouts".
const requestTimeout = 30 * time.Second

// Driver is C4, the client sync driver: one POST /sync pipeline bound to
// a local SQLite handle and a server endpoint. Grounded on the teacher's
// internal/httpclient retry-wrapped call style, generalized from a
// server-to-server client into a mobile/desktop sync client.
type Driver struct {
	DB         sqlkit.DB
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
	AppSalt    string
	Refresher  authgw.TokenRefresher
}

// NewDriver builds a Driver with sane defaults for the HTTP client.
func NewDriver(db sqlkit.DB, baseURL, userAgent, appSalt string, refresher authgw.TokenRefresher) *Driver {
	return &Driver{
		DB:         db,
		HTTPClient: &http.Client{Timeout: requestTimeout},
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		AppSalt:    appSalt,
		Refresher:  refresher,
	}
}

// buildRequest assembles the wire Request from a dirty set plus the
// client's persisted sync_state.last_sync_at (spec §4.4.1 step 4).
func buildRequest(ctx context.Context, db sqlkit.Querier, s Session, set dirtySet) (*synctx.Request, error) {
	var lastSyncAt int64
	row := db.QueryRowContext(ctx, `SELECT last_sync_at FROM sync_state WHERE id = 1`)
	if err := row.Scan(&lastSyncAt); err != nil {
		return nil, wrapDBErr("read sync_state", err)
	}

	req := &synctx.Request{
		LastSyncAt:         &lastSyncAt,
		WorkspaceID:        s.WorkspaceID,
		DeviceID:           &s.DeviceID,
		DeviceLabel:        "",
		ConflictResolution: model.DefaultConflictResolution,
		Workspaces:         set.Workspaces,
		Notes:              set.Notes,
		Folders:            set.Folders,
		Tags:               set.Tags,
		Snapshots:          set.Snapshots,
		NoteTags:           set.NoteTags,
	}
	return req, nil
}

// sendSyncRequest posts req to BaseURL+"/sync", retrying transient
// network failures with exponential backoff (grounded on the teacher's
// use of cenkalti/backoff/v4 for its outbound HTTP client) and retrying
// exactly once on a 401 via the TokenRefresher (spec §4.4.1 step 6).
func (d *Driver) sendSyncRequest(ctx context.Context, accessToken string, req *synctx.Request) (*synctx.Response, error) {
	resp, status, err := d.postOnce(ctx, accessToken, req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if d.Refresher == nil {
			return nil, fmt.Errorf("syncclient: unauthenticated, no refresher configured: %w", syncerr.ErrAuthRequired)
		}
		newToken, rerr := d.Refresher.Refresh(ctx)
		if rerr != nil {
			return nil, fmt.Errorf("syncclient: token refresh failed: %w", syncerr.ErrAuthRequired)
		}
		resp, status, err = d.postOnce(ctx, newToken, req)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("syncclient: still unauthenticated after refresh: %w", syncerr.ErrAuthRequired)
		}
	}
	if status == http.StatusForbidden {
		return nil, fmt.Errorf("syncclient: workspace not owned: %w", syncerr.ErrOwnership)
	}
	if status == http.StatusConflict {
		return nil, fmt.Errorf("syncclient: sync in progress: %w", syncerr.ErrLockHeld)
	}
	if status >= 500 {
		return nil, fmt.Errorf("syncclient: server error (%d): %w", status, syncerr.ErrServer)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("syncclient: unexpected status %d: %w", status, syncerr.ErrServer)
	}
	return resp, nil
}

// postOnce performs a single HTTP attempt, with network-level failures
// (not HTTP error statuses) retried via exponential backoff.
func (d *Driver) postOnce(ctx context.Context, accessToken string, req *synctx.Request) (*synctx.Response, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("syncclient: marshal request: %w", err)
	}

	var respBody []byte
	var status int

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/sync", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("syncclient: build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
		httpReq.Header.Set("User-Agent", d.UserAgent)

		httpResp, err := d.HTTPClient.Do(httpReq)
		if err != nil {
			log.Warn().Err(err).Msg("sync request attempt failed, retrying")
			return fmt.Errorf("syncclient: %w: %v", syncerr.ErrNetwork, err)
		}
		defer httpResp.Body.Close()

		status = httpResp.StatusCode
		respBody, err = io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("syncclient: %w: reading body: %v", syncerr.ErrNetwork, err)
		}

		// Only a transport-level failure should be retried; any HTTP
		// status (even 5xx) is treated as a terminal outcome of this
		// attempt and interpreted by the caller.
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		return nil, 0, err
	}

	if status != http.StatusOK {
		return nil, status, nil
	}

	var out synctx.Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, status, fmt.Errorf("syncclient: decode response: %w", err)
	}
	return &out, status, nil
}
