package accounting

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oomaallah/hotelops/internal/platform/httpx"
)

func newTestRouter(f *ledgerFixture) http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.Actor)
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc).MountRoutes(r)
	return r
}

func postJSON(t *testing.T, h http.Handler, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(httpx.HeaderUserID, uuid.NewString())
		req.Header.Set(httpx.HeaderUserRole, role)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestManualJournalEndpoint(t *testing.T) {
	f := newLedgerFixture(t)
	h := newTestRouter(f)

	unbalanced := fmt.Sprintf(`{"description":"float","lines":[{"account_id":%q,"debit":500},{"account_id":%q,"credit":300}]}`, f.cash.ID, f.revenue.ID)
	rr := postJSON(t, h, "/journals", "accountant", unbalanced)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "unbalanced entry")
	require.Zero(t, f.repo.entryCount())

	rr = postJSON(t, h, "/journals", "", unbalanced)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = postJSON(t, h, "/journals", "waiter", unbalanced)
	require.Equal(t, http.StatusForbidden, rr.Code)

	balanced := fmt.Sprintf(`{"description":"float","entry_date":"2026-04-01","lines":[{"account_id":%q,"debit":300},{"account_id":%q,"credit":300}]}`, f.cash.ID, f.revenue.ID)
	rr = postJSON(t, h, "/journals", "admin", balanced)
	require.Equal(t, http.StatusCreated, rr.Code)
	var entry JournalEntry
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&entry))
	require.Equal(t, 300.0, entry.TotalCredit)
	require.Equal(t, 1, entry.Date.Day())

	rr = postJSON(t, h, "/journals", "accountant", `{"description":"x","lines":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), `"lines"`)
}

func TestListJournalsEndpoint(t *testing.T) {
	f := newLedgerFixture(t)
	h := newTestRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/journals?page=1&per_page=10", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":[],"pagination":{"page":1,"per_page":10,"total":0,"total_pages":0}}`, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/journals?from=April", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/integrity", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"balanced":true`)
}
