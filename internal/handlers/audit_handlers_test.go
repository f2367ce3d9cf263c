package handlers

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/memora/backend/internal/services"
)

func TestActivityExport(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "export@test.com", "password123")
	_, otherToken := createTestUser(t, env.db, "export-other@test.com", "password123")

	created := createMemoryViaAPI(t, env, token, 1)
	createMemoryViaAPI(t, env, otherToken, 1)

	id, _ := created["id"].(string)
	env.audit.RecordDivergence(user.ID, nil, "upload batch aborted", []string{"memories/" + user.ID.String() + "/orphan.jpg"}, errStoreDown)

	// flush queued rows before reading them back
	env.audit.Close()

	t.Run("json", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/activity/export?format=json", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		rows, ok := body["data"].([]any)
		if !ok || len(rows) != 2 {
			t.Fatalf("expected 2 rows for the caller, got %+v", body["data"])
		}
		actions := map[string]bool{}
		for _, raw := range rows {
			row, _ := raw.(map[string]any)
			actions[row["action"].(string)] = true
		}
		if !actions["memory.create"] || !actions[services.ActionStorageDivergence] {
			t.Fatalf("unexpected actions: %v", actions)
		}
	})

	t.Run("json filtered by action", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/activity/export?format=json&action="+services.ActionStorageDivergence, nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		rows, _ := body["data"].([]any)
		if len(rows) != 1 {
			t.Fatalf("expected one divergence row, got %d", len(rows))
		}
		details, _ := rows[0].(map[string]any)["details"].(map[string]any)
		if details["reason"] != "upload batch aborted" {
			t.Fatalf("unexpected divergence details: %+v", details)
		}
	})

	t.Run("csv", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/activity/export", nil, authHeaders(token))
		defer resp.Body.Close()
		assertStatus(t, resp, http.StatusOK)

		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Fatalf("expected text/csv, got %q", ct)
		}

		records, err := csv.NewReader(resp.Body).ReadAll()
		if err != nil {
			t.Fatalf("failed parsing csv: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d", len(records))
		}
		if records[0][1] != "Action" {
			t.Fatalf("unexpected header: %v", records[0])
		}

		found := false
		for _, record := range records[1:] {
			if record[1] == "memory.create" && record[3] == id {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected memory.create row for %s, got %v", id, records)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/activity/export?format=xml", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "format must be csv or json")
	})
}
