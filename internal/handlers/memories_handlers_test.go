package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/memora/backend/internal/models"
	"github.com/memora/backend/internal/photokeys"
)

func memoryFields() map[string]string {
	return map[string]string{
		"title":       "Trip",
		"description": "Lisbon weekend",
		"date":        "2024-01-01",
		"mood":        "Happy",
		"visibility":  "private",
	}
}

func createMemoryViaAPI(t *testing.T, env *testEnv, token string, photos int) map[string]any {
	t.Helper()

	resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/memories", memoryFields(), mediaFiles(photos), authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusCreated)
	return dataMap(t, body)
}

func storedPhotoKeys(t *testing.T, env *testEnv, id string) []string {
	t.Helper()

	var memory models.Memory
	if err := env.db.First(&memory, "id = ?", id).Error; err != nil {
		t.Fatalf("failed loading memory %s: %v", id, err)
	}
	return photokeys.Decode(memory.PhotoKeys)
}

func urlsOf(t *testing.T, data map[string]any) []string {
	t.Helper()

	raw, ok := data["allMediaURLs"].([]any)
	if !ok {
		t.Fatalf("expected allMediaURLs array, got %T", data["allMediaURLs"])
	}
	urls := make([]string, len(raw))
	for i, u := range raw {
		urls[i], _ = u.(string)
	}
	return urls
}

func TestMemoryEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "memories@test.com", "password123")

	created := createMemoryViaAPI(t, env, token, 2)
	id, _ := created["id"].(string)

	t.Run("POST /api/memories stores photos and signs urls", func(t *testing.T) {
		if created["title"] != "Trip" || created["memoryDate"] != "2024-01-01" {
			t.Fatalf("unexpected memory fields: %+v", created)
		}
		if created["photoCount"] != float64(2) {
			t.Fatalf("expected photoCount=2, got %v", created["photoCount"])
		}
		if created["mediaType"] != "image/jpeg" {
			t.Fatalf("expected mediaType image/jpeg, got %v", created["mediaType"])
		}
		if _, leaked := created["PhotoKeys"]; leaked {
			t.Fatal("raw key list must not be serialized")
		}

		keys := storedPhotoKeys(t, env, id)
		urls := urlsOf(t, created)
		for i, key := range keys {
			if !strings.HasPrefix(key, "memories/"+user.ID.String()+"/") {
				t.Fatalf("unexpected key %q", key)
			}
			if !env.store.Has(key) {
				t.Fatalf("expected object %q in store", key)
			}
			if !strings.Contains(urls[i], key) {
				t.Fatalf("expected url %d to reference %q", i, key)
			}
		}
		if created["mediaURL"] != urls[0] {
			t.Fatalf("expected mediaURL to be the first url")
		}
	})

	t.Run("GET /api/memories lists own memories", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/memories", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		list, ok := body["data"].([]any)
		if !ok || len(list) != 1 {
			t.Fatalf("expected one memory, got %+v", body["data"])
		}
	})

	t.Run("GET /api/memories/moods", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/memories/moods", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		moods, ok := body["data"].([]any)
		if !ok || len(moods) != len(models.SuggestedMoods) {
			t.Fatalf("expected %d moods, got %+v", len(models.SuggestedMoods), body["data"])
		}
	})

	t.Run("GET /api/memories/:id", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/memories/"+id, nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["id"] != id {
			t.Fatalf("expected memory %s", id)
		}
	})

	t.Run("GET /api/memories/:id invalid id", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/memories/not-a-uuid", nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid memory id")
	})

	t.Run("other users cannot see the memory", func(t *testing.T) {
		_, otherToken := createTestUser(t, env.db, "memories-other@test.com", "password123")
		resp := performRequest(t, env.app, http.MethodGet, "/api/memories/"+id, nil, authHeaders(otherToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusNotFound)
		assertEnvelopeError(t, body, "memory not found")
	})

	t.Run("PUT /api/memories/:id updates metadata only", func(t *testing.T) {
		before := storedPhotoKeys(t, env, id)
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/memories/"+id, map[string]any{
			"title":      "Trip to Porto",
			"date":       "2024-01-02",
			"mood":       "Grateful",
			"visibility": "shared",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["title"] != "Trip to Porto" || data["visibility"] != "shared" {
			t.Fatalf("unexpected update result: %+v", data)
		}
		if after := storedPhotoKeys(t, env, id); strings.Join(after, ",") != strings.Join(before, ",") {
			t.Fatalf("update changed photo keys: %v -> %v", before, after)
		}
	})

	t.Run("PUT /api/memories/:id rejects invalid visibility", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/memories/"+id, map[string]any{
			"title":      "Trip",
			"date":       "2024-01-02",
			"mood":       "Happy",
			"visibility": "public",
		}, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "field visibility must be one of: private shared")
	})
}

func TestCreateMemoryValidationEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "create-validation@test.com", "password123")

	t.Run("no photos", func(t *testing.T) {
		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/memories", memoryFields(), nil, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "at least one photo is required")
	})

	t.Run("too many photos", func(t *testing.T) {
		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/memories", memoryFields(), mediaFiles(11), authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "a memory can have at most 10 photos")
	})

	t.Run("missing title", func(t *testing.T) {
		fields := memoryFields()
		delete(fields, "title")
		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/memories", fields, mediaFiles(1), authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "field title is a required field")
	})

	t.Run("oversized file", func(t *testing.T) {
		big := []formFile{{Field: "media", Name: "big.jpg", ContentType: "image/jpeg", Content: make([]byte, testMaxFileBytes+1)}}
		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/memories", memoryFields(), big, authHeaders(token))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "file big.jpg exceeds the 1 MB limit")
	})

	t.Run("requires auth", func(t *testing.T) {
		resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/memories", memoryFields(), mediaFiles(1), nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusUnauthorized)
		assertEnvelopeError(t, body, "missing authorization header")
	})

	if env.store.Len() != 0 {
		t.Fatalf("rejected requests must not upload, store holds %d objects", env.store.Len())
	}
}

func TestPhotoEndpointsScenario(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "scenario@test.com", "password123")

	created := createMemoryViaAPI(t, env, token, 1)
	id, _ := created["id"].(string)
	photosPath := "/api/memories/" + id + "/photos"

	resp := performMultipartRequest(t, env.app, http.MethodPost, photosPath, nil, mediaFiles(10), authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusBadRequest)
	assertEnvelopeError(t, body, "a memory can have at most 10 photos, it currently has 1")

	resp = performMultipartRequest(t, env.app, http.MethodPost, photosPath, nil, mediaFiles(9), authHeaders(token))
	body = decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusOK)
	data := dataMap(t, body)
	if data["photoCount"] != float64(10) {
		t.Fatalf("expected 10 photos, got %v", data["photoCount"])
	}

	keys := storedPhotoKeys(t, env, id)
	urls := urlsOf(t, data)

	resp = performJSONRequest(t, env.app, http.MethodDelete, photosPath, map[string]string{"photoUrl": urls[3]}, authHeaders(token))
	body = decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusOK)
	if dataMap(t, body)["photoCount"] != float64(9) {
		t.Fatalf("expected 9 photos after delete, got %v", dataMap(t, body)["photoCount"])
	}

	remaining := storedPhotoKeys(t, env, id)
	expected := append(append([]string{}, keys[:3]...), keys[4:]...)
	if strings.Join(remaining, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected order-preserving removal, got %v", remaining)
	}

	resp = performJSONRequest(t, env.app, http.MethodDelete, photosPath, map[string]string{"photoUrl": "https://elsewhere.example.com/x.jpg"}, authHeaders(token))
	body = decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusNotFound)
	assertEnvelopeError(t, body, "photo not found")

	for _, key := range remaining[1:] {
		resp = performJSONRequest(t, env.app, http.MethodDelete, photosPath, map[string]string{"key": key}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp = performJSONRequest(t, env.app, http.MethodDelete, photosPath, map[string]string{"key": remaining[0]}, authHeaders(token))
	body = decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusBadRequest)
	assertEnvelopeError(t, body, "a memory must have at least one photo")

	resp = performRequest(t, env.app, http.MethodDelete, "/api/memories/"+id, nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	if env.store.Len() != 0 {
		t.Fatalf("expected all objects removed, %d remain", env.store.Len())
	}

	resp = performRequest(t, env.app, http.MethodDelete, "/api/memories/"+id, nil, authHeaders(token))
	body = decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusNotFound)
	assertEnvelopeError(t, body, "memory not found")
}

func TestStorageFailureMapsToBadGateway(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "storage-failure@test.com", "password123")

	env.store.FailUpload = func(string) error { return errStoreDown }

	resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/memories", memoryFields(), mediaFiles(2), authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusBadGateway)
	assertEnvelopeError(t, body, "storage operation failed")
}
