package fever

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yichya/rss-pipe/app/database"
)

const testKey = "secret"

func newTestServer(t *testing.T, auth string) (*gin.Engine, *database.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("Expected no error opening database, got: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Expected no error running migrations, got: %v", err)
	}

	router := gin.New()
	NewHandler(db, auth).Register(router, "/fever")

	return router, db
}

func seedFeed(t *testing.T, db *database.DB, url, title string, guids ...string) int64 {
	t.Helper()

	feedID, _, _, err := database.NewFeedRepository(db).UpsertFeed(url, title)
	if err != nil {
		t.Fatalf("Expected no error seeding feed, got: %v", err)
	}

	items := database.NewItemRepository(db)
	for _, guid := range guids {
		_, _, err := items.CreateItem(feedID, guid, "Title "+guid, "<p>Body</p>",
			"https://example.com/"+guid, "author", 1700000000)
		if err != nil {
			t.Fatalf("Expected no error seeding item, got: %v", err)
		}
	}

	return feedID
}

// feverRequest posts the form against /fever with the api_key included, the
// way stock Fever clients authenticate
func feverRequest(t *testing.T, router *gin.Engine, query string, form url.Values) map[string]any {
	t.Helper()

	if form == nil {
		form = url.Values{}
	}
	if form.Get("api_key") == "" {
		form.Set("api_key", testKey)
	}

	req := httptest.NewRequest("POST", "/fever?api&"+query, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON response, got: %v", err)
	}
	return resp
}

// feverGet issues a bare GET with every parameter in the query string
func feverGet(t *testing.T, router *gin.Engine, query string) map[string]any {
	t.Helper()

	req := httptest.NewRequest("GET", "/fever?api&"+query, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected valid JSON response, got: %v", err)
	}
	return resp
}

func TestRejectsWrongAPIKey(t *testing.T) {
	router, _ := newTestServer(t, testKey)

	resp := feverRequest(t, router, "feeds", url.Values{"api_key": {"wrong"}})

	if resp["auth"] != float64(0) {
		t.Errorf("Expected auth 0 for wrong key, got: %v", resp["auth"])
	}
	if _, ok := resp["feeds"]; ok {
		t.Error("Expected no feeds in unauthenticated response")
	}
}

func TestUnconfiguredAuthRejectsEveryone(t *testing.T) {
	router, db := newTestServer(t, "")
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a")

	for _, query := range []string{"items", "feeds", "items&api_key="} {
		resp := feverGet(t, router, query)

		if resp["auth"] != float64(0) {
			t.Errorf("Expected auth 0 without a configured key (query %q), got: %v", query, resp["auth"])
		}
		for _, key := range []string{"items", "feeds", "last_refreshed_on_time"} {
			if _, ok := resp[key]; ok {
				t.Errorf("Expected no %s without a configured key", key)
			}
		}
	}
}

func TestAPIKeyComparisonIgnoresCase(t *testing.T) {
	router, _ := newTestServer(t, "AbCdEf0123")

	resp := feverRequest(t, router, "", url.Values{"api_key": {"abcdef0123"}})

	if resp["auth"] != float64(1) {
		t.Errorf("Expected auth 1 for case-insensitive key match, got: %v", resp["auth"])
	}
	if resp["api_version"] != float64(3) {
		t.Errorf("Expected api_version 3, got: %v", resp["api_version"])
	}
}

func TestAPIKeyAcceptedInQueryString(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a")

	resp := feverGet(t, router, "api_key="+testKey+"&items")

	if resp["auth"] != float64(1) {
		t.Fatalf("Expected auth 1 for key in query string, got: %v", resp["auth"])
	}
	items, ok := resp["items"].([]any)
	if !ok || len(items) != 1 {
		t.Errorf("Expected 1 item for query-string request, got: %v", resp["items"])
	}
}

func TestActionsAcceptedInFormBody(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a")

	resp := feverRequest(t, router, "", url.Values{"unread_item_ids": {""}})

	if resp["unread_item_ids"] != "1" {
		t.Errorf("Expected form-body action to be honored, got: %v", resp["unread_item_ids"])
	}
}

func TestFeedsAction(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a")

	resp := feverRequest(t, router, "feeds", nil)

	feeds, ok := resp["feeds"].([]any)
	if !ok || len(feeds) != 1 {
		t.Fatalf("Expected 1 feed, got: %v", resp["feeds"])
	}

	feed := feeds[0].(map[string]any)
	if feed["title"] != "Example Feed" {
		t.Errorf("Expected feed title 'Example Feed', got: %v", feed["title"])
	}
	if feed["url"] != "https://example.com/feed" {
		t.Errorf("Expected canonical feed URL, got: %v", feed["url"])
	}
	if _, ok := resp["feeds_groups"]; !ok {
		t.Error("Expected feeds_groups alongside feeds")
	}
}

func TestItemsSinceID(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a", "b", "c")

	resp := feverRequest(t, router, "items&since_id=1", nil)

	items, ok := resp["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("Expected 2 items after id 1, got: %v", resp["items"])
	}
	if resp["total_items"] != float64(3) {
		t.Errorf("Expected total_items 3, got: %v", resp["total_items"])
	}

	item := items[0].(map[string]any)
	if item["html"] != "<p>Body</p>" {
		t.Errorf("Expected item content under html, got: %v", item["html"])
	}
	if item["created_on_time"] != float64(1700000000) {
		t.Errorf("Expected epoch created_on_time, got: %v", item["created_on_time"])
	}
}

func TestItemsWithIDs(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a", "b", "c")

	resp := feverRequest(t, router, "items&with_ids=1%2C3", nil)

	items, ok := resp["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("Expected 2 items for with_ids, got: %v", resp["items"])
	}
}

func TestUnreadAndSavedItemIDs(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a", "b")

	items := database.NewItemRepository(db)
	if err := items.SetItemRead(1, true); err != nil {
		t.Fatalf("Expected no error marking read, got: %v", err)
	}
	if err := items.SetItemSaved(2, true); err != nil {
		t.Fatalf("Expected no error marking saved, got: %v", err)
	}

	resp := feverRequest(t, router, "unread_item_ids&saved_item_ids", nil)

	if resp["unread_item_ids"] != "2" {
		t.Errorf("Expected unread_item_ids '2', got: %v", resp["unread_item_ids"])
	}
	if resp["saved_item_ids"] != "2" {
		t.Errorf("Expected saved_item_ids '2', got: %v", resp["saved_item_ids"])
	}
}

func TestMarkItemRead(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed", "a")

	feverRequest(t, router, "", url.Values{"mark": {"item"}, "as": {"read"}, "id": {"1"}})

	count, err := database.NewItemRepository(db).GetUnreadCount()
	if err != nil {
		t.Fatalf("Expected no error counting unread, got: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 unread items after mark, got: %d", count)
	}
}

func TestGroupsAndLinksAreEmpty(t *testing.T) {
	router, _ := newTestServer(t, testKey)

	resp := feverRequest(t, router, "groups&links&favicons", nil)

	for _, key := range []string{"groups", "feeds_groups", "links", "favicons"} {
		value, ok := resp[key].([]any)
		if !ok {
			t.Fatalf("Expected %s to be an array, got: %v", key, resp[key])
		}
		if len(value) != 0 {
			t.Errorf("Expected empty %s, got: %v", key, value)
		}
	}
}

func TestLastRefreshedOnTime(t *testing.T) {
	router, db := newTestServer(t, testKey)
	seedFeed(t, db, "https://example.com/feed", "Example Feed")

	resp := feverRequest(t, router, "", nil)

	last, ok := resp["last_refreshed_on_time"].(float64)
	if !ok {
		t.Fatalf("Expected numeric last_refreshed_on_time, got: %v", resp["last_refreshed_on_time"])
	}
	if last == 0 {
		t.Error("Expected non-zero last_refreshed_on_time after seeding a feed")
	}
}
