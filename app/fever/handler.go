// Package fever exposes the stored feeds and items through the Fever
// refresh API so stock mobile readers can sync against the pipeline's
// database.
package fever

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yichya/rss-pipe/app/database"
)

// readActions are the Fever request actions served from the store, in the
// order clients expect them resolved
var readActions = []string{
	"groups",
	"feeds",
	"favicons",
	"items",
	"links",
	"unread_item_ids",
	"saved_item_ids",
}

type Handler struct {
	db   *database.DB
	auth string
}

// NewHandler creates a Fever handler backed by the given database. auth is
// the expected api_key; with an empty auth no caller ever authenticates.
func NewHandler(db *database.DB, auth string) *Handler {
	return &Handler{db: db, auth: auth}
}

// Register mounts the Fever endpoint at the given path. Clients use both
// GET and POST against the same URL.
func (h *Handler) Register(router gin.IRouter, path string) {
	router.GET(path, h.handle)
	router.POST(path, h.handle)
}

func (h *Handler) handle(c *gin.Context) {
	// Fever clients spread parameters across the URL query and the POST
	// body; Form merges both into one map
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	params := c.Request.Form

	if !h.authorized(params) {
		c.JSON(http.StatusOK, gin.H{"api_version": 3, "auth": 0})
		return
	}

	lastRefreshed, err := database.NewFeedRepository(h.db).GetLastRefreshedTime()
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{
		"api_version":            3,
		"auth":                   1,
		"last_refreshed_on_time": lastRefreshed,
	}

	if params.Get("mark") == "item" {
		if err := h.markItem(params); err != nil {
			h.fail(c, err)
			return
		}
	}

	for _, action := range readActions {
		if !params.Has(action) {
			continue
		}
		if err := h.apply(params, action, resp); err != nil {
			h.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// authorized compares the submitted api_key against the configured one.
// Fever clients send an MD5 hex digest, so the comparison ignores case.
// Without a configured key the endpoint stays closed.
func (h *Handler) authorized(params url.Values) bool {
	if h.auth == "" {
		return false
	}
	return strings.EqualFold(params.Get("api_key"), h.auth)
}

func (h *Handler) apply(params url.Values, action string, resp gin.H) error {
	items := database.NewItemRepository(h.db)

	switch action {
	case "groups":
		resp["groups"] = []gin.H{}
		resp["feeds_groups"] = []gin.H{}
	case "feeds":
		listings, err := database.NewFeedRepository(h.db).GetAllFeeds()
		if err != nil {
			return err
		}
		feeds := make([]gin.H, 0, len(listings))
		for _, l := range listings {
			feeds = append(feeds, gin.H{
				"id":                   l.Feed.ID,
				"favicon_id":           0,
				"title":                l.Feed.Title,
				"url":                  l.URL.URL,
				"site_url":             l.URL.URL,
				"is_spark":             0,
				"last_updated_on_time": l.Feed.LastUpdated,
			})
		}
		resp["feeds"] = feeds
		resp["feeds_groups"] = []gin.H{}
	case "favicons":
		resp["favicons"] = []gin.H{}
	case "links":
		resp["links"] = []gin.H{}
	case "items":
		rows, err := h.queryItems(params, items)
		if err != nil {
			return err
		}
		total, err := items.GetItemCount()
		if err != nil {
			return err
		}
		resp["items"] = renderItems(rows)
		resp["total_items"] = total
	case "unread_item_ids":
		ids, err := items.GetUnreadItemIDs()
		if err != nil {
			return err
		}
		resp["unread_item_ids"] = joinIDs(ids)
	case "saved_item_ids":
		ids, err := items.GetSavedItemIDs()
		if err != nil {
			return err
		}
		resp["saved_item_ids"] = joinIDs(ids)
	}

	return nil
}

// queryItems resolves the items action's selection: an explicit id list via
// with_ids, or a paging cursor via since_id, defaulting to the beginning
func (h *Handler) queryItems(params url.Values, items *database.ItemRepository) ([]database.Item, error) {
	if withIDs := params.Get("with_ids"); withIDs != "" {
		var ids []int64
		for _, raw := range strings.Split(withIDs, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		return items.GetItemsWithIDs(ids)
	}

	sinceID, _ := strconv.ParseInt(params.Get("since_id"), 10, 64)
	return items.GetItemsSince(sinceID)
}

func (h *Handler) markItem(params url.Values) error {
	id, err := strconv.ParseInt(params.Get("id"), 10, 64)
	if err != nil {
		slog.Warn("Ignoring mark request with invalid item id", "id", params.Get("id"))
		return nil
	}

	items := database.NewItemRepository(h.db)
	switch params.Get("as") {
	case "read":
		return items.SetItemRead(id, true)
	case "unread":
		return items.SetItemRead(id, false)
	case "saved":
		return items.SetItemSaved(id, true)
	case "unsaved":
		return items.SetItemSaved(id, false)
	default:
		slog.Warn("Ignoring mark request with unknown state", "as", params.Get("as"))
		return nil
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	slog.Error("Failed to serve Fever request", "error", err)
	c.String(http.StatusInternalServerError, "internal error")
}

func renderItems(rows []database.Item) []gin.H {
	items := make([]gin.H, 0, len(rows))
	for _, item := range rows {
		items = append(items, gin.H{
			"id":              item.ID,
			"feed_id":         item.FeedID,
			"title":           item.Title,
			"author":          item.Author,
			"html":            item.Content,
			"url":             item.URL,
			"is_saved":        item.IsSaved,
			"is_read":         item.IsRead,
			"created_on_time": item.CreatedOnTime,
		})
	}
	return items
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
