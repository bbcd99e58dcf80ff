package database

import (
	"database/sql"
)

// Querier is the query surface shared by *sql.DB and *sql.Tx. Repositories
// are constructed over it so the same code runs standalone or inside a
// transaction opened by DB.InTransaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type FeedStore interface {
	GetLocationByURL(url string) (*FeedURL, error)
	UpsertFeed(url, title string) (int64, int64, bool, error)
	GetAllFeeds() ([]FeedListing, error)
	GetLastRefreshedTime() (int64, error)
}

type ItemStore interface {
	CreateItem(feedID int64, guid, title, content, url, author string, createdAt int64) (int64, bool, error)
	GetItemsWithIDs(ids []int64) ([]Item, error)
	GetItemsSince(sinceID int64) ([]Item, error)
	GetItemCount() (int, error)
	GetUnreadCount() (int, error)
	GetUnreadItemIDs() ([]int64, error)
	GetSavedItemIDs() ([]int64, error)
	SetItemRead(id int64, read bool) error
	SetItemSaved(id int64, saved bool) error
}

var _ FeedStore = (*FeedRepository)(nil)
var _ ItemStore = (*ItemRepository)(nil)
