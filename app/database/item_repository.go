package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ItemRepository handles database operations for feed items
type ItemRepository struct {
	q Querier
}

// NewItemRepository creates a new item repository over a database or transaction
func NewItemRepository(q Querier) *ItemRepository {
	return &ItemRepository{q: q}
}

// CreateItem inserts a feed entry unless an item with the same (feed_id, guid)
// already exists. A zero createdAt is replaced with the current wall clock.
// Returns the item id and whether a new row was inserted.
func (r *ItemRepository) CreateItem(feedID int64, guid, title, content, url, author string, createdAt int64) (int64, bool, error) {
	var existingID int64
	err := r.q.QueryRow(`
		SELECT id FROM item WHERE feed_id = ? AND guid = ?
	`, feedID, guid).Scan(&existingID)
	if err == nil {
		return existingID, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("failed to check existing item: %w", err)
	}

	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	var newID int64
	err = r.q.QueryRow(`
		INSERT INTO item (feed_id, guid, title, author, content, url, create_time)
		VALUES (?, ?, ?, ?, ?, ?, datetime(?, 'unixepoch'))
		RETURNING id
	`, feedID, guid, title, author, content, url, createdAt).Scan(&newID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert item: %w", err)
	}

	return newID, true, nil
}

const itemColumns = `id, feed_id, title, author, content, url, is_saved, is_read, unixepoch(create_time)`

func (r *ItemRepository) scanItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.FeedID, &item.Title, &item.Author,
			&item.Content, &item.URL, &item.IsSaved, &item.IsRead,
			&item.CreatedOnTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// GetItemsWithIDs returns the items matching the given ids, at most 50
func (r *ItemRepository) GetItemsWithIDs(ids []int64) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.q.Query(fmt.Sprintf(`
		SELECT %s FROM item WHERE id IN (%s) LIMIT 50
	`, itemColumns, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by ids: %w", err)
	}

	return r.scanItems(rows)
}

// GetItemsSince returns up to 50 items with an id greater than sinceID
func (r *ItemRepository) GetItemsSince(sinceID int64) ([]Item, error) {
	rows, err := r.q.Query(fmt.Sprintf(`
		SELECT %s FROM item WHERE id > ? LIMIT 50
	`, itemColumns), sinceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items since id: %w", err)
	}

	return r.scanItems(rows)
}

// GetItemCount returns the total number of items
func (r *ItemRepository) GetItemCount() (int, error) {
	var count int
	err := r.q.QueryRow("SELECT count(*) FROM item").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// GetUnreadCount returns the number of unread items
func (r *ItemRepository) GetUnreadCount() (int, error) {
	var count int
	err := r.q.QueryRow("SELECT count(*) FROM item WHERE is_read = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return count, nil
}

func (r *ItemRepository) getItemIDs(query string) ([]int64, error) {
	rows, err := r.q.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get item ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item id rows: %w", err)
	}

	return ids, nil
}

// GetUnreadItemIDs returns the ids of all unread items
func (r *ItemRepository) GetUnreadItemIDs() ([]int64, error) {
	return r.getItemIDs("SELECT id FROM item WHERE is_read = 0")
}

// GetSavedItemIDs returns the ids of all saved items
func (r *ItemRepository) GetSavedItemIDs() ([]int64, error) {
	return r.getItemIDs("SELECT id FROM item WHERE is_saved = 1")
}

// SetItemRead updates the read flag of an item
func (r *ItemRepository) SetItemRead(id int64, read bool) error {
	_, err := r.q.Exec("UPDATE item SET is_read = ? WHERE id = ?", boolToFlag(read), id)
	if err != nil {
		return fmt.Errorf("failed to set item read status: %w", err)
	}
	return nil
}

// SetItemSaved updates the saved flag of an item
func (r *ItemRepository) SetItemSaved(id int64, saved bool) error {
	_, err := r.q.Exec("UPDATE item SET is_saved = ? WHERE id = ?", boolToFlag(saved), id)
	if err != nil {
		return fmt.Errorf("failed to set item saved status: %w", err)
	}
	return nil
}

func boolToFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
