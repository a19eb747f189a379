package repositories

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"restaurant_pos/internal/database"
	"restaurant_pos/internal/events"
	"restaurant_pos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real database when POS_TEST_DATABASE_URL is set.
func TestDraftItemRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("POS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.InitDB(ctx, dsn, "../../db/schema.sql")
	require.NoError(t, err)
	defer db.Close()

	suffix := strconv.FormatInt(time.Now().UnixNano(), 36)
	var tableID, variantID int64
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO dining_tables (code, capacity) VALUES ($1, 4) RETURNING id`, "IT-"+suffix).Scan(&tableID))
	require.NoError(t, db.QueryRowContext(ctx,
		`WITH p AS (INSERT INTO products (name) VALUES ('Tea') RETURNING id)
		 INSERT INTO variants (product_id, price) SELECT id, 20000 FROM p RETURNING id`).Scan(&variantID))

	rec := &recorder{}
	drafts := NewDraftItemRepository(db, rec, 150*time.Minute)
	tables := NewTableRepository(db, rec)
	code := "draft-IT-" + suffix

	item, err := drafts.Create(ctx, &models.DraftItem{DraftCode: code, VariantID: variantID, Quantity: 2, TableIDs: []int64{tableID}})
	require.NoError(t, err)
	assert.Equal(t, models.DraftItemStatusPending, item.Status)
	assert.Equal(t, "Tea", item.VariantName)

	table, err := tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusOccupied, table.Status)

	_, err = drafts.Create(ctx, &models.DraftItem{DraftCode: code, VariantID: variantID, Quantity: 1})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	list, err := drafts.List(ctx, models.DraftItemFilter{TableID: &tableID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []int64{tableID}, list[0].TableIDs)

	n, err := drafts.DeleteByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	table, err = tables.GetByID(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, models.TableStatusAvailable, table.Status)
	assert.Contains(t, rec.names(), events.TableSent)
}
