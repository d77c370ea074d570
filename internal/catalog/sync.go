package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	feedBatchPrefix     = "feed-"
	lastFeedSyncMetaKey = "catalog.last_feed_sync"
)

type FeedStore interface {
	ProductWriter
	RetireBatches(ctx context.Context, prefix, keep string) (int64, error)
	SetMetadata(ctx context.Context, key, value string) error
}

type feedSource interface {
	Products(ctx context.Context) ([]FeedProduct, error)
}

type SyncResult struct {
	ImportResult
	Retired int64 `json:"retired"`
}

// SyncService replaces the feed-sourced part of the catalog with the current
// feed contents. Sheet imports are left alone.
type SyncService struct {
	store  FeedStore
	client feedSource
}

func NewSyncService(store FeedStore, client *FeedClient) *SyncService {
	return &SyncService{store: store, client: client}
}

// Pull inserts every valid feed product under a new batch and then retires
// earlier feed batches. A feed with no valid products changes nothing.
func (s *SyncService) Pull(ctx context.Context) (SyncResult, error) {
	items, err := s.client.Products(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch catalog feed: %w", err)
	}

	batchID := feedBatchPrefix + uuid.NewString()
	products, rowErrors := ParseProductRows(feedRows(items), batchID)
	res := SyncResult{ImportResult: ImportResult{BatchID: batchID, Errors: rowErrors}}
	if len(products) == 0 {
		log.Warn().Int("received", len(items)).Msg("catalog feed had no valid products, keeping current catalog")
		return res, nil
	}

	ids, err := s.store.InsertProducts(ctx, products)
	if err != nil {
		return res, fmt.Errorf("insert feed products: %w", err)
	}
	res.Imported = len(ids)

	res.Retired, err = s.store.RetireBatches(ctx, feedBatchPrefix, batchID)
	if err != nil {
		return res, fmt.Errorf("retire previous feed products: %w", err)
	}
	_ = s.store.SetMetadata(ctx, lastFeedSyncMetaKey, time.Now().UTC().Format(time.RFC3339))

	log.Info().Str("batch", batchID).Int("imported", res.Imported).Int64("retired", res.Retired).
		Int("errors", len(rowErrors)).Msg("catalog feed sync finished")
	return res, nil
}

// feedRows lays feed products out like an import sheet so both paths share
// one set of validation rules.
func feedRows(items []FeedProduct) [][]string {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, templateHeaders)
	for _, p := range items {
		rows = append(rows, []string{
			p.Name, p.Description, p.Category, p.HSNCode,
			formatPrice(&p.BasePrice), formatPrice(p.MinPrice), formatPrice(p.MaxPrice), p.Unit,
		})
	}
	return rows
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
