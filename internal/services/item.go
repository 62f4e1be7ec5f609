package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ewastehub/apiserver/internal/cache"
	"github.com/ewastehub/apiserver/internal/mq"
	"github.com/ewastehub/apiserver/internal/storage"
	"github.com/ewastehub/apiserver/internal/store"
	"github.com/ewastehub/apiserver/types"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// ErrMissingPrice is returned when a working item is submitted without
// a positive price.
var ErrMissingPrice = errors.New("price is required for working items")

// ErrUnknownUser is returned when a submission references a user that
// does not exist.
var ErrUnknownUser = errors.New("unknown user")

// ItemRepository defines persistence operations for e-waste items.
type ItemRepository interface {
	Create(ctx context.Context, item types.Item) (types.Item, error)
	GetByID(ctx context.Context, id int) (types.Item, error)
	ListByUser(ctx context.Context, userID int) ([]types.Item, error)
	ListAll(ctx context.Context) ([]types.Item, error)
	Filter(ctx context.Context, tag, category string) ([]types.Item, error)
	Delete(ctx context.Context, id int) error
}

// Analyzer produces a component analysis for a stored image reference.
// Implementations never fail: they fall back to a local estimate.
type Analyzer interface {
	Analyze(ctx context.Context, imagePath string) *types.Analysis
}

// ItemService encapsulates the e-waste submission and read paths:
// intake, tagging, optional image analysis, listing and aggregate
// reporting.
type ItemService struct {
	items    ItemRepository
	users    UserRepository
	intake   *storage.Intake
	analyzer Analyzer
	events   *mq.MQ
	channel  string
	cache    *cache.AnalyticsCache
}

// NewItemService constructs an ItemService. events and cache may be
// nil; both are optional collaborators.
func NewItemService(
	items ItemRepository,
	users UserRepository,
	intake *storage.Intake,
	analyzer Analyzer,
	events *mq.MQ,
	channel string,
	analyticsCache *cache.AnalyticsCache,
) *ItemService {
	return &ItemService{
		items:    items,
		users:    users,
		intake:   intake,
		analyzer: analyzer,
		events:   events,
		channel:  channel,
		cache:    analyticsCache,
	}
}

// UploadedImage is an image binary received with a submission.
type UploadedImage struct {
	Filename    string
	Data        []byte
	ContentType string
}

// SubmitInput carries a new item submission.
type SubmitInput struct {
	UserID      int
	Category    string
	ProductName *string
	IsWorking   bool
	Price       *int
	Image       *UploadedImage
}

// Submit stores a new e-waste item, resolving its tag, price and
// optional analysis from the working-state rules:
//
//   - working items are tagged "reuse" and must carry a positive
//     price, otherwise ErrMissingPrice;
//   - non-working items are tagged "recycle", any submitted price is
//     discarded, and if an image was supplied it is analyzed. Analysis
//     never fails the submission: a live-service fault falls back to
//     the deterministic local estimate.
func (s *ItemService) Submit(ctx context.Context, in SubmitInput) (types.Item, error) {
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Item{}, ErrUnknownUser
		}
		return types.Item{}, err
	}

	var imagePath *string
	if in.Image != nil {
		ref, err := s.intake.Store(ctx, in.Image.Filename, in.Image.Data, in.Image.ContentType)
		if err != nil {
			return types.Item{}, fmt.Errorf("storing image: %w", err)
		}
		imagePath = &ref
	}

	item := types.Item{
		UserID:      in.UserID,
		Category:    types.Category(in.Category),
		ProductName: in.ProductName,
		IsWorking:   in.IsWorking,
		ImagePath:   imagePath,
	}

	if in.IsWorking {
		if in.Price == nil || *in.Price <= 0 {
			return types.Item{}, ErrMissingPrice
		}
		item.Tag = types.TagReuse
		item.Price = in.Price
	} else {
		item.Tag = types.TagRecycle
		item.Price = nil
		if imagePath != nil && s.analyzer != nil {
			item.Analysis = s.analyzer.Analyze(ctx, *imagePath)
		}
	}

	created, err := s.items.Create(ctx, item)
	if err != nil {
		return types.Item{}, err
	}

	s.publishSubmitted(ctx, created)
	s.cache.Invalidate(ctx)
	return created, nil
}

// publishSubmitted emits a submitted-item event to the configured
// channel. Best-effort: failures are logged and never surface.
func (s *ItemService) publishSubmitted(ctx context.Context, item types.Item) {
	if s.events == nil || s.channel == "" {
		return
	}
	payload, err := json.Marshal(item)
	if err != nil {
		logger.Warn().Err(err).Int("item_id", item.ID).Msg("encoding submitted-item event failed")
		return
	}
	attrs := map[string]string{"event": "item.submitted", "tag": string(item.Tag)}
	if _, err := s.events.Publish(ctx, s.channel, payload, attrs); err != nil {
		logger.Warn().Err(err).Int("item_id", item.ID).Msg("publishing submitted-item event failed")
	}
}

// ListByUser returns all items owned by the given user.
func (s *ItemService) ListByUser(ctx context.Context, userID int) ([]types.Item, error) {
	return s.items.ListByUser(ctx, userID)
}

// ItemWithOwner is an item joined with its owner's display fields.
type ItemWithOwner struct {
	types.Item
	UserName  string  `json:"user_name"`
	UserPhone *string `json:"user_phone,omitempty"`
}

// ListAll returns every item joined with its owner's name. Items whose
// owner lookup fails are silently dropped.
func (s *ItemService) ListAll(ctx context.Context) ([]ItemWithOwner, error) {
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.attachOwners(ctx, items, false), nil
}

// ListReusable returns items tagged for reuse joined with the owner's
// name and phone, for buyer-contact display.
func (s *ItemService) ListReusable(ctx context.Context) ([]ItemWithOwner, error) {
	items, err := s.items.Filter(ctx, string(types.TagReuse), "")
	if err != nil {
		return nil, err
	}
	return s.attachOwners(ctx, items, true), nil
}

// Filter returns items matching the given tag and category. Empty
// arguments impose no constraint; unrecognized values match nothing.
func (s *ItemService) Filter(ctx context.Context, tag, category string) ([]types.Item, error) {
	return s.items.Filter(ctx, tag, category)
}

// Delete removes an item. The stored image is intentionally left in
// place. Returns store.ErrNotFound for unknown ids.
func (s *ItemService) Delete(ctx context.Context, id int) error {
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	return nil
}

// AnalyticsItem is an item row in the analytics payload, with the
// owner's name when the owner still exists.
type AnalyticsItem struct {
	types.Item
	UserName *string `json:"user_name"`
}

// AnalyticsResponse is the aggregate report. ByTag and ByCategory
// always contain every predeclared bucket, zero-initialized. Error is
// set when the report is a degraded default after an internal fault.
type AnalyticsResponse struct {
	Total      int             `json:"total"`
	ByTag      map[string]int  `json:"by_tag"`
	ByCategory map[string]int  `json:"by_category"`
	AllItems   []AnalyticsItem `json:"all_items"`
	Error      string          `json:"error,omitempty"`
}

// Analytics computes aggregate counts by tag and category over all
// items. It never fails: on any internal fault it returns the
// zero-shaped response with Error set, and callers are expected to
// check that field.
func (s *ItemService) Analytics(ctx context.Context) AnalyticsResponse {
	if payload, ok := s.cache.Get(ctx); ok {
		var resp AnalyticsResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			return resp
		}
	}

	resp, err := s.computeAnalytics(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("analytics computation failed, returning degraded response")
		degraded := emptyAnalytics()
		degraded.Error = err.Error()
		return degraded
	}

	if payload, err := json.Marshal(resp); err == nil {
		s.cache.Set(ctx, payload)
	}
	return resp
}

func (s *ItemService) computeAnalytics(ctx context.Context) (AnalyticsResponse, error) {
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return AnalyticsResponse{}, err
	}

	resp := emptyAnalytics()
	resp.Total = len(items)

	owners := make(map[int]*types.User)
	for _, item := range items {
		resp.ByTag[string(item.Tag.Bucket())]++
		resp.ByCategory[string(item.Category.Bucket())]++

		row := AnalyticsItem{Item: item}
		if owner := s.lookupOwner(ctx, owners, item.UserID); owner != nil {
			row.UserName = &owner.Name
		}
		resp.AllItems = append(resp.AllItems, row)
	}
	return resp, nil
}

func emptyAnalytics() AnalyticsResponse {
	return AnalyticsResponse{
		ByTag: map[string]int{
			string(types.TagReuse):   0,
			string(types.TagResell):  0,
			string(types.TagRecycle): 0,
			string(types.TagUnknown): 0,
		},
		ByCategory: map[string]int{
			string(types.CategoryConsumer): 0,
			string(types.CategoryUtility):  0,
			string(types.CategoryUnknown):  0,
		},
		AllItems: []AnalyticsItem{},
	}
}

func (s *ItemService) attachOwners(ctx context.Context, items []types.Item, includePhone bool) []ItemWithOwner {
	owners := make(map[int]*types.User)
	result := make([]ItemWithOwner, 0, len(items))
	for _, item := range items {
		owner := s.lookupOwner(ctx, owners, item.UserID)
		if owner == nil {
			continue
		}
		row := ItemWithOwner{Item: item, UserName: owner.Name}
		if includePhone {
			row.UserPhone = owner.Phone
		}
		result = append(result, row)
	}
	return result
}

// lookupOwner memoizes owner lookups per call, caching misses as nil.
func (s *ItemService) lookupOwner(ctx context.Context, memo map[int]*types.User, userID int) *types.User {
	if owner, seen := memo[userID]; seen {
		return owner
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		memo[userID] = nil
		return nil
	}
	memo[userID] = &user
	return &user
}
