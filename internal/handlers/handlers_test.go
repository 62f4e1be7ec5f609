package handlers

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/ewastehub/apiserver/config"
	"github.com/ewastehub/apiserver/internal/services"
	"github.com/ewastehub/apiserver/internal/storage"
	"github.com/ewastehub/apiserver/internal/store"
	"github.com/ewastehub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type memUserRepo struct {
	users  map[int]types.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int]types.User), nextID: 1}
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memItemRepo struct {
	items  map[int]types.Item
	nextID int
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[int]types.Item), nextID: 1}
}

func (r *memItemRepo) Create(ctx context.Context, item types.Item) (types.Item, error) {
	item.ID = r.nextID
	r.nextID++
	item.CreatedAt = time.Now()
	r.items[item.ID] = item
	return item, nil
}

func (r *memItemRepo) GetByID(ctx context.Context, id int) (types.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	return item, nil
}

func (r *memItemRepo) ListByUser(ctx context.Context, userID int) ([]types.Item, error) {
	var out []types.Item
	for id := 1; id < r.nextID; id++ {
		if item, ok := r.items[id]; ok && item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memItemRepo) ListAll(ctx context.Context) ([]types.Item, error) {
	var out []types.Item
	for id := 1; id < r.nextID; id++ {
		if item, ok := r.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memItemRepo) Filter(ctx context.Context, tag, category string) ([]types.Item, error) {
	var out []types.Item
	for id := 1; id < r.nextID; id++ {
		item, ok := r.items[id]
		if !ok {
			continue
		}
		if tag != "" && string(item.Tag) != tag {
			continue
		}
		if category != "" && string(item.Category) != category {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *memItemRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(ctx context.Context, imagePath string) *types.Analysis {
	return &types.Analysis{
		Source:       types.AnalysisSourceStub,
		SuggestedTag: types.TagReuse,
	}
}

// testAPI is a fully-wired in-memory handler stack.
type testAPI struct {
	router *chi.Mux
	users  *memUserRepo
	items  *memItemRepo
	cfg    config.AuthConfig
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	local, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	intake := storage.NewIntake(storage.NewStorage(local), "/uploads")

	users := newMemUserRepo()
	items := newMemItemRepo()
	cfg := config.AuthConfig{Secret: "test-secret", TokenTTL: time.Hour}

	userService := services.NewUserService(users)
	itemService := services.NewItemService(items, users, intake, stubAnalyzer{}, nil, "", nil)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, cfg)
	})
	router.Route("/ewaste", func(r chi.Router) {
		EwasteRouter(r, itemService)
	})

	return &testAPI{router: router, users: users, items: items, cfg: cfg}
}

func decodeBody(t *testing.T, body io.Reader, target any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func mustStatus(t *testing.T, got, want int, body io.Reader) {
	t.Helper()
	if got != want {
		payload, _ := io.ReadAll(body)
		t.Fatalf("status = %d, want %d (body: %s)", got, want, payload)
	}
}
