package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ewastehub/apiserver/internal/services"
	"github.com/ewastehub/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 32 << 20
	maxImageBytes      = 16 << 20

	formFieldUserID      = "user_id"
	formFieldCategory    = "category"
	formFieldProductName = "product_name"
	formFieldIsWorking   = "is_working"
	formFieldPrice       = "price"
	formFieldImage       = "image"
)

// EwasteHandler provides HTTP handlers for e-waste items.
type EwasteHandler struct {
	itemService *services.ItemService
}

// NewEwasteHandler constructs a handler with the provided service.
func NewEwasteHandler(itemService *services.ItemService) *EwasteHandler {
	return &EwasteHandler{itemService: itemService}
}

// EwasteRouter registers e-waste routes on the given router.
func EwasteRouter(r chi.Router, itemService *services.ItemService) {
	handler := NewEwasteHandler(itemService)

	r.Post("/add", handler.AddItem)
	r.Get("/user/{userID}", handler.ListUserItems)
	r.Get("/all", handler.ListAllItems)
	r.Get("/filter", handler.FilterItems)
	r.Get("/analytics", handler.Analytics)
	r.Get("/reusable", handler.ListReusableItems)
	r.Delete("/{itemID}", handler.DeleteItem)
}

// AddItem accepts a multipart item submission with an optional image.
func (h *EwasteHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	input, err := parseSubmitForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.itemService.Submit(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingPrice):
			writeError(w, http.StatusBadRequest, "price is required for working items")
		case errors.Is(err, services.ErrUnknownUser):
			writeError(w, http.StatusBadRequest, "unknown user")
		default:
			writeError(w, http.StatusInternalServerError, "failed to add item")
		}
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// ListUserItems returns all items owned by the user in the path.
func (h *EwasteHandler) ListUserItems(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	items, err := h.itemService.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListAllItems returns every item with the owner's name attached.
func (h *EwasteHandler) ListAllItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemService.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// FilterItems returns items matching the tag and category query
// parameters. Either may be absent.
func (h *EwasteHandler) FilterItems(w http.ResponseWriter, r *http.Request) {
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	items, err := h.itemService.Filter(r.Context(), tag, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to filter items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Analytics returns aggregate counts. The endpoint is public and
// always responds 200: degraded results carry an error field instead
// of a failure status.
func (h *EwasteHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.itemService.Analytics(r.Context()))
}

// ListReusableItems returns reuse-tagged items with owner contact
// fields for buyer display.
func (h *EwasteHandler) ListReusableItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemService.ListReusable(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reusable items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// DeleteItem removes an item by id.
func (h *EwasteHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "itemID"))
	if err != nil || itemID < 1 {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.itemService.Delete(r.Context(), itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"detail": "deleted"})
}

func parseSubmitForm(r *http.Request) (services.SubmitInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.SubmitInput{}, errors.New("invalid multipart form")
	}

	userID, err := strconv.Atoi(strings.TrimSpace(r.FormValue(formFieldUserID)))
	if err != nil || userID < 1 {
		return services.SubmitInput{}, errors.New("invalid user id")
	}

	category := strings.TrimSpace(r.FormValue(formFieldCategory))
	if category == "" {
		return services.SubmitInput{}, errors.New("category is required")
	}

	isWorking, err := strconv.ParseBool(strings.TrimSpace(r.FormValue(formFieldIsWorking)))
	if err != nil {
		return services.SubmitInput{}, errors.New("invalid is_working value")
	}

	var productName *string
	if name := strings.TrimSpace(r.FormValue(formFieldProductName)); name != "" {
		productName = &name
	}

	var price *int
	if raw := strings.TrimSpace(r.FormValue(formFieldPrice)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return services.SubmitInput{}, errors.New("invalid price")
		}
		price = &value
	}

	image, err := parseImageFile(r)
	if err != nil {
		return services.SubmitInput{}, err
	}

	return services.SubmitInput{
		UserID:      userID,
		Category:    category,
		ProductName: productName,
		IsWorking:   isWorking,
		Price:       price,
		Image:       image,
	}, nil
}

func parseImageFile(r *http.Request) (*services.UploadedImage, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("only one image is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.New("failed to read image")
	}

	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	return &services.UploadedImage{
		Filename:    fileHeader.Filename,
		Data:        data,
		ContentType: fileHeader.Header.Get("Content-Type"),
	}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
