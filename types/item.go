package types

import "time"

// Tag classifies an e-waste item's disposition. The underlying value
// preserves whatever string is stored, so legacy or foreign values
// survive round trips; Bucket folds them into the known set for
// aggregation.
type Tag string

// Known tag values.
const (
	TagReuse   Tag = "reuse"
	TagResell  Tag = "resell"
	TagRecycle Tag = "recycle"
	TagUnknown Tag = "unknown"
)

// Bucket returns the tag itself when it is a known value, and
// TagUnknown otherwise (including the empty string).
func (t Tag) Bucket() Tag {
	switch t {
	case TagReuse, TagResell, TagRecycle, TagUnknown:
		return t
	default:
		return TagUnknown
	}
}

// ParseTag converts a raw string into a Tag, folding unrecognized
// values into TagUnknown.
func ParseTag(raw string) Tag {
	return Tag(raw).Bucket()
}

// Category groups items by their origin. Like Tag it tolerates
// arbitrary stored values and buckets them as unknown in aggregates.
type Category string

// Known category values.
const (
	CategoryConsumer Category = "consumer"
	CategoryUtility  Category = "utility"
	CategoryUnknown  Category = "unknown"
)

// Bucket returns the category itself when it is a known value, and
// CategoryUnknown otherwise (including the empty string).
func (c Category) Bucket() Category {
	switch c {
	case CategoryConsumer, CategoryUtility, CategoryUnknown:
		return c
	default:
		return CategoryUnknown
	}
}

// ParseCategory converts a raw string into a Category, folding
// unrecognized values into CategoryUnknown.
func ParseCategory(raw string) Category {
	return Category(raw).Bucket()
}

// Item represents a single submitted e-waste device.
type Item struct {
	// ID is the unique identifier of the item.
	ID int `json:"id" db:"id"`

	// UserID identifies the user who submitted the item. Every item
	// has exactly one owning user.
	UserID int `json:"user_id" db:"user_id"`

	// Category groups the item, conventionally "consumer" or
	// "utility". Stored as submitted.
	Category Category `json:"category" db:"category"`

	// ProductName is the device name, if provided.
	ProductName *string `json:"product_name" db:"product_name"`

	// IsWorking records whether the device still works. It drives
	// the tag and price rules at submission time.
	IsWorking bool `json:"is_working" db:"is_working"`

	// ImagePath is the servable path of the uploaded photo, if one
	// was supplied (e.g. "/uploads/20251011..._phone.jpg").
	ImagePath *string `json:"image_path" db:"image_path"`

	// Tag is the disposition assigned at submission: "reuse" for
	// working items, "recycle" for non-working ones.
	Tag Tag `json:"tag" db:"tag"`

	// Analysis holds the image analysis result for non-working items
	// submitted with a photo. Nil otherwise.
	Analysis *Analysis `json:"gemini_analysis" db:"gemini_analysis"`

	// Price is the asking price in whole currency units. Required
	// and positive for working items, always nil for non-working ones.
	Price *int `json:"price" db:"price"`

	// CreatedAt is the timestamp when the item was submitted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
