package catalog

import (
	"errors"
	"strings"
)

// Collection names double as the persisted keys.
const (
	CategoriesKey = "categories"
	ProductsKey   = "products"
)

const Uncategorized = "Uncategorized"

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
}

var (
	ErrNotFound     = errors.New("catalog item not found")
	// ErrNoCategories blocks product creation while the category list is empty.
	ErrNoCategories = errors.New("no categories exist yet")
)

// ValidationError carries the message shown next to the form.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// UpdateCategoryRequest merges only the fields that were supplied.
type UpdateCategoryRequest struct {
	Name *string `json:"name"`
}

type CreateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	CategoryID  *string `json:"categoryId"`
}

func (r CreateCategoryRequest) Validate() (string, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", invalid("name", "Please enter a category name")
	}
	return name, nil
}

func (r CreateProductRequest) Normalize() CreateProductRequest {
	return CreateProductRequest{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		CategoryID:  strings.TrimSpace(r.CategoryID),
	}
}

func (r CreateProductRequest) Validate() error {
	if r.Name == "" || r.Description == "" || r.CategoryID == "" {
		return invalid("", "Please fill in all fields and select a category")
	}
	return nil
}

// Apply merges the patch into c. Names are trimmed but not re-checked for
// uniqueness.
func (r UpdateCategoryRequest) Apply(c Category) Category {
	if r.Name != nil {
		c.Name = strings.TrimSpace(*r.Name)
	}
	return c
}

func (r UpdateProductRequest) Apply(p Product) Product {
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		p.Description = strings.TrimSpace(*r.Description)
	}
	if r.CategoryID != nil {
		p.CategoryID = strings.TrimSpace(*r.CategoryID)
	}
	return p
}

// SameName compares category names the way duplicate detection does.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
