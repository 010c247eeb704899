package catalog

import (
	"context"

	domain "github.com/geocoder89/storefront/internal/domain/catalog"
)

type CategorySummary struct {
	domain.Category
	ProductCount int `json:"productCount"`
}

type ProductView struct {
	domain.Product
	CategoryName string `json:"categoryName"`
}

// View is the read-only storefront page model.
type View struct {
	Categories           []CategorySummary `json:"categories"`
	Products             []ProductView     `json:"products"`
	SelectedCategoryID   string            `json:"selectedCategoryId,omitempty"`
	SelectedCategoryName string            `json:"selectedCategoryName,omitempty"`
	TotalProducts        int               `json:"totalProducts"`
}

// Browse builds the storefront view, optionally filtered to one category. It
// only writes when seeding an empty store.
func (s *Service) Browse(ctx context.Context, categoryID string) (View, error) {
	categories, _, err := s.categories.Load(ctx, domain.SeedCategories())
	if err != nil {
		return View{}, err
	}

	products, _, err := s.products.Load(ctx, domain.SeedProducts())
	if err != nil {
		return View{}, err
	}

	all := annotate(products, categories)

	v := View{
		Categories:    summarize(categories, products),
		Products:      all,
		TotalProducts: len(all),
	}

	if categoryID == "" {
		return v, nil
	}

	v.SelectedCategoryID = categoryID
	for _, c := range categories {
		if c.ID == categoryID {
			v.SelectedCategoryName = c.Name
			break
		}
	}

	filtered := make([]ProductView, 0, len(all))
	for _, p := range all {
		if p.CategoryID == categoryID {
			filtered = append(filtered, p)
		}
	}
	v.Products = filtered

	return v, nil
}

type Stats struct {
	TotalProducts       int    `json:"totalProducts"`
	TotalCategories     int    `json:"totalCategories"`
	MostPopularCategory string `json:"mostPopularCategory"`
}

// Dashboard summarizes the catalog for the admin overview. On a tie the later
// category wins.
func (s *Service) Dashboard(ctx context.Context) (Stats, error) {
	categories, _, err := s.categories.Load(ctx, nil)
	if err != nil {
		return Stats{}, err
	}

	products, _, err := s.products.Load(ctx, nil)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		TotalProducts:       len(products),
		TotalCategories:     len(categories),
		MostPopularCategory: "None",
	}

	summaries := summarize(categories, products)
	if len(summaries) == 0 {
		return st, nil
	}

	best := summaries[0]
	for _, c := range summaries[1:] {
		if best.ProductCount <= c.ProductCount {
			best = c
		}
	}
	st.MostPopularCategory = best.Name

	return st, nil
}

func countByCategory(products []domain.Product) map[string]int {
	counts := make(map[string]int, len(products))
	for _, p := range products {
		counts[p.CategoryID]++
	}
	return counts
}

func summarize(categories []domain.Category, products []domain.Product) []CategorySummary {
	counts := countByCategory(products)

	out := make([]CategorySummary, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategorySummary{Category: c, ProductCount: counts[c.ID]})
	}
	return out
}

// annotate attaches category names; products whose category is gone show as
// Uncategorized.
func annotate(products []domain.Product, categories []domain.Category) []ProductView {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		name, ok := names[p.CategoryID]
		if !ok {
			name = domain.Uncategorized
		}
		out = append(out, ProductView{Product: p, CategoryName: name})
	}
	return out
}
