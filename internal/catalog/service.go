package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domain "github.com/geocoder89/storefront/internal/domain/catalog"
)

// MutationObserver receives the outcome of every admin mutation.
type MutationObserver interface {
	ObserveCatalogMutation(op string, err error)
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithObserver(o MutationObserver) Option {
	return func(s *Service) { s.observer = o }
}

func WithIDGenerator(g *IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithSimulatedDelay waits d before each mutation commits.
func WithSimulatedDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

// WithChangeHook is called after a collection has been rewritten.
func WithChangeHook(fn func(collection string)) Option {
	return func(s *Service) { s.onChange = fn }
}

// Service implements the admin flows and the public storefront view on top of
// a whole-collection store.
type Service struct {
	// mu serializes mutations inside this process; writers in other processes
	// still race unless they send a version precondition.
	mu sync.Mutex

	categories Collection[domain.Category]
	products   Collection[domain.Product]
	batcher    domain.Batcher

	ids      *IDGenerator
	delay    time.Duration
	log      *slog.Logger
	observer MutationObserver
	onChange func(collection string)
}

func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		categories: NewCollection[domain.Category](store, domain.CategoriesKey),
		products:   NewCollection[domain.Product](store, domain.ProductsKey),
		ids:        NewIDGenerator(nil),
		log:        slog.Default(),
	}

	if b, ok := store.(domain.Batcher); ok {
		s.batcher = b
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type expectedVersionKey struct{}

// WithExpectedVersion makes the next mutation on ctx conditional on the
// primary collection still being at version v.
func WithExpectedVersion(ctx context.Context, v int64) context.Context {
	return context.WithValue(ctx, expectedVersionKey{}, v)
}

func expectedVersion(ctx context.Context) int64 {
	if v, ok := ctx.Value(expectedVersionKey{}).(int64); ok {
		return v
	}
	return domain.AnyVersion
}

// Categories

func (s *Service) ListCategories(ctx context.Context) ([]CategorySummary, int64, error) {
	categories, version, err := s.categories.Load(ctx, domain.SeedCategories())
	if err != nil {
		return nil, 0, err
	}

	products, _, err := s.products.Load(ctx, nil)
	if err != nil {
		return nil, 0, err
	}

	return summarize(categories, products), version, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (c domain.Category, err error) {
	defer s.observe("create_category", &err)

	name, err := req.Validate()
	if err != nil {
		return domain.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	categories, _, err := s.categories.Load(ctx, domain.SeedCategories())
	if err != nil {
		return domain.Category{}, err
	}

	for _, existing := range categories {
		if domain.SameName(existing.Name, name) {
			return domain.Category{}, &domain.ValidationError{Field: "name", Message: "A category with this name already exists"}
		}
	}

	if err := s.wait(ctx); err != nil {
		return domain.Category{}, err
	}

	c = domain.Category{ID: s.ids.Next(), Name: name}

	next := make([]domain.Category, 0, len(categories)+1)
	next = append(next, categories...)
	next = append(next, c)

	if _, err := s.categories.Replace(ctx, next, expectedVersion(ctx)); err != nil {
		return domain.Category{}, err
	}
	s.changed(domain.CategoriesKey)

	s.log.InfoContext(ctx, "category created", "category_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.UpdateCategoryRequest) (c domain.Category, err error) {
	defer s.observe("update_category", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	categories, _, err := s.categories.Load(ctx, domain.SeedCategories())
	if err != nil {
		return domain.Category{}, err
	}

	idx := indexOf(categories, func(c domain.Category) bool { return c.ID == id })
	if idx < 0 {
		return domain.Category{}, domain.ErrNotFound
	}

	if err := s.wait(ctx); err != nil {
		return domain.Category{}, err
	}

	next := make([]domain.Category, len(categories))
	copy(next, categories)
	next[idx] = req.Apply(next[idx])

	if _, err := s.categories.Replace(ctx, next, expectedVersion(ctx)); err != nil {
		return domain.Category{}, err
	}
	s.changed(domain.CategoriesKey)

	return next[idx], nil
}

type DeleteCategoryResult struct {
	Category         domain.Category `json:"category"`
	CascadedProducts int             `json:"cascadedProducts"`
}

func (r DeleteCategoryResult) Message() string {
	if r.CascadedProducts > 0 {
		return fmt.Sprintf("Category and %d associated product(s) deleted successfully!", r.CascadedProducts)
	}
	return "Category deleted successfully!"
}

// DeleteCategory removes the category and every product filed under it.
func (s *Service) DeleteCategory(ctx context.Context, id string) (res DeleteCategoryResult, err error) {
	defer s.observe("delete_category", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	categories, _, err := s.categories.Load(ctx, domain.SeedCategories())
	if err != nil {
		return res, err
	}

	idx := indexOf(categories, func(c domain.Category) bool { return c.ID == id })
	if idx < 0 {
		return res, domain.ErrNotFound
	}

	products, productsVersion, err := s.products.Load(ctx, nil)
	if err != nil {
		return res, err
	}

	if err := s.wait(ctx); err != nil {
		return res, err
	}

	remainingCategories := make([]domain.Category, 0, len(categories)-1)
	remainingCategories = append(remainingCategories, categories[:idx]...)
	remainingCategories = append(remainingCategories, categories[idx+1:]...)

	remainingProducts := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.CategoryID != id {
			remainingProducts = append(remainingProducts, p)
		}
	}

	res = DeleteCategoryResult{
		Category:         categories[idx],
		CascadedProducts: len(products) - len(remainingProducts),
	}

	if err := s.replaceCascade(ctx, remainingCategories, remainingProducts, productsVersion); err != nil {
		return DeleteCategoryResult{}, err
	}
	s.changed(domain.CategoriesKey)
	s.changed(domain.ProductsKey)

	s.log.InfoContext(ctx, "category deleted",
		"category_id", id,
		"cascaded_products", res.CascadedProducts,
	)
	return res, nil
}

func (s *Service) replaceCascade(ctx context.Context, categories []domain.Category, products []domain.Product, productsVersion int64) error {
	// Without a caller precondition the product rewrite is unconditional too.
	ifProducts := domain.AnyVersion
	if expectedVersion(ctx) != domain.AnyVersion {
		ifProducts = productsVersion
	}

	if s.batcher == nil {
		if _, err := s.categories.Replace(ctx, categories, expectedVersion(ctx)); err != nil {
			return err
		}
		_, err := s.products.Replace(ctx, products, ifProducts)
		return err
	}

	catData, err := s.categories.Encode(categories)
	if err != nil {
		return err
	}
	prodData, err := s.products.Encode(products)
	if err != nil {
		return err
	}

	err = s.batcher.ReplaceAll(ctx, []domain.Write{
		{Collection: domain.CategoriesKey, Data: catData, IfVersion: expectedVersion(ctx)},
		{Collection: domain.ProductsKey, Data: prodData, IfVersion: ifProducts},
	})
	if err != nil {
		return fmt.Errorf("delete category cascade: %w", err)
	}
	return nil
}

// Products

func (s *Service) ListProducts(ctx context.Context) ([]ProductView, int64, error) {
	products, version, err := s.products.Load(ctx, nil)
	if err != nil {
		return nil, 0, err
	}

	categories, _, err := s.categories.Load(ctx, domain.SeedCategories())
	if err != nil {
		return nil, 0, err
	}

	return annotate(products, categories), version, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (p domain.Product, err error) {
	defer s.observe("create_product", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	categories, _, err := s.categories.Load(ctx, domain.SeedCategories())
	if err != nil {
		return domain.Product{}, err
	}
	if len(categories) == 0 {
		return domain.Product{}, domain.ErrNoCategories
	}

	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.Product{}, err
	}

	if indexOf(categories, func(c domain.Category) bool { return c.ID == req.CategoryID }) < 0 {
		return domain.Product{}, &domain.ValidationError{Field: "categoryId", Message: "Please select an existing category"}
	}

	products, _, err := s.products.Load(ctx, nil)
	if err != nil {
		return domain.Product{}, err
	}

	if err := s.wait(ctx); err != nil {
		return domain.Product{}, err
	}

	p = domain.Product{
		ID:          s.ids.Next(),
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}

	next := make([]domain.Product, 0, len(products)+1)
	next = append(next, products...)
	next = append(next, p)

	if _, err := s.products.Replace(ctx, next, expectedVersion(ctx)); err != nil {
		return domain.Product{}, err
	}
	s.changed(domain.ProductsKey)

	s.log.InfoContext(ctx, "product created", "product_id", p.ID, "category_id", p.CategoryID)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (p domain.Product, err error) {
	defer s.observe("update_product", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	products, _, err := s.products.Load(ctx, nil)
	if err != nil {
		return domain.Product{}, err
	}

	idx := indexOf(products, func(p domain.Product) bool { return p.ID == id })
	if idx < 0 {
		return domain.Product{}, domain.ErrNotFound
	}

	if err := s.wait(ctx); err != nil {
		return domain.Product{}, err
	}

	next := make([]domain.Product, len(products))
	copy(next, products)
	next[idx] = req.Apply(next[idx])

	if _, err := s.products.Replace(ctx, next, expectedVersion(ctx)); err != nil {
		return domain.Product{}, err
	}
	s.changed(domain.ProductsKey)

	return next[idx], nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) (p domain.Product, err error) {
	defer s.observe("delete_product", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	products, _, err := s.products.Load(ctx, nil)
	if err != nil {
		return domain.Product{}, err
	}

	idx := indexOf(products, func(p domain.Product) bool { return p.ID == id })
	if idx < 0 {
		return domain.Product{}, domain.ErrNotFound
	}

	if err := s.wait(ctx); err != nil {
		return domain.Product{}, err
	}

	p = products[idx]

	next := make([]domain.Product, 0, len(products)-1)
	next = append(next, products[:idx]...)
	next = append(next, products[idx+1:]...)

	if _, err := s.products.Replace(ctx, next, expectedVersion(ctx)); err != nil {
		return domain.Product{}, err
	}
	s.changed(domain.ProductsKey)

	return p, nil
}

// helpers

func (s *Service) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}

	t := time.NewTimer(s.delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) changed(collection string) {
	if s.onChange != nil {
		s.onChange(collection)
	}
}

func (s *Service) observe(op string, errp *error) {
	if s.observer != nil {
		s.observer.ObserveCatalogMutation(op, *errp)
	}
}

func indexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}
