package catalog

// SeedCategories is written on the first load of an empty store.
func SeedCategories() []Category {
	return []Category{
		{ID: "1", Name: "Cakes"},
		{ID: "2", Name: "Cupcakes"},
		{ID: "3", Name: "Cookies"},
		{ID: "4", Name: "Pastries"},
	}
}

// SeedProducts is written on the storefront's first load only; the admin
// pages start from an empty product list.
func SeedProducts() []Product {
	return []Product{
		{ID: "1", Name: "Chocolate Cake", Description: "Rich and moist chocolate cake with chocolate frosting.", CategoryID: "1"},
		{ID: "2", Name: "Vanilla Cupcakes", Description: "Light and fluffy vanilla cupcakes with buttercream frosting.", CategoryID: "2"},
		{ID: "3", Name: "Chocolate Chip Cookies", Description: "Classic chocolate chip cookies, crispy on the outside and chewy on the inside.", CategoryID: "3"},
		{ID: "4", Name: "Croissant", Description: "Buttery, flaky French pastry perfect for breakfast.", CategoryID: "4"},
		{ID: "5", Name: "Danish", Description: "Sweet pastry with fruit filling and glaze.", CategoryID: "4"},
		{ID: "6", Name: "Eclair", Description: "Choux pastry filled with cream and topped with chocolate.", CategoryID: "4"},
	}
}
