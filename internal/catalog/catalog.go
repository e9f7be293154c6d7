package catalog

import (
	"fmt"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
)

// Categories enumerates the product categories the storefront knows about.
var Categories = []string{
	"Electronics",
	"Groceries",
	"Services",
	"Fashion",
	"Home & Garden",
	"Books & Media",
	"Sports & Outdoors",
	"Automotive",
}

// Store is the static product catalog. Products are seeded at construction
// and never mutated afterwards, so lookups need no locking.
type Store struct {
	products []models.Product
	bySlug   map[string]*models.Product
	byID     map[string]*models.Product
}

// NewStore seeds the catalog with the storefront's product list.
func NewStore() *Store {
	return newStore(sampleProducts())
}

func newStore(products []models.Product) *Store {
	s := &Store{
		products: products,
		bySlug:   make(map[string]*models.Product, len(products)),
		byID:     make(map[string]*models.Product, len(products)),
	}
	for i := range s.products {
		p := &s.products[i]
		s.bySlug[p.Slug] = p
		s.byID[p.ID] = p
	}
	return s
}

// All returns every product in the catalog.
func (s *Store) All() []models.Product {
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Active returns only products available for purchase.
func (s *Store) Active() []models.Product {
	var out []models.Product
	for _, p := range s.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

// BySlug looks up a product by its URL slug.
func (s *Store) BySlug(slug string) (*models.Product, error) {
	p, ok := s.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("product not found: %s", slug)
	}
	return p, nil
}

// ByID looks up a product by ID.
func (s *Store) ByID(id string) (*models.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	return p, nil
}

// ByCategory returns all products in the given category.
func (s *Store) ByCategory(category string) []models.Product {
	var out []models.Product
	for _, p := range s.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func sampleProducts() []models.Product {
	now := time.Now()
	return []models.Product{
		{
			ID:          "1",
			Slug:        "iphone-15-pro",
			Title:       "iPhone 15 Pro - 256GB",
			Description: "The latest iPhone with A17 Pro chip, titanium design, and advanced camera system.",
			PricePi:     899.99,
			Images:      []string{"/assets/iphone-15-pro.jpg"},
			Category:    "Electronics",
			Stock:       5,
			Active:      true,
			CreatedAt:   now,
		},
		{
			ID:          "2",
			Slug:        "organic-coffee-beans",
			Title:       "Premium Organic Coffee Beans - 1kg",
			Description: "Single-origin Ethiopian coffee beans, ethically sourced and freshly roasted.",
			PricePi:     24.99,
			Images:      []string{"/assets/coffee-beans.jpg"},
			Category:    "Groceries",
			Stock:       50,
			Active:      true,
			CreatedAt:   now,
		},
		{
			ID:          "3",
			Slug:        "web-development-course",
			Title:       "Complete Web Development Bootcamp",
			Description: "Learn HTML, CSS, JavaScript, React, and Node.js from beginner to advanced.",
			PricePi:     149.99,
			Images:      []string{"/assets/web-course.jpg"},
			Category:    "Services",
			Stock:       100,
			Active:      true,
			CreatedAt:   now,
		},
		{
			ID:          "4",
			Slug:        "wireless-headphones",
			Title:       "Sony WH-1000XM5 Wireless Headphones",
			Description: "Industry-leading noise canceling with premium sound quality.",
			PricePi:     349.99,
			Images:      []string{"/assets/headphones.jpg"},
			Category:    "Electronics",
			Stock:       12,
			Active:      true,
			CreatedAt:   now,
		},
		{
			ID:          "5",
			Slug:        "designer-t-shirt",
			Title:       "Premium Cotton T-Shirt",
			Description: "Comfortable and stylish t-shirt made from 100% organic cotton.",
			PricePi:     29.99,
			Images:      []string{"/assets/cotton-tshirt.jpg"},
			Category:    "Fashion",
			Stock:       25,
			Active:      true,
			CreatedAt:   now,
		},
		{
			ID:          "6",
			Slug:        "smart-home-hub",
			Title:       "Smart Home Hub with Voice Control",
			Description: "Control your entire smart home with voice commands and smartphone app.",
			PricePi:     129.99,
			Images:      []string{"/assets/smart-hub.jpg"},
			Category:    "Electronics",
			Stock:       8,
			Active:      true,
			CreatedAt:   now,
		},
		{
			ID:          "7",
			Slug:        "yoga-mat-premium",
			Title:       "Premium Eco-Friendly Yoga Mat",
			Description: "Non-slip yoga mat made from sustainable materials with alignment guides.",
			PricePi:     79.99,
			Images:      []string{"/assets/yoga-mat.jpg"},
			Category:    "Sports & Outdoors",
			Stock:       30,
			Active:      true,
			CreatedAt:   now,
		},
		{
			ID:          "8",
			Slug:        "gourmet-chocolate-box",
			Title:       "Artisan Chocolate Collection",
			Description: "Handcrafted chocolates with exotic flavors from around the world.",
			PricePi:     45.99,
			Images:      []string{"/assets/chocolate-box.jpg"},
			Category:    "Groceries",
			Stock:       20,
			Active:      true,
			CreatedAt:   now,
		},
	}
}
