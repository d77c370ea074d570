package catalog

import (
	"context"
	"strings"

	"autoquote/internal"
)

// Source is the slice of storage a snapshot is loaded from.
type Source interface {
	ListActiveProducts(ctx context.Context) ([]internal.Product, error)
	ListActiveCustomers(ctx context.Context) ([]internal.Customer, error)
}

// Snapshot is an immutable view of the active catalog and customer directory,
// taken once and handed to every message processed from it.
type Snapshot struct {
	Products        []internal.Product
	customerByEmail map[string]internal.Customer
}

func NewSnapshot(products []internal.Product, customers []internal.Customer) *Snapshot {
	s := &Snapshot{
		Products:        make([]internal.Product, 0, len(products)),
		customerByEmail: map[string]internal.Customer{},
	}
	for _, p := range products {
		if p.Active {
			s.Products = append(s.Products, p)
		}
	}
	for _, c := range customers {
		if !c.Active {
			continue
		}
		s.customerByEmail[normalizeEmail(c.Email)] = c
	}
	return s
}

func Load(ctx context.Context, src Source) (*Snapshot, error) {
	products, err := src.ListActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := src.ListActiveCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(products, customers), nil
}

// LookupCustomer finds an active customer by email, case-insensitively.
func (s *Snapshot) LookupCustomer(email string) (internal.Customer, bool) {
	if s == nil {
		return internal.Customer{}, false
	}
	c, ok := s.customerByEmail[normalizeEmail(email)]
	return c, ok
}

func (s *Snapshot) CustomerCount() int {
	if s == nil {
		return 0
	}
	return len(s.customerByEmail)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
