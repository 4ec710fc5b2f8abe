package product

import (
	"context"
	"fmt"
	"testing"
)

type mockRepo struct {
	store  map[int64]*Product
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[int64]*Product), nextID: 1}
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	p.ID = m.nextID
	m.nextID++
	m.store[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Product, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	if _, ok := m.store[p.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.store[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Product, int, error) {
	var r []*Product
	for _, p := range m.store {
		r = append(r, p)
	}
	return r, len(r), nil
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Product{Name: "Qubit dsDNA HS Assay Kit"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected ID to be set")
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.Create(context.Background(), &Product{}); err == nil {
		t.Error("expected error for missing name")
	}

	neg := -1
	if err := svc.Create(context.Background(), &Product{Name: "Kit", Quantity: &neg}); err == nil {
		t.Error("expected error for negative quantity")
	}
}
