package core

import "context"

// List returns every bridge in insertion order.
func (s *Service) List(ctx context.Context) ([]Bridge, error) {
	bridges, err := s.store.List(ctx)
	if err != nil {
		return nil, classify("list", "", err)
	}
	return bridges, nil
}

// Get returns one bridge or an ErrNotFound error.
func (s *Service) Get(ctx context.Context, bin string) (Bridge, error) {
	b, err := s.store.Get(ctx, bin)
	if err != nil {
		return Bridge{}, classify("get", bin, err)
	}
	return b, nil
}

// Count returns the number of stored bridges.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, classify("count", "", err)
	}
	return n, nil
}
