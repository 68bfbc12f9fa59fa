package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// MovieRepository は作品リポジトリのインメモリ実装
type MovieRepository struct{ s *Store }

func NewMovieRepository(s *Store) *MovieRepository { return &MovieRepository{s: s} }

func (r *MovieRepository) Create(ctx context.Context, m *movie.Movie) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	c := *m
	r.s.movies[m.ID] = &c
	return nil
}

func (r *MovieRepository) GetByID(ctx context.Context, id string) (*movie.Movie, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.movies[id]
	if !ok {
		return nil, movie.ErrMovieNotFound
	}
	c := *m
	return &c, nil
}

func (r *MovieRepository) List(ctx context.Context, limit, offset int) ([]*movie.Movie, error) {
	r.s.mu.RLock()
	all := make([]*movie.Movie, 0, len(r.s.movies))
	for _, m := range r.s.movies {
		c := *m
		all = append(all, &c)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].Title < all[j].Title
	})
	if offset >= len(all) {
		return []*movie.Movie{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MovieRepository) Update(ctx context.Context, m *movie.Movie) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.movies[m.ID]; !ok {
		return movie.ErrMovieNotFound
	}
	m.UpdatedAt = time.Now()
	c := *m
	r.s.movies[m.ID] = &c
	return nil
}

// Delete は上映回から参照されている作品を削除しない
func (r *MovieRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.movies[id]; !ok {
		return movie.ErrMovieNotFound
	}
	for _, sc := range r.s.screenings {
		if sc.MovieID == id {
			return movie.ErrMovieHasScreenings
		}
	}
	delete(r.s.movies, id)
	return nil
}

// ScreeningRepository は上映回リポジトリのインメモリ実装
type ScreeningRepository struct{ s *Store }

func NewScreeningRepository(s *Store) *ScreeningRepository { return &ScreeningRepository{s: s} }

func cloneScreening(s *screening.Screening) *screening.Screening {
	c := *s
	return &c
}

func (r *ScreeningRepository) Create(ctx context.Context, tx transaction.Tx, sc *screening.Screening) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	id := sc.ID
	if err := track(tx, func() { delete(r.s.screenings, id) }); err != nil {
		return err
	}
	r.s.screenings[id] = cloneScreening(sc)
	return nil
}

func (r *ScreeningRepository) GetByID(ctx context.Context, id string) (*screening.Screening, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sc, ok := r.s.screenings[id]
	if !ok {
		return nil, screening.ErrScreeningNotFound
	}
	return cloneScreening(sc), nil
}

func (r *ScreeningRepository) ListByMovieID(ctx context.Context, movieID string) ([]*screening.Screening, error) {
	r.s.mu.RLock()
	result := make([]*screening.Screening, 0)
	for _, sc := range r.s.screenings {
		if sc.MovieID == movieID {
			result = append(result, cloneScreening(sc))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	return result, nil
}

func (r *ScreeningRepository) Save(ctx context.Context, tx transaction.Tx, sc *screening.Screening) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.screenings[sc.ID]
	if !ok {
		return screening.ErrScreeningNotFound
	}
	if current.Version != sc.Version {
		return screening.ErrOptimisticLockConflict
	}
	if err := track(tx, func() { r.s.screenings[current.ID] = current }); err != nil {
		return err
	}
	sc.Version++
	r.s.screenings[sc.ID] = cloneScreening(sc)
	return nil
}

func (r *ScreeningRepository) AdjustAvailableSeats(ctx context.Context, tx transaction.Tx, id string, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.screenings[id]
	if !ok {
		return screening.ErrScreeningNotFound
	}
	next := cloneScreening(current)
	if err := next.AdjustAvailable(delta); err != nil {
		return err
	}
	if err := track(tx, func() { r.s.screenings[id] = current }); err != nil {
		return err
	}
	next.Version++
	next.UpdatedAt = time.Now()
	r.s.screenings[id] = next
	return nil
}

var (
	_ movie.Repository     = (*MovieRepository)(nil)
	_ screening.Repository = (*ScreeningRepository)(nil)
)
