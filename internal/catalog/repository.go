package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
)

type Config struct {
	// Path of a YAML catalog. The embedded catalog is used when empty.
	Path string
}

// Repository serves questions from the current catalog. Reload swaps the catalog atomically,
// readers never see a half-loaded one.
type Repository struct {
	path string
	sf   singleflight.Group
	cur  atomic.Pointer[Catalog]
}

func NewRepository(c Config) (*Repository, error) {
	r := &Repository{path: c.Path}
	if err := r.Reload(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStatic serves a fixed catalog. Reload is a no-op.
func NewStatic(c *Catalog) *Repository {
	r := &Repository{}
	r.cur.Store(c)
	return r
}

// Reload reads the catalog again. Concurrent calls share one read.
func (r *Repository) Reload(ctx context.Context) error {
	if r.path == "" && r.cur.Load() != nil {
		return nil
	}

	_, err, shared := r.sf.Do("reload", func() (any, error) {
		c, err := r.load()
		if err != nil {
			return nil, err
		}
		r.cur.Store(c)
		return nil, nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "catalog: loaded",
		"path", r.path,
		"challenges", len(r.cur.Load().challenges),
		"questions", len(r.cur.Load().questions),
		"shared", shared,
	)
	return nil
}

func (r *Repository) load() (*Catalog, error) {
	if r.path == "" {
		return Default()
	}

	b, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", r.path, err)
	}
	return Parse(b)
}

func (r *Repository) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	q, ok := r.cur.Load().question(id)
	if !ok {
		return domain.Question{}, errors.New(errors.CodeNotFound, errors.WithMessagef("question not found: id=%d", id))
	}
	return q, nil
}

func (r *Repository) GetChallenge(_ context.Context, id string) (domain.Challenge, error) {
	ch, ok := r.cur.Load().challenge(id)
	if !ok {
		return domain.Challenge{}, errors.New(errors.CodeNotFound, errors.WithMessagef("challenge not found: id=%s", id))
	}
	return ch, nil
}

// ListQuestionIDs returns the question ids of a challenge in catalog order.
func (r *Repository) ListQuestionIDs(ctx context.Context, challengeID string) ([]int64, error) {
	ch, err := r.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	return ch.QuestionIDs, nil
}

func (r *Repository) ListChallenges(_ context.Context) ([]domain.Challenge, error) {
	c := r.cur.Load()

	out := make([]domain.Challenge, 0, len(c.challenges))
	for _, ch := range c.challenges {
		cp, _ := c.challenge(ch.ID)
		out = append(out, cp)
	}
	return out, nil
}
