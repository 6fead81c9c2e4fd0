package scraper

import (
	"context"

	"github.com/jimezsa/indeedhub/internal/models"
)

type Scraper interface {
	Name() string
	Search(ctx context.Context, params models.SearchParams) ([]models.Job, error)
}

// Observer is told about each record as soon as it is accepted.
type Observer interface {
	Accepted(index int, job models.Job)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(index int, job models.Job)

func (f ObserverFunc) Accepted(index int, job models.Job) {
	f(index, job)
}
