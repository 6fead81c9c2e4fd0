package scraper

import (
	"errors"
	"fmt"
)

// Run-level failures. Each one ends the run with an empty result.
var (
	ErrBlocked    = errors.New("blocked by anti-bot challenge")
	ErrNoCards    = errors.New("no job cards found")
	ErrNavigation = errors.New("navigation failed")
)

var (
	errMissingElement = errors.New("element not found")
	errEmptyText      = errors.New("element has no text")
)

// Stage names the step of card processing that failed.
type Stage string

const (
	StageLocate      Stage = "locate"
	StageTitle       Stage = "title"
	StageCompany     Stage = "company"
	StageLink        Stage = "link"
	StageClick       Stage = "click"
	StageDetail      Stage = "detail"
	StageDescription Stage = "description"
)

// CardFault records why one card was dropped. The run continues past it.
type CardFault struct {
	Index int
	Stage Stage
	Err   error
}

func (f *CardFault) Error() string {
	return fmt.Sprintf("card %d: %s: %v", f.Index, f.Stage, f.Err)
}

func (f *CardFault) Unwrap() error {
	return f.Err
}

func cardFault(index int, stage Stage, err error) error {
	return &CardFault{Index: index, Stage: stage, Err: err}
}
