package errors

import (
	"context"
	stderrors "errors"

	"github.com/vango-dev/vprompt/pkg/archive"
	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/snapshot"
)

// Classify maps an error returned by the vprompt packages to a coded
// PromptError. Errors without a dedicated code get fallback.
func Classify(err error, fallback string) *PromptError {
	if err == nil {
		return nil
	}
	var pe *PromptError
	if stderrors.As(err, &pe) {
		return pe
	}

	var (
		dup   *reconcile.DuplicateKeyError
		order *hooks.HookOrderError
		rerr  *reconcile.RenderError
	)
	switch {
	case stderrors.As(err, &dup):
		return New("VP120").Wrap(err).WithDetail("Siblings under " + dup.Path + " share keys.")
	case stderrors.As(err, &order):
		return New("VP121").Wrap(err)
	case stderrors.As(err, &rerr):
		return New("VP122").Wrap(err)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return New("VP123").Wrap(err)
	case stderrors.Is(err, reconcile.ErrNoTree):
		return New("VP140").Wrap(err)
	case stderrors.Is(err, snapshot.ErrInvalidPath):
		return New("VP142").Wrap(err)
	case stderrors.Is(err, archive.ErrNotFound):
		return New("VP181").Wrap(err)
	}
	return New(fallback).Wrap(err)
}
