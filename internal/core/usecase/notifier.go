package usecase

import (
	"context"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// NotifierFunc adapts a plain function to ports.CompletionNotifier.
type NotifierFunc func(ctx context.Context, record domain.ResumeRecord) error

func (f NotifierFunc) NotifyResumeCompleted(ctx context.Context, record domain.ResumeRecord) error {
	return f(ctx, record)
}
