package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// BatchInvalidate invalidates multiple patterns in batch
func BatchInvalidate(ctx context.Context, helper *CacheHelper, patterns []string) error {
	var lastErr error
	for _, pattern := range patterns {
		if err := helper.InvalidatePattern(ctx, pattern); err != nil {
			lastErr = err
			slog.ErrorContext(ctx, "Failed to invalidate pattern in batch",
				"error", err,
				"pattern", pattern)
		}
	}
	return lastErr
}

// InvalidateAssessmentCache invalidates all assessment-related caches using pipeline
func InvalidateAssessmentCache(ctx context.Context, cm *CacheManager, assessmentID uint) {
	SafeDelete(ctx, cm.Assessment,
		fmt.Sprintf("id:%d", assessmentID),
		fmt.Sprintf("details:%d", assessmentID))
	SafeDelete(ctx, cm.Question, fmt.Sprintf("assessment:%d:questions", assessmentID))

	SafeInvalidatePattern(ctx, cm.Assessment, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("assessment:%d:*", assessmentID))
}

// InvalidateAttemptCache invalidates caches tied to one attempt.
func InvalidateAttemptCache(ctx context.Context, cm *CacheManager, attemptID uint) {
	SafeDelete(ctx, cm.Fast, fmt.Sprintf("id:%d", attemptID))
	SafeInvalidatePattern(ctx, cm.Fast, fmt.Sprintf("attempt:%d:*", attemptID))
}

// InvalidateProgressCache invalidates one student's progress caches for a
// course, including the rollup.
func InvalidateProgressCache(ctx context.Context, cm *CacheManager, courseID uint, studentID string) {
	SafeInvalidatePattern(ctx, cm.Progress, fmt.Sprintf("course:%d:student:%s:*", courseID, studentID))
	SafeDelete(ctx, cm.Progress, fmt.Sprintf("rollup:%d:%s", courseID, studentID))
}
