package firestore

import (
	"context"
	"fmt"
	"time"

	"velora/internal/model"
	"velora/internal/repository"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type counterDoc struct {
	UserID      string    `firestore:"user_id"`
	Granularity string    `firestore:"granularity"`
	WindowIndex int64     `firestore:"window_index"`
	Count       int64     `firestore:"count"`
	ExpiresAt   time.Time `firestore:"expires_at"`
}

type RateLimitStore struct {
	client *firestore.Client
}

func NewRateLimitStore(client *firestore.Client) *RateLimitStore {
	return &RateLimitStore{client: client}
}

var _ repository.RateLimitRepository = (*RateLimitStore)(nil)

func (s *RateLimitStore) doc(userID string, w model.WindowKey) *firestore.DocumentRef {
	return s.client.Collection(rateLimitsCollection).Doc(w.DocID(userID))
}

// Increment reads and bumps all window counters in one transaction so the
// returned counts are the ones this call produced.
func (s *RateLimitStore) Increment(ctx context.Context, userID string, windows []model.WindowKey) ([]int64, error) {
	refs := make([]*firestore.DocumentRef, len(windows))
	for i, w := range windows {
		refs[i] = s.doc(userID, w)
	}

	var counts []int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		counts = make([]int64, len(windows))
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for i, snap := range snaps {
			var current int64
			if snap.Exists() {
				var doc counterDoc
				if err := snap.DataTo(&doc); err != nil {
					return err
				}
				current = doc.Count
			}
			counts[i] = current + 1
			w := windows[i]
			if err := tx.Set(refs[i], counterDoc{
				UserID:      userID,
				Granularity: string(w.Granularity),
				WindowIndex: w.Index,
				Count:       counts[i],
				ExpiresAt:   w.End(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("firestore IncrementCounters for user %s: %w", userID, err)
	}
	return counts, nil
}

func (s *RateLimitStore) GetCount(ctx context.Context, userID string, window model.WindowKey) (int64, error) {
	snap, err := s.doc(userID, window).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("firestore GetCount: %w", err)
	}
	var doc counterDoc
	if err := snap.DataTo(&doc); err != nil {
		return 0, fmt.Errorf("decode counterDoc: %w", err)
	}
	return doc.Count, nil
}

func (s *RateLimitStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	iter := s.client.Collection(rateLimitsCollection).Where("expires_at", "<", before).Documents(ctx)
	snaps, err := iter.GetAll()
	if err != nil {
		return 0, fmt.Errorf("firestore list expired counters: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(snaps))
	for _, snap := range snaps {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			n, _ := deletedCount(jobs)
			return n, fmt.Errorf("firestore queue counter delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	return deletedCount(jobs)
}

// deletedCount waits on finished bulk jobs and counts only the deletes that
// were committed. The first failure is returned alongside the count.
func deletedCount(jobs []*firestore.BulkWriterJob) (int64, error) {
	var n int64
	var firstErr error
	failed := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}
	if firstErr != nil {
		return n, fmt.Errorf("firestore delete expired counters: %d of %d failed: %w", failed, len(jobs), firstErr)
	}
	return n, nil
}
