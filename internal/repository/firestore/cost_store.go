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

type costDoc struct {
	UserID           string    `firestore:"user_id"`
	DayKey           string    `firestore:"day_key"`
	EmailsSent       int64     `firestore:"emails_sent"`
	EmailCostUSD     float64   `firestore:"email_cost_usd"`
	TokensUsed       int64     `firestore:"tokens_used"`
	LLMCostUSD       float64   `firestore:"llm_cost_usd"`
	FirestoreReads   int64     `firestore:"firestore_reads"`
	FirestoreWrites  int64     `firestore:"firestore_writes"`
	FirestoreCostUSD float64   `firestore:"firestore_cost_usd"`
	TotalCostUSD     float64   `firestore:"total_cost_usd"`
	LastUpdated      time.Time `firestore:"last_updated"`
}

func (d costDoc) record() model.UserCostRecord {
	return model.UserCostRecord{
		UserID:           d.UserID,
		DayKey:           d.DayKey,
		EmailsSent:       d.EmailsSent,
		EmailCostUSD:     d.EmailCostUSD,
		TokensUsed:       d.TokensUsed,
		LLMCostUSD:       d.LLMCostUSD,
		FirestoreReads:   d.FirestoreReads,
		FirestoreWrites:  d.FirestoreWrites,
		FirestoreCostUSD: d.FirestoreCostUSD,
		TotalCostUSD:     d.TotalCostUSD,
		LastUpdated:      d.LastUpdated,
	}
}

type CostStore struct {
	client *firestore.Client
}

func NewCostStore(client *firestore.Client) *CostStore {
	return &CostStore{client: client}
}

var _ repository.CostRepository = (*CostStore)(nil)

func (s *CostStore) doc(userID, dayKey string) *firestore.DocumentRef {
	return s.client.Collection(userCostsCollection).Doc(userID + "_" + dayKey)
}

// Add merges server-side increments into the day document. Every category
// increment is written together with the matching total increment.
func (s *CostStore) Add(ctx context.Context, d model.CostDelta) error {
	fields := map[string]interface{}{
		"user_id":      d.UserID,
		"day_key":      d.DayKey,
		"last_updated": d.At,
	}
	if d.EmailsSent != 0 || d.EmailCostUSD != 0 {
		fields["emails_sent"] = firestore.Increment(d.EmailsSent)
		fields["email_cost_usd"] = firestore.Increment(d.EmailCostUSD)
	}
	if d.TokensUsed != 0 || d.LLMCostUSD != 0 {
		fields["tokens_used"] = firestore.Increment(d.TokensUsed)
		fields["llm_cost_usd"] = firestore.Increment(d.LLMCostUSD)
	}
	if d.FirestoreReads != 0 || d.FirestoreWrites != 0 || d.FirestoreCostUSD != 0 {
		fields["firestore_reads"] = firestore.Increment(d.FirestoreReads)
		fields["firestore_writes"] = firestore.Increment(d.FirestoreWrites)
		fields["firestore_cost_usd"] = firestore.Increment(d.FirestoreCostUSD)
	}
	fields["total_cost_usd"] = firestore.Increment(d.TotalCostUSD())

	if _, err := s.doc(d.UserID, d.DayKey).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("firestore AddCost for user %s: %w", d.UserID, err)
	}
	return nil
}

func (s *CostStore) Get(ctx context.Context, userID, dayKey string) (*model.UserCostRecord, error) {
	snap, err := s.doc(userID, dayKey).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore GetCost: %w", err)
	}
	var doc costDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode costDoc: %w", err)
	}
	r := doc.record()
	return &r, nil
}

func (s *CostStore) ListByDay(ctx context.Context, dayKey string) ([]model.UserCostRecord, error) {
	snaps, err := s.client.Collection(userCostsCollection).
		Where("day_key", "==", dayKey).
		OrderBy("user_id", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore ListCostsByDay: %w", err)
	}
	out := make([]model.UserCostRecord, 0, len(snaps))
	for _, snap := range snaps {
		var doc costDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode costDoc %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.record())
	}
	return out, nil
}
