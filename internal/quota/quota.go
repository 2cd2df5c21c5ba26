// Package quota enforces per-client daily ceilings on generation requests.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Class is an independently limited operation class.
type Class string

const (
	ClassAnalyze Class = "analyze"
	ClassImprove Class = "improve"
)

// Classes lists every known class in display order.
var Classes = []Class{ClassAnalyze, ClassImprove}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	return c == ClassAnalyze || c == ClassImprove
}

// Default daily ceilings.
const (
	DefaultAnalyzeLimit = 3
	DefaultImproveLimit = 10
)

const dateLayout = "2006-01-02"

// Decision is the outcome of CheckAndConsume.
type Decision struct {
	Admitted bool
	Class    Class
	// Limit is the configured ceiling; zero or less means the class is not gated.
	Limit int
	// Used is the counter value after the decision.
	Used    int
	DateKey string
}

// ExceededError reports a rejected request.
type ExceededError struct {
	Class Class
	Limit int
}

func (e *ExceededError) Error() string {
	if e == nil {
		return "quota exceeded"
	}
	return fmt.Sprintf("daily %s limit of %d reached, try again tomorrow", e.Class, e.Limit)
}

// Tracker owns the per-client quota table.
//
// Check and increment happen under one mutex so two concurrent requests
// cannot both spend the last unit.
type Tracker struct {
	Store    Store
	Limits   map[Class]int
	Clock    func() time.Time
	Location *time.Location

	mu sync.Mutex
}

// NewTracker returns a tracker over store with the given ceilings.
func NewTracker(store Store, analyzeLimit, improveLimit int) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		Store: store,
		Limits: map[Class]int{
			ClassAnalyze: analyzeLimit,
			ClassImprove: improveLimit,
		},
	}
}

// CheckAndConsume admits the request and increments the counter for class,
// or rejects it without mutation when the counter has reached the ceiling.
// A nil tracker admits everything.
func (t *Tracker) CheckAndConsume(ctx context.Context, clientID string, class Class) (Decision, error) {
	if !class.Valid() {
		return Decision{}, fmt.Errorf("unknown quota class %q", class)
	}
	if t == nil || t.Store == nil {
		return Decision{Admitted: true, Class: class}, nil
	}

	key := NormalizeClientID(clientID)
	limit := t.limit(class)
	today := t.dateKey()
	decision := Decision{Class: class, Limit: limit, DateKey: today}

	if limit <= 0 {
		decision.Admitted = true
		return decision, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	record, err := t.current(ctx, key, today)
	if err != nil {
		return Decision{}, err
	}

	used := record.Count(class)
	if used >= limit {
		decision.Used = used
		return decision, nil
	}

	record, err = t.Store.Increment(ctx, key, class)
	if err != nil {
		return Decision{}, err
	}

	decision.Admitted = true
	decision.Used = record.Count(class)
	return decision, nil
}

// Consume is CheckAndConsume returning *ExceededError on rejection.
func (t *Tracker) Consume(ctx context.Context, clientID string, class Class) error {
	decision, err := t.CheckAndConsume(ctx, clientID, class)
	if err != nil {
		return err
	}
	if !decision.Admitted {
		return &ExceededError{Class: class, Limit: decision.Limit}
	}
	return nil
}

// ClassUsage is the usage of one class for one client today.
type ClassUsage struct {
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited,omitempty"`
}

// Usage is a read-only view of a client's quota for today.
type Usage struct {
	ClientID string               `json:"client_id"`
	Date     string               `json:"date"`
	Classes  map[Class]ClassUsage `json:"classes"`
}

// Snapshot reports the client's usage without mutating the table.
// A record from an earlier day reports zero usage.
func (t *Tracker) Snapshot(ctx context.Context, clientID string) (Usage, error) {
	key := NormalizeClientID(clientID)
	today := t.dateKey()
	usage := Usage{ClientID: key, Date: today, Classes: make(map[Class]ClassUsage, len(Classes))}

	var record *Record
	if t != nil && t.Store != nil {
		t.mu.Lock()
		stored, err := t.Store.Get(ctx, key)
		t.mu.Unlock()
		if err != nil {
			return Usage{}, err
		}
		if stored != nil && stored.DateKey == today {
			record = stored
		}
	}

	for _, class := range Classes {
		limit := t.limit(class)
		used := 0
		if record != nil {
			used = record.Count(class)
		}
		cu := ClassUsage{Limit: limit, Used: used}
		if limit <= 0 {
			cu.Unlimited = true
		} else if used < limit {
			cu.Remaining = limit - used
		}
		usage.Classes[class] = cu
	}
	return usage, nil
}

// current returns the record for key, replacing it when its day has passed.
func (t *Tracker) current(ctx context.Context, key, today string) (*Record, error) {
	record, err := t.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil && record.DateKey == today {
		return record, nil
	}
	return t.Store.Reset(ctx, key, today)
}

func (t *Tracker) limit(class Class) int {
	if t == nil || t.Limits == nil {
		switch class {
		case ClassAnalyze:
			return DefaultAnalyzeLimit
		case ClassImprove:
			return DefaultImproveLimit
		}
		return 0
	}
	return t.Limits[class]
}

func (t *Tracker) dateKey() string {
	return t.now().Format(dateLayout)
}

func (t *Tracker) now() time.Time {
	var now time.Time
	if t != nil && t.Clock != nil {
		now = t.Clock()
	} else {
		now = time.Now()
	}
	if t != nil && t.Location != nil {
		return now.In(t.Location)
	}
	return now.Local()
}
