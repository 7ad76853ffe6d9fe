package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/assist-service/internal/domain"
	"github.com/spec-kit/assist-service/internal/repository"
)

// fakeRequestStore holds active requests in memory for scan tests.
type fakeRequestStore struct {
	mu       sync.Mutex
	seq      int
	requests map[string]*domain.AssistanceRequest
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: make(map[string]*domain.AssistanceRequest)}
}

func (f *fakeRequestStore) addActive(kind domain.RequestKind, requesterID string, nextFollowUpAt time.Time) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("req-%d", f.seq)
	f.requests[id] = &domain.AssistanceRequest{
		ID:             id,
		Kind:           kind,
		RequesterID:    requesterID,
		Status:         domain.RequestStatusActive,
		NextFollowUpAt: &nextFollowUpAt,
	}
	return id
}

func (f *fakeRequestStore) Create(ctx context.Context, request *domain.AssistanceRequest) error {
	return fmt.Errorf("not used in scan tests")
}

func (f *fakeRequestStore) Update(ctx context.Context, request *domain.AssistanceRequest, expectedStatus domain.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *request
	f.requests[request.ID] = &copied
	return nil
}

func (f *fakeRequestStore) GetByID(ctx context.Context, id string) (*domain.AssistanceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *f.requests[id]
	return &copied, nil
}

func (f *fakeRequestStore) ListWithFilter(ctx context.Context, filter repository.RequestFilter) ([]domain.AssistanceRequest, error) {
	return nil, nil
}

func (f *fakeRequestStore) ListDueFollowUps(ctx context.Context, now time.Time) ([]domain.AssistanceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []domain.AssistanceRequest
	for _, request := range f.requests {
		if request.Status != domain.RequestStatusActive || request.NextFollowUpAt == nil {
			continue
		}
		if request.NextFollowUpAt.After(now) {
			continue
		}
		due = append(due, *request)
	}
	return due, nil
}

// fakeSink records notifications and can fail selectively per requester.
type fakeSink struct {
	mu      sync.Mutex
	sent    []domain.Notification
	failFor map[string]bool
}

func (f *fakeSink) Notify(ctx context.Context, notification domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[notification.UserID] {
		return fmt.Errorf("smtp unreachable")
	}
	f.sent = append(f.sent, notification)
	return nil
}

func (f *fakeSink) sentTo(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.sent {
		if n.UserID == userID {
			count++
		}
	}
	return count
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newScanner(store *fakeRequestStore, sink *fakeSink, clock *testClock, renotify bool) *FollowUpScanner {
	return NewFollowUpScanner(ScannerDependencies{
		RequestRepo:       store,
		Sink:              sink,
		FollowUpInterval:  time.Hour,
		RenotifyEveryScan: renotify,
		Now:               clock.Now,
	})
}

func TestScanNotifiesOnlyOverdueRequests(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 11, 8, 7, 0, 0, 0, time.UTC)}
	store := newFakeRequestStore()
	sink := &fakeSink{}

	store.addActive(domain.RequestKindDeerRecovery, "alice", clock.Now().Add(-time.Millisecond))
	store.addActive(domain.RequestKindVehicleRecovery, "bob", clock.Now().Add(time.Millisecond))

	scanner := newScanner(store, sink, clock, true)
	result, err := scanner.RunScan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if result.Notified != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 1 notified", result)
	}
	if sink.sentTo("alice") != 1 || sink.sentTo("bob") != 0 {
		t.Fatalf("notified alice=%d bob=%d, want 1/0", sink.sentTo("alice"), sink.sentTo("bob"))
	}
}

func TestScanDeadlineBoundaryIsInclusive(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 11, 8, 7, 0, 0, 0, time.UTC)}
	store := newFakeRequestStore()
	sink := &fakeSink{}
	store.addActive(domain.RequestKindDeerRecovery, "alice", clock.Now())

	scanner := newScanner(store, sink, clock, true)
	result, err := scanner.RunScan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.Notified != 1 {
		t.Fatalf("deadline exactly now not treated as due: %+v", result)
	}
}

// In renotify mode an unacknowledged request is nagged again on every pass.
func TestScanRepeatsUntilAcknowledged(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 11, 8, 7, 0, 0, 0, time.UTC)}
	store := newFakeRequestStore()
	sink := &fakeSink{}
	store.addActive(domain.RequestKindDeerRecovery, "alice", clock.Now().Add(-time.Minute))

	scanner := newScanner(store, sink, clock, true)
	for i := 0; i < 3; i++ {
		if _, err := scanner.RunScan(context.Background()); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
		clock.Advance(time.Second)
	}

	if got := sink.sentTo("alice"); got != 3 {
		t.Fatalf("notified %d times across 3 scans, want 3", got)
	}
}

func TestScanAdvancesDeadlineWhenRenotifyDisabled(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 11, 8, 7, 0, 0, 0, time.UTC)}
	store := newFakeRequestStore()
	sink := &fakeSink{}
	id := store.addActive(domain.RequestKindDeerRecovery, "alice", clock.Now().Add(-time.Minute))

	scanner := newScanner(store, sink, clock, false)
	if _, err := scanner.RunScan(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	stored, _ := store.GetByID(context.Background(), id)
	want := clock.Now().Add(time.Hour)
	if stored.NextFollowUpAt == nil || !stored.NextFollowUpAt.Equal(want) {
		t.Fatalf("deadline = %v, want %v", stored.NextFollowUpAt, want)
	}

	clock.Advance(time.Minute)
	result, err := scanner.RunScan(context.Background())
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if result.Notified != 0 {
		t.Fatalf("second scan renotified despite advanced deadline: %+v", result)
	}
	if got := sink.sentTo("alice"); got != 1 {
		t.Fatalf("notified %d times, want 1", got)
	}
}

func TestScanIsolatesNotificationFailures(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 11, 8, 7, 0, 0, 0, time.UTC)}
	store := newFakeRequestStore()
	sink := &fakeSink{failFor: map[string]bool{"bob": true}}

	store.addActive(domain.RequestKindDeerRecovery, "alice", clock.Now().Add(-time.Minute))
	store.addActive(domain.RequestKindVehicleRecovery, "bob", clock.Now().Add(-time.Minute))
	store.addActive(domain.RequestKindDeerRecovery, "carol", clock.Now().Add(-time.Minute))

	scanner := newScanner(store, sink, clock, true)
	result, err := scanner.RunScan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if result.Notified != 2 || result.Failed != 1 {
		t.Fatalf("result = %+v, want 2 notified and 1 failed", result)
	}
	if sink.sentTo("alice") != 1 || sink.sentTo("carol") != 1 {
		t.Fatal("failure for one requester blocked the others")
	}
}

func TestScanMessageMatchesKind(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 11, 8, 7, 0, 0, 0, time.UTC)}
	store := newFakeRequestStore()
	sink := &fakeSink{}
	store.addActive(domain.RequestKindVehicleRecovery, "bob", clock.Now().Add(-time.Minute))

	scanner := newScanner(store, sink, clock, true)
	if _, err := scanner.RunScan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(sink.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sink.sent))
	}
	notification := sink.sent[0]
	if notification.Type != domain.NotificationFollowUpDue {
		t.Fatalf("type = %s, want FOLLOW_UP_DUE", notification.Type)
	}
	if notification.Title != "Vehicle recovery check-in" {
		t.Fatalf("title = %q", notification.Title)
	}
}

func newTestRedisLocker(t *testing.T, key string, ttl time.Duration) (*RedisLocker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, key, ttl), client
}

func TestRedisLockerSingleFlight(t *testing.T) {
	ctx := context.Background()
	locker, client := newTestRedisLocker(t, "scan:lock", time.Minute)

	acquired, err := locker.Acquire(ctx)
	if err != nil || !acquired {
		t.Fatalf("first acquire = (%v, %v), want (true, nil)", acquired, err)
	}

	second := NewRedisLocker(client, "scan:lock", time.Minute)
	acquired, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if acquired {
		t.Fatal("second locker acquired a held lock")
	}

	if err := locker.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	acquired, err = second.Acquire(ctx)
	if err != nil || !acquired {
		t.Fatalf("acquire after release = (%v, %v), want (true, nil)", acquired, err)
	}
}

func TestRedisLockerReleaseIgnoresForeignToken(t *testing.T) {
	ctx := context.Background()
	locker, client := newTestRedisLocker(t, "scan:lock", time.Minute)

	holder := NewRedisLocker(client, "scan:lock", time.Minute)
	if acquired, err := holder.Acquire(ctx); err != nil || !acquired {
		t.Fatalf("holder acquire = (%v, %v)", acquired, err)
	}

	// locker never took the lock; its release must not evict the holder
	if err := locker.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if acquired, _ := locker.Acquire(ctx); acquired {
		t.Fatal("lock freed by a locker that did not hold it")
	}
}

func TestScanSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 11, 8, 7, 0, 0, 0, time.UTC)}
	store := newFakeRequestStore()
	sink := &fakeSink{}
	store.addActive(domain.RequestKindDeerRecovery, "alice", clock.Now().Add(-time.Minute))

	locker, client := newTestRedisLocker(t, "scan:lock", time.Minute)
	holder := NewRedisLocker(client, "scan:lock", time.Minute)
	if acquired, err := holder.Acquire(ctx); err != nil || !acquired {
		t.Fatalf("holder acquire = (%v, %v)", acquired, err)
	}

	scanner := NewFollowUpScanner(ScannerDependencies{
		RequestRepo:       store,
		Sink:              sink,
		Locker:            locker,
		FollowUpInterval:  time.Hour,
		RenotifyEveryScan: true,
		Now:               clock.Now,
	})
	result, err := scanner.RunScan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !result.Skipped || result.Notified != 0 {
		t.Fatalf("result = %+v, want skipped pass", result)
	}

	if err := holder.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	result, err = scanner.RunScan(ctx)
	if err != nil {
		t.Fatalf("scan after release: %v", err)
	}
	if result.Skipped || result.Notified != 1 {
		t.Fatalf("result = %+v, want 1 notified", result)
	}
}
