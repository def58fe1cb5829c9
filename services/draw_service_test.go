package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"giveaway-draw-service/models"
	"giveaway-draw-service/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type notifyEvent struct {
	UserID string
	Kind   string
}

// recordingNotifier captures dispatched notifications. Notifications
// are sent from a goroutine, so access is mutex-guarded.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notifyEvent
}

func (r *recordingNotifier) Notify(userID, kind string, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notifyEvent{UserID: userID, Kind: kind})
}

func (r *recordingNotifier) countByKind(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type drawTestEnv struct {
	db       *gorm.DB
	locks    *DrawLockService
	notifier *recordingNotifier
	service  *DrawService
	redis    *miniredis.Miniredis
}

func newDrawTestEnv(t *testing.T) *drawTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Giveaway{},
		&models.Participant{},
		&models.Winner{},
		&models.Pickup{},
		&models.AuditLog{},
		&models.DrawUser{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locks := NewDrawLockService(client)
	notifier := &recordingNotifier{}
	return &drawTestEnv{
		db:       db,
		locks:    locks,
		notifier: notifier,
		service:  NewDrawService(db, locks, notifier),
		redis:    mr,
	}
}

func (e *drawTestEnv) seedGiveaway(t *testing.T, ownerID string, quantity int, gender string, status models.GiveawayStatus) *models.Giveaway {
	t.Helper()
	giveaway := &models.Giveaway{
		ID:                uuid.NewString(),
		UserID:            ownerID,
		Title:             "Test giveaway",
		Slug:              "test-giveaway",
		Quantity:          quantity,
		EligibilityGender: gender,
		Status:            status,
	}
	if err := e.db.Create(giveaway).Error; err != nil {
		t.Fatalf("failed to seed giveaway: %v", err)
	}
	return giveaway
}

func (e *drawTestEnv) seedParticipant(t *testing.T, giveawayID, userID, gender string, status models.ParticipantStatus) {
	t.Helper()
	user := &models.DrawUser{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Username:       userID,
		Gender:         gender,
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", userID, err)
	}
	participant := &models.Participant{
		ID:         uuid.NewString(),
		GiveawayID: giveawayID,
		UserID:     userID,
		Status:     status,
	}
	if err := e.db.Create(participant).Error; err != nil {
		t.Fatalf("failed to seed participant %s: %v", userID, err)
	}
}

func (e *drawTestEnv) participantStatus(t *testing.T, giveawayID, userID string) models.ParticipantStatus {
	t.Helper()
	var p models.Participant
	if err := e.db.Where("giveaway_id = ? AND user_id = ?", giveawayID, userID).First(&p).Error; err != nil {
		t.Fatalf("failed to load participant %s: %v", userID, err)
	}
	return p.Status
}

// Scenario: quantity=1, five interested participants, three eligible
// after the gender filter. Exactly one winner with a pickup code; every
// other participant (eligible or not) ends up REJECTED; one audit row.
func TestCloseDraw_EndToEnd(t *testing.T) {
	env := newDrawTestEnv(t)
	giveaway := env.seedGiveaway(t, "owner", 1, models.EligibilityFemale, models.GiveawayStatusOpen)

	env.seedParticipant(t, giveaway.ID, "f1", "FEMALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "f2", "FEMALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "f3", "FEMALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "m1", "MALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "m2", "MALE", models.ParticipantStatusInterested)

	result, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
	if err != nil {
		t.Fatalf("CloseDraw failed: %v", err)
	}

	if len(result.Winners) != 1 {
		t.Fatalf("expected 1 winner, got %d", len(result.Winners))
	}
	winner := result.Winners[0]
	if winner.DrawNumber != 1 {
		t.Errorf("expected draw number 1, got %d", winner.DrawNumber)
	}
	if winner.UserID != "f1" && winner.UserID != "f2" && winner.UserID != "f3" {
		t.Errorf("winner %s is not in the eligible pool", winner.UserID)
	}
	if winner.Pickup == nil {
		t.Fatal("winner has no pickup credential")
	}
	if len(winner.Pickup.PickupCode) != utils.PickupCodeLength {
		t.Errorf("pickup code %q has wrong length", winner.Pickup.PickupCode)
	}

	var stored models.Giveaway
	if err := env.db.First(&stored, "id = ?", giveaway.ID).Error; err != nil {
		t.Fatalf("failed to reload giveaway: %v", err)
	}
	if stored.Status != models.GiveawayStatusClosed {
		t.Errorf("expected status CLOSED, got %s", stored.Status)
	}
	if stored.WinnersCount != 1 {
		t.Errorf("expected winners_count 1, got %d", stored.WinnersCount)
	}
	if stored.ClosedAt == nil || stored.DrawCompletedAt == nil {
		t.Error("closed_at and draw_completed_at must be set")
	}

	// Everyone who was still INTERESTED and not selected is REJECTED —
	// ineligible participants are not left hanging
	for _, uid := range []string{"f1", "f2", "f3", "m1", "m2"} {
		status := env.participantStatus(t, giveaway.ID, uid)
		if uid == winner.UserID {
			if status != models.ParticipantStatusSelected {
				t.Errorf("winner %s has status %s", uid, status)
			}
		} else if status != models.ParticipantStatusRejected {
			t.Errorf("participant %s has status %s, want REJECTED", uid, status)
		}
	}

	var auditCount int64
	if err := env.db.Model(&models.AuditLog{}).
		Where("entity_id = ? AND action = ?", giveaway.ID, "DRAW_COMPLETED").
		Count(&auditCount).Error; err != nil {
		t.Fatalf("failed to count audit rows: %v", err)
	}
	if auditCount != 1 {
		t.Errorf("expected 1 audit entry, got %d", auditCount)
	}

	held, err := env.locks.IsLocked(context.Background(), giveaway.ID)
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if held {
		t.Error("draw lock must be released after a successful close")
	}

	// Notifications are async; wait for them briefly
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.notifier.countByKind("WINNER_SELECTED") == 1 && env.notifier.countByKind("DRAW_CLOSED") == 4 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := env.notifier.countByKind("WINNER_SELECTED"); got != 1 {
		t.Errorf("expected 1 WINNER_SELECTED notification, got %d", got)
	}
	if got := env.notifier.countByKind("DRAW_CLOSED"); got != 4 {
		t.Errorf("expected 4 DRAW_CLOSED notifications, got %d", got)
	}
}

func TestCloseDraw_ZeroEligible(t *testing.T) {
	env := newDrawTestEnv(t)
	giveaway := env.seedGiveaway(t, "owner", 1, models.EligibilityFemale, models.GiveawayStatusOpen)

	env.seedParticipant(t, giveaway.ID, "m1", "MALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "m2", "MALE", models.ParticipantStatusInterested)

	_, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
	if !errors.Is(err, ErrNoEligibleParticipants) {
		t.Fatalf("expected ErrNoEligibleParticipants, got %v", err)
	}

	var stored models.Giveaway
	if err := env.db.First(&stored, "id = ?", giveaway.ID).Error; err != nil {
		t.Fatalf("failed to reload giveaway: %v", err)
	}
	if stored.Status != models.GiveawayStatusOpen {
		t.Errorf("giveaway must stay OPEN, got %s", stored.Status)
	}

	var winnerCount int64
	env.db.Model(&models.Winner{}).Where("giveaway_id = ?", giveaway.ID).Count(&winnerCount)
	if winnerCount != 0 {
		t.Errorf("no winners must exist, got %d", winnerCount)
	}
	for _, uid := range []string{"m1", "m2"} {
		if status := env.participantStatus(t, giveaway.ID, uid); status != models.ParticipantStatusInterested {
			t.Errorf("participant %s mutated to %s on a rejected close", uid, status)
		}
	}

	held, _ := env.locks.IsLocked(context.Background(), giveaway.ID)
	if held {
		t.Error("lock must be released after a validation failure")
	}
}

func TestCloseDraw_ValidationFailures(t *testing.T) {
	env := newDrawTestEnv(t)

	t.Run("unknown giveaway", func(t *testing.T) {
		_, err := env.service.CloseDraw(context.Background(), uuid.NewString(), "owner")
		if !errors.Is(err, ErrGiveawayNotFound) {
			t.Fatalf("expected ErrGiveawayNotFound, got %v", err)
		}
	})

	t.Run("caller is not the owner", func(t *testing.T) {
		giveaway := env.seedGiveaway(t, "owner", 1, models.EligibilityAll, models.GiveawayStatusOpen)
		env.seedParticipant(t, giveaway.ID, "x1", "MALE", models.ParticipantStatusInterested)

		_, err := env.service.CloseDraw(context.Background(), giveaway.ID, "somebody-else")
		if !errors.Is(err, ErrNotGiveawayOwner) {
			t.Fatalf("expected ErrNotGiveawayOwner, got %v", err)
		}
	})

	t.Run("giveaway not open", func(t *testing.T) {
		for _, status := range []models.GiveawayStatus{
			models.GiveawayStatusDraft,
			models.GiveawayStatusClosed,
			models.GiveawayStatusCancelled,
		} {
			giveaway := env.seedGiveaway(t, "owner", 1, models.EligibilityAll, status)
			_, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
			if !errors.Is(err, ErrGiveawayNotOpen) {
				t.Fatalf("status %s: expected ErrGiveawayNotOpen, got %v", status, err)
			}
		}
	})
}

// Injecting a store failure after the winner rows are written must roll
// the whole commit back: no winners, no pickups, no audit entry, and
// the giveaway still OPEN. The close is then safely retryable.
func TestCloseDraw_AtomicRollback(t *testing.T) {
	env := newDrawTestEnv(t)
	giveaway := env.seedGiveaway(t, "owner", 2, models.EligibilityAll, models.GiveawayStatusOpen)
	for i := 1; i <= 4; i++ {
		env.seedParticipant(t, giveaway.ID, fmt.Sprintf("u%d", i), "MALE", models.ParticipantStatusInterested)
	}

	env.service.afterWinnersHook = func(tx *gorm.DB) error {
		return errors.New("simulated store failure")
	}

	_, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}

	var stored models.Giveaway
	if err := env.db.First(&stored, "id = ?", giveaway.ID).Error; err != nil {
		t.Fatalf("failed to reload giveaway: %v", err)
	}
	if stored.Status != models.GiveawayStatusOpen {
		t.Errorf("giveaway must remain OPEN after rollback, got %s", stored.Status)
	}

	var winnerCount, pickupCount, auditCount int64
	env.db.Model(&models.Winner{}).Where("giveaway_id = ?", giveaway.ID).Count(&winnerCount)
	env.db.Model(&models.Pickup{}).Count(&pickupCount)
	env.db.Model(&models.AuditLog{}).Where("entity_id = ?", giveaway.ID).Count(&auditCount)
	if winnerCount != 0 || pickupCount != 0 || auditCount != 0 {
		t.Errorf("partial state survived rollback: winners=%d pickups=%d audits=%d",
			winnerCount, pickupCount, auditCount)
	}
	for i := 1; i <= 4; i++ {
		uid := fmt.Sprintf("u%d", i)
		if status := env.participantStatus(t, giveaway.ID, uid); status != models.ParticipantStatusInterested {
			t.Errorf("participant %s mutated to %s despite rollback", uid, status)
		}
	}

	held, _ := env.locks.IsLocked(context.Background(), giveaway.ID)
	if held {
		t.Error("lock must be released after a commit failure")
	}

	// Retrying the whole close now succeeds — nothing persisted
	env.service.afterWinnersHook = nil
	result, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
	if err != nil {
		t.Fatalf("retry after rollback failed: %v", err)
	}
	if len(result.Winners) != 2 {
		t.Fatalf("expected 2 winners on retry, got %d", len(result.Winners))
	}
}

// While one close is parked inside its commit, every concurrent close
// attempt for the same giveaway must be rejected with ErrDrawInProgress
// and exactly one commit may execute.
func TestCloseDraw_MutualExclusion(t *testing.T) {
	env := newDrawTestEnv(t)
	giveaway := env.seedGiveaway(t, "owner", 1, models.EligibilityAll, models.GiveawayStatusOpen)
	for i := 1; i <= 5; i++ {
		env.seedParticipant(t, giveaway.ID, fmt.Sprintf("u%d", i), "MALE", models.ParticipantStatusInterested)
	}

	inCommit := make(chan struct{})
	releaseCommit := make(chan struct{})
	env.service.afterWinnersHook = func(tx *gorm.DB) error {
		close(inCommit)
		<-releaseCommit
		return nil
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
		firstDone <- err
	}()

	select {
	case <-inCommit:
	case <-time.After(5 * time.Second):
		t.Fatal("first close never reached its commit")
	}

	// The first close is mid-commit and holds the lock: all concurrent
	// attempts must fail fast with contention, never queue
	const contenders = 7
	var wg sync.WaitGroup
	contentionErrs := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
			contentionErrs <- err
		}()
	}
	wg.Wait()
	close(contentionErrs)

	for err := range contentionErrs {
		if !errors.Is(err, ErrDrawInProgress) {
			t.Errorf("expected ErrDrawInProgress, got %v", err)
		}
	}

	close(releaseCommit)
	if err := <-firstDone; err != nil {
		t.Fatalf("the lock-holding close failed: %v", err)
	}

	var winnerCount int64
	env.db.Model(&models.Winner{}).Where("giveaway_id = ?", giveaway.ID).Count(&winnerCount)
	if winnerCount != 1 {
		t.Fatalf("exactly one commit may execute, found %d winner rows", winnerCount)
	}
}

// Winners must always be a subset of the eligible pool; an
// eligible-but-withdrawn participant can never be selected.
func TestCloseDraw_WinnersAreEligibleSubset(t *testing.T) {
	env := newDrawTestEnv(t)
	giveaway := env.seedGiveaway(t, "owner", 2, models.EligibilityFemale, models.GiveawayStatusOpen)

	env.seedParticipant(t, giveaway.ID, "f1", "FEMALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "f2", "FEMALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "f3", "FEMALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "f4", "FEMALE", models.ParticipantStatusWithdrawn) // eligible gender, but withdrawn
	env.seedParticipant(t, giveaway.ID, "m1", "MALE", models.ParticipantStatusInterested)

	result, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
	if err != nil {
		t.Fatalf("CloseDraw failed: %v", err)
	}

	if len(result.Winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(result.Winners))
	}
	eligibleSet := map[string]bool{"f1": true, "f2": true, "f3": true}
	for _, w := range result.Winners {
		if !eligibleSet[w.UserID] {
			t.Errorf("winner %s is outside the eligible pool", w.UserID)
		}
	}

	// The withdrawn participant stays withdrawn, not rejected
	if status := env.participantStatus(t, giveaway.ID, "f4"); status != models.ParticipantStatusWithdrawn {
		t.Errorf("withdrawn participant mutated to %s", status)
	}
}

// Fewer eligible candidates than the requested quantity: everyone wins
// and winners_count records what was actually selected.
func TestCloseDraw_QuantityExceedsPool(t *testing.T) {
	env := newDrawTestEnv(t)
	giveaway := env.seedGiveaway(t, "owner", 5, models.EligibilityAll, models.GiveawayStatusOpen)
	env.seedParticipant(t, giveaway.ID, "u1", "MALE", models.ParticipantStatusInterested)
	env.seedParticipant(t, giveaway.ID, "u2", "FEMALE", models.ParticipantStatusInterested)

	result, err := env.service.CloseDraw(context.Background(), giveaway.ID, "owner")
	if err != nil {
		t.Fatalf("CloseDraw failed: %v", err)
	}
	if len(result.Winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(result.Winners))
	}

	numbers := map[int]bool{}
	codes := map[string]bool{}
	for _, w := range result.Winners {
		numbers[w.DrawNumber] = true
		if w.Pickup == nil {
			t.Fatalf("winner %s has no pickup", w.UserID)
		}
		codes[w.Pickup.PickupCode] = true
	}
	if !numbers[1] || !numbers[2] {
		t.Errorf("draw numbers must be 1..n, got %v", numbers)
	}
	if len(codes) != 2 {
		t.Error("pickup codes must be unique per winner")
	}

	var stored models.Giveaway
	env.db.First(&stored, "id = ?", giveaway.ID)
	if stored.WinnersCount != 2 {
		t.Errorf("winners_count must be 2, got %d", stored.WinnersCount)
	}
}
