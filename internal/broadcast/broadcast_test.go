package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/hombenai/herd-bot/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSender struct {
	mu       sync.Mutex
	captions map[string]string
	failFor  map[string]error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		captions: make(map[string]string),
		failFor:  make(map[string]error),
	}
}

func (s *recordingSender) SendAlert(ctx context.Context, userID, photoRef, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[userID]; ok {
		return err
	}
	s.captions[userID] = caption
	return nil
}

func testUsers() (models.Animal, models.User, []models.User) {
	animal := models.Animal{ID: "12", Name: "Bessie", OwnerID: "a", PhotoRef: "photo-1"}
	reporter := models.User{ID: "a", Name: "Alice"}
	recipients := []models.User{
		{ID: "a", Name: "Alice"},
		{ID: "b", Name: "Bob"},
		{ID: "c", Name: "Carol"},
	}
	return animal, reporter, recipients
}

func TestMissingAlertReachesEveryone(t *testing.T) {
	sender := newRecordingSender()
	b := New(sender, 2, time.Second, zap.NewNop())

	animal, reporter, recipients := testUsers()
	report := b.MissingAlert(context.Background(), animal, reporter, recipients)

	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.NoError(t, report.Err)

	// The reporter is notified too, and the caption names animal and owner.
	caption := sender.captions["a"]
	assert.Contains(t, caption, "Bessie")
	assert.Contains(t, caption, "Alice")
	assert.Contains(t, sender.captions, "b")
	assert.Contains(t, sender.captions, "c")
}

func TestMissingAlertToleratesPartialFailure(t *testing.T) {
	sender := newRecordingSender()
	sender.failFor["b"] = errors.New("blocked the bot")
	b := New(sender, 2, time.Second, zap.NewNop())

	animal, reporter, recipients := testUsers()
	report := b.MissingAlert(context.Background(), animal, reporter, recipients)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorContains(t, report.Err, "user b")

	assert.Contains(t, sender.captions, "a")
	assert.NotContains(t, sender.captions, "b")
	assert.Contains(t, sender.captions, "c")
}

func TestMissingAlertNoRecipients(t *testing.T) {
	b := New(newRecordingSender(), 4, time.Second, zap.NewNop())
	animal, reporter, _ := testUsers()

	report := b.MissingAlert(context.Background(), animal, reporter, nil)
	assert.Equal(t, Report{}, report)
}
