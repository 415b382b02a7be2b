package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedian/remedian/internal/history"
	"github.com/remedian/remedian/remediator"
	"github.com/remedian/remedian/types"
)

// captureNotifier records every published notification
type captureNotifier struct {
	published []types.Notification
}

func (c *captureNotifier) Publish(_ context.Context, n types.Notification) error {
	c.published = append(c.published, n)
	return nil
}

// stubRemedy counts corrective calls
type stubRemedy struct {
	applies int
}

func (s *stubRemedy) ResourceType() string { return types.ResourceTypeS3Bucket }

func (s *stubRemedy) Apply(_ context.Context, resourceID string) (string, error) {
	s.applies++
	return fmt.Sprintf("Automatically blocked public access on S3 bucket: %s", resourceID), nil
}

func (s *stubRemedy) Describe(resourceID string) string {
	return fmt.Sprintf("would block public access on S3 bucket: %s", resourceID)
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOnceNotifier_SuppressesWithinWindow(t *testing.T) {
	store := openHistory(t)
	base := &captureNotifier{}
	notifier := NewOnceNotifier(base, store, time.Hour)

	note := types.Notification{ResourceID: "bucket-A", Message: "blocked"}

	require.NoError(t, notifier.Publish(context.Background(), note))
	require.Len(t, base.published, 1)

	require.NoError(t, store.Put(history.Record{
		ResourceID:   "bucket-A",
		Outcome:      types.OutcomeRemediated,
		RemediatedAt: time.Now(),
	}))

	require.NoError(t, notifier.Publish(context.Background(), note))
	assert.Len(t, base.published, 1, "second notification within the window is suppressed")
}

func TestOnceNotifier_PublishesOutsideWindow(t *testing.T) {
	store := openHistory(t)
	base := &captureNotifier{}
	notifier := NewOnceNotifier(base, store, 5*time.Minute)

	require.NoError(t, store.Put(history.Record{
		ResourceID:   "bucket-A",
		Outcome:      types.OutcomeRemediated,
		RemediatedAt: time.Now().Add(-time.Hour),
	}))

	require.NoError(t, notifier.Publish(context.Background(), types.Notification{ResourceID: "bucket-A"}))
	assert.Len(t, base.published, 1)
}

func TestOnceNotifier_ZeroWindowNeverSuppresses(t *testing.T) {
	store := openHistory(t)
	base := &captureNotifier{}
	notifier := NewOnceNotifier(base, store, 0)

	require.NoError(t, store.Put(history.Record{
		ResourceID:   "bucket-A",
		Outcome:      types.OutcomeRemediated,
		RemediatedAt: time.Now(),
	}))

	require.NoError(t, notifier.Publish(context.Background(), types.Notification{ResourceID: "bucket-A"}))
	assert.Len(t, base.published, 1)
}

// A bucket that stays exposed across sweeps is corrected every time but
// notified about only once per window.
func TestDaemon_RemediationRepeatsNotificationDoesNot(t *testing.T) {
	store := openHistory(t)
	base := &captureNotifier{}
	remedy := &stubRemedy{}

	registry := remediator.NewRegistry()
	require.NoError(t, registry.Register(remedy))

	handler := remediator.NewHandler(registry, NewOnceNotifier(base, store, time.Hour), remediator.Options{})

	source := &fakeSource{events: []types.ComplianceEvent{nonCompliant("bucket-A")}}
	d, err := New(source, handler, Config{})
	require.NoError(t, err)
	d.WithHistory(store)

	d.runSweep(context.Background())
	d.runSweep(context.Background())

	assert.Equal(t, 2, remedy.applies, "corrective call runs on every sweep")
	require.Len(t, base.published, 1, "only the first sweep notifies within the window")
	assert.Equal(t, "bucket-A", base.published[0].ResourceID)
	assert.Equal(t, int64(2), d.RemediatedCount())
}
