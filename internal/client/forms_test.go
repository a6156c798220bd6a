package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/models"
)

func cachedForms(t *testing.T, c *Client, employeeID uint) []Submission {
	t.Helper()
	v, ok := c.Cache().Get(formsKey(employeeID))
	require.True(t, ok, "forms list cached")
	return v.([]Submission)
}

func TestSend_OptimisticPlaceholderThenReconcile(t *testing.T) {
	t.Parallel()
	f, c := newFakeAPI(t)
	ctx := context.Background()

	list, err := c.Forms.List(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, list)

	gate := make(chan struct{})
	f.set(func(f *fakeAPI) { f.sendGate = gate })
	type result struct {
		s   *Submission
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := c.Forms.Send(ctx, 7, 42)
		done <- result{s, err}
	}()

	require.Eventually(t, func() bool {
		v, ok := c.Cache().Get(formsKey(7))
		return ok && len(v.([]Submission)) == 1
	}, time.Second, time.Millisecond)
	pending := cachedForms(t, c, 7)[0]
	assert.Equal(t, models.SubmissionSent, pending.Status)
	assert.Zero(t, pending.ID, "placeholder until the server answers")

	close(gate)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, uint(101), res.s.ID)

	got := cachedForms(t, c, 7)
	require.Len(t, got, 1)
	assert.Equal(t, uint(101), got[0].ID)
	assert.Equal(t, 2, f.hit("forms"), "list refetched after send")
}

func TestSend_FailureRevertsCache(t *testing.T) {
	t.Parallel()
	f, c := newFakeAPI(t)
	ctx := context.Background()

	_, err := c.Forms.List(ctx, 7)
	require.NoError(t, err)

	f.set(func(f *fakeAPI) { f.sendFail = true })
	_, err = c.Forms.Send(ctx, 7, 42)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
	assert.Empty(t, cachedForms(t, c, 7))
}

func TestSign_WatchesUntilCompleted(t *testing.T) {
	t.Parallel()
	f, c := newFakeAPI(t)
	ctx := context.Background()

	sent, err := c.Forms.Send(ctx, 7, 42)
	require.NoError(t, err)
	f.set(func(f *fakeAPI) {
		f.refreshes = []models.SubmissionStatus{models.SubmissionOpened, models.SubmissionOpened, models.SubmissionCompleted}
	})

	sg, err := c.Forms.Sign(ctx, sent, models.SignerEmployee)
	require.NoError(t, err)
	assert.Equal(t, "https://sign.example/s/abc", sg.URL)
	assert.Equal(t, models.SubmissionOpened, sg.Submission.Status)

	select {
	case <-sg.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	st, ok := c.Forms.State(sent.ID)
	require.True(t, ok)
	assert.Equal(t, models.SubmissionCompleted, st.Confirmed)
	assert.False(t, st.Optimistic())
	assert.Equal(t, 3, f.hit("refresh"))

	list, err := c.Forms.List(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionCompleted, list[0].Status)
}

func TestSign_WatcherIsBounded(t *testing.T) {
	t.Parallel()
	f, c := newFakeAPI(t)
	ctx := context.Background()

	sent, err := c.Forms.Send(ctx, 7, 42)
	require.NoError(t, err)
	f.set(func(f *fakeAPI) { f.refreshes = []models.SubmissionStatus{models.SubmissionOpened} })

	sg, err := c.Forms.Sign(ctx, sent, models.SignerEmployee)
	require.NoError(t, err)
	<-sg.Done()
	assert.Equal(t, 5, f.hit("refresh"), "one refresh per tick")

	st, _ := c.Forms.State(sent.ID)
	assert.Equal(t, models.SubmissionOpened, st.Status)
}

func TestSign_FailureLeavesStatus(t *testing.T) {
	t.Parallel()
	f, c := newFakeAPI(t)
	ctx := context.Background()

	sent, err := c.Forms.Send(ctx, 7, 42)
	require.NoError(t, err)
	f.set(func(f *fakeAPI) { f.signFail = true })

	_, err = c.Forms.Sign(ctx, sent, models.SignerEmployee)
	assert.Equal(t, http.StatusConflict, StatusOf(err))
	assert.Equal(t, models.SubmissionSent, cachedForms(t, c, 7)[0].Status)
	assert.Zero(t, f.hit("refresh"))
}

func TestPoller_RefreshesUntilCancelled(t *testing.T) {
	t.Parallel()
	f, c := newFakeAPI(t)
	ctx, cancel := context.WithCancel(context.Background())

	p := c.Poller(5*time.Millisecond, 7)
	updates := make(chan int, 16)
	p.OnUpdate = func(id uint, list []Submission) {
		select {
		case updates <- len(list):
		default:
		}
	}
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return f.hit("forms") >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.NotEmpty(t, updates)
}

func TestSign_FirstRefreshWaitsOneInterval(t *testing.T) {
	t.Parallel()
	f, c := newFakeAPI(t, WithWatch(150*time.Millisecond, 2))
	ctx := context.Background()

	sent, err := c.Forms.Send(ctx, 7, 42)
	require.NoError(t, err)
	f.set(func(f *fakeAPI) { f.refreshes = []models.SubmissionStatus{models.SubmissionCompleted} })

	sg, err := c.Forms.Sign(ctx, sent, models.SignerEmployee)
	require.NoError(t, err)
	assert.Zero(t, f.hit("refresh"), "no refresh before the first interval")

	select {
	case <-sg.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, 1, f.hit("refresh"))
}

func TestList_ReturnsCopies(t *testing.T) {
	t.Parallel()
	_, c := newFakeAPI(t)
	ctx := context.Background()

	_, err := c.Forms.Send(ctx, 7, 42)
	require.NoError(t, err)

	list, err := c.Forms.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	list[0].Status = models.SubmissionDeclined
	list[0].Signers = append(list[0].Signers, models.Signer{Role: models.SignerHR})

	again, err := c.Forms.List(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSent, again[0].Status)
	assert.Empty(t, again[0].Signers)
	assert.Equal(t, models.SubmissionSent, cachedForms(t, c, 7)[0].Status)
}
