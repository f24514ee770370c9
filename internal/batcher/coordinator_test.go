package batcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coalescer/internal/request"
)

// recordingRunner records member execution order and delivers each
// member its own key as the result
type recordingRunner struct {
	mu    sync.Mutex
	order []string
}

func (r *recordingRunner) RunMember(ctx context.Context, m *Member) {
	r.mu.Lock()
	r.order = append(r.order, m.Key)
	r.mu.Unlock()
	m.Deliver(m.Key, nil)
}

func (r *recordingRunner) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

type delivery struct {
	value interface{}
	err   error
}

// newMember builds a member whose deliveries land on the returned channel
func newMember(key, batchType string, prio request.Priority) (*Member, <-chan delivery) {
	ch := make(chan delivery, 1)
	m := &Member{
		ID:       uuid.New().String(),
		Key:      key,
		Type:     batchType,
		Priority: prio,
		Op: func(ctx context.Context) (interface{}, error) {
			return key, nil
		},
		Deliver: func(v interface{}, err error) {
			ch <- delivery{v, err}
		},
	}
	return m, ch
}

func awaitDelivery(t *testing.T, ch <-chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("member was never delivered")
		return delivery{}
	}
}

func TestCoordinator_FlushOnTimer(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   40 * time.Millisecond,
		MaxBatchSize: 10,
	}, zerolog.Nop())
	c.SetRunner(runner)

	ctx := context.Background()
	var chans []<-chan delivery
	for _, key := range []string{"a", "b", "c"} {
		m, ch := newMember(key, "embed", request.PriorityNormal)
		c.Submit(ctx, m)
		chans = append(chans, ch)
	}

	assert.Equal(t, 1, c.OpenWindows())

	for i, ch := range chans {
		d := awaitDelivery(t, ch)
		require.NoError(t, d.err)
		assert.Equal(t, []string{"a", "b", "c"}[i], d.value)
	}
	assert.Equal(t, 0, c.OpenWindows())
}

func TestCoordinator_FlushOnMaxSize(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   10 * time.Second, // timer must not be the trigger
		MaxBatchSize: 3,
	}, zerolog.Nop())
	c.SetRunner(runner)

	ctx := context.Background()
	var chans []<-chan delivery
	for _, key := range []string{"a", "b", "c"} {
		m, ch := newMember(key, "embed", request.PriorityNormal)
		c.Submit(ctx, m)
		chans = append(chans, ch)
	}

	for _, ch := range chans {
		d := awaitDelivery(t, ch)
		require.NoError(t, d.err)
	}
}

func TestCoordinator_FlushOnHighPriority(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   10 * time.Second,
		MaxBatchSize: 10,
	}, zerolog.Nop())
	c.SetRunner(runner)

	ctx := context.Background()
	mNormal, chNormal := newMember("normal", "embed", request.PriorityNormal)
	c.Submit(ctx, mNormal)

	mHigh, chHigh := newMember("high", "embed", request.PriorityHigh)
	c.Submit(ctx, mHigh)

	require.NoError(t, awaitDelivery(t, chHigh).err)
	require.NoError(t, awaitDelivery(t, chNormal).err)
}

func TestCoordinator_HighPriorityFirstMemberFlushesAlone(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   10 * time.Second,
		MaxBatchSize: 10,
	}, zerolog.Nop())
	c.SetRunner(runner)

	m, ch := newMember("solo", "embed", request.PriorityHigh)
	c.Submit(context.Background(), m)

	d := awaitDelivery(t, ch)
	require.NoError(t, d.err)
	assert.Equal(t, "solo", d.value)
}

func TestCoordinator_PriorityOrderingWithSubmissionTieBreak(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   10 * time.Second,
		MaxBatchSize: 10,
		StaggerDelay: 30 * time.Millisecond,
	}, zerolog.Nop())
	c.SetRunner(runner)

	// The high member joins last and triggers the eager flush, so the
	// window holds all four priorities at once
	ctx := context.Background()
	var chans []<-chan delivery
	submissions := []struct {
		key  string
		prio request.Priority
	}{
		{"k-low", request.PriorityLow},
		{"k-n1", request.PriorityNormal},
		{"k-n2", request.PriorityNormal},
		{"k-high", request.PriorityHigh},
	}
	for _, s := range submissions {
		m, ch := newMember(s.key, "embed", s.prio)
		c.Submit(ctx, m)
		chans = append(chans, ch)
	}

	for _, ch := range chans {
		require.NoError(t, awaitDelivery(t, ch).err)
	}

	// The stagger keeps start times strictly increasing by position, so
	// the recorded order is the execution order
	assert.Equal(t, []string{"k-high", "k-n1", "k-n2", "k-low"}, runner.Order())
}

func TestCoordinator_MissingRunnerRejectsMembers(t *testing.T) {
	c := NewCoordinator(Config{
		BatchDelay:   20 * time.Millisecond,
		MaxBatchSize: 10,
	}, zerolog.Nop())

	m, ch := newMember("orphan", "embed", request.PriorityNormal)
	c.Submit(context.Background(), m)

	d := awaitDelivery(t, ch)
	var orchErr *OrchestrationError
	require.True(t, errors.As(d.err, &orchErr))
}

func TestCoordinator_DistinctTypesNeverShareWindows(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   10 * time.Second,
		MaxBatchSize: 10,
	}, zerolog.Nop())
	c.SetRunner(runner)

	ctx := context.Background()
	mA, _ := newMember("a", "embed", request.PriorityNormal)
	mB, _ := newMember("b", "classify", request.PriorityNormal)
	c.Submit(ctx, mA)
	c.Submit(ctx, mB)

	assert.Equal(t, 2, c.OpenWindows())
	c.DrainAll()
}

func TestCoordinator_DrainAllReturnsUndeliveredMembers(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   10 * time.Second,
		MaxBatchSize: 10,
	}, zerolog.Nop())
	c.SetRunner(runner)

	ctx := context.Background()
	m1, ch1 := newMember("a", "embed", request.PriorityNormal)
	m2, ch2 := newMember("b", "classify", request.PriorityNormal)
	c.Submit(ctx, m1)
	c.Submit(ctx, m2)

	drained := c.DrainAll()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, c.OpenWindows())

	// The caller owes drained members their terminal outcome; the
	// coordinator must not have delivered anything
	select {
	case <-ch1:
		t.Fatal("drained member was delivered")
	case <-ch2:
		t.Fatal("drained member was delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoordinator_RemoveParkedMember(t *testing.T) {
	runner := &recordingRunner{}
	c := NewCoordinator(Config{
		BatchDelay:   60 * time.Millisecond,
		MaxBatchSize: 10,
	}, zerolog.Nop())
	c.SetRunner(runner)

	ctx := context.Background()
	m1, ch1 := newMember("cancelled", "embed", request.PriorityNormal)
	m2, ch2 := newMember("kept", "embed", request.PriorityNormal)
	c.Submit(ctx, m1)
	c.Submit(ctx, m2)

	require.True(t, c.Remove("embed", m1.ID))
	assert.False(t, c.Remove("embed", "no-such-id"))

	d := awaitDelivery(t, ch2)
	require.NoError(t, d.err)
	assert.Equal(t, "kept", d.value)

	select {
	case <-ch1:
		t.Fatal("removed member was still executed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWindow_TakeMembersIsOneShot(t *testing.T) {
	w := NewWindow("embed", time.Second)
	m, _ := newMember("a", "embed", request.PriorityNormal)
	w.Add(m, 10)

	require.Len(t, w.TakeMembers(), 1)
	assert.Nil(t, w.TakeMembers())
	assert.False(t, w.IsEmpty(), "a flushing window is not reusable")
}
