package state

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/backend"
	"todoapp/internal/utils"
)

func TestFilterTodos(t *testing.T) {
	todos := []backend.Todo{todo(1, "a", false), todo(2, "b", true), todo(3, "c", false)}
	before := append([]backend.Todo(nil), todos...)

	tests := []struct {
		filter Filter
		want   []int
	}{
		{FilterAll, []int{1, 2, 3}},
		{FilterActive, []int{1, 3}},
		{FilterCompleted, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			once := FilterTodos(todos, tt.filter)
			assert.Equal(t, tt.want, ids(once))
			assert.Equal(t, once, FilterTodos(once, tt.filter), "filtering twice changes nothing")
		})
	}
	assert.Equal(t, before, todos, "input must not be modified")
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want Filter
	}{
		{"", FilterAll},
		{"all", FilterAll},
		{"#/", FilterAll},
		{"Active", FilterActive},
		{"#/active", FilterActive},
		{" completed ", FilterCompleted},
		{"#/completed", FilterCompleted},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFilter("done")
	var withSuggestion *utils.ErrorWithSuggestion
	require.True(t, errors.As(err, &withSuggestion))
	assert.Contains(t, withSuggestion.GetSuggestion(), "all, active, completed")
}

func TestFilterRoutesRoundTrip(t *testing.T) {
	for _, f := range Filters {
		got, err := ParseFilter(f.Route())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	assert.Equal(t, FilterActive, FilterAll.Next())
	assert.Equal(t, FilterAll, FilterCompleted.Next())
}

func TestLoadingFor(t *testing.T) {
	set := LoadingFor([]backend.Todo{todo(5, "a", true), todo(6, "b", true)})
	assert.Equal(t, map[int]bool{5: true, 6: true}, set)
}

func TestResolveEdit(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		draft  string
		action EditAction
		title  string
	}{
		{"unchanged", "Buy milk", "Buy milk", EditKeep, "Buy milk"},
		{"unchanged modulo whitespace", "Buy milk", "  Buy milk\t", EditKeep, "Buy milk"},
		{"emptied", "Buy milk", "", EditDelete, ""},
		{"whitespace only", "Buy milk", "   ", EditDelete, ""},
		{"renamed", "Buy milk", " Buy oat milk ", EditRename, "Buy oat milk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, title := ResolveEdit(tt.stored, tt.draft)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestFanOutKeepsInputOrder(t *testing.T) {
	items := []int{30, 10, 20}
	results := FanOut(context.Background(), 0, items, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 2, nil
	})

	require.Len(t, results, 3)
	assert.Equal(t, 60, results[0].Value)
	assert.Equal(t, 20, results[1].Value)
	assert.Equal(t, 40, results[2].Value)
	assert.NoError(t, FirstError(results))
}

func TestFanOutRespectsLimit(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 12)

	FanOut(context.Background(), 3, items, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestFanOutFirstError(t *testing.T) {
	boom := errors.New("boom")
	results := FanOut(context.Background(), 0, []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n >= 2 {
			return 0, boom
		}
		return n, nil
	})
	assert.ErrorIs(t, FirstError(results), boom)
	assert.NoError(t, results[0].Err)
}

func TestFanOutCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := FanOut(ctx, 1, []int{1, 2}, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	assert.ErrorIs(t, FirstError(results), context.Canceled)
}

func TestFanOutEmpty(t *testing.T) {
	assert.Nil(t, FanOut(context.Background(), 0, []int(nil), func(_ context.Context, n int) (int, error) {
		return n, nil
	}))
}
