package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/browser/browsertest"
)

type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	args := m.Called(ctx, selector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]browser.Element), args.Error(1)
}

func TestResolveFallbackOrder(t *testing.T) {
	ctx := context.Background()
	c := browsertest.Text("c")

	q := new(MockQuerier)
	first := q.On("QueryAll", ctx, "#a").Return([]browser.Element{}, nil).Once()
	second := q.On("QueryAll", ctx, "#b").Return([]browser.Element{}, nil).Once().NotBefore(first)
	q.On("QueryAll", ctx, "#c").Return([]browser.Element{c}, nil).Once().NotBefore(second)

	res, err := NewResolver(nil).Resolve(ctx, q, New("#a", "#b", "#c"), Interact)
	require.NoError(t, err)

	assert.Same(t, c, res.Element)
	assert.Equal(t, "#c", res.Selector)
	assert.Equal(t, 2, res.Index)
	assert.True(t, res.Healed())
	q.AssertExpectations(t)
}

func TestResolveStopsAtFirstMatch(t *testing.T) {
	ctx := context.Background()
	a := browsertest.Text("a")

	q := new(MockQuerier)
	q.On("QueryAll", ctx, "#a").Return([]browser.Element{a}, nil).Once()

	res, err := NewResolver(nil).Resolve(ctx, q, New("#a", "#b"), Interact)
	require.NoError(t, err)

	assert.Same(t, a, res.Element)
	assert.False(t, res.Healed())
	q.AssertNotCalled(t, "QueryAll", ctx, "#b")
}

func TestResolveIndexCountsBlankCandidates(t *testing.T) {
	page := browsertest.NewPage().Add("#c", browsertest.Text("c"))
	r := NewResolver(nil)

	res, err := r.Resolve(context.Background(), page, Spec{Primary: "#a", Fallback: []string{" ", "#c"}}, Interact)
	require.NoError(t, err)
	assert.Equal(t, "#c", res.Selector)
	assert.Equal(t, 2, res.Index)

	res, err = r.Resolve(context.Background(), page, Spec{Primary: "  ", Fallback: []string{"#c"}}, Interact)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index)
	assert.True(t, res.Healed())
	assert.NotContains(t, page.Queries, "  ")
}

func TestResolveFailure(t *testing.T) {
	page := browsertest.NewPage().Invalid("##bad")

	_, err := NewResolver(nil).Resolve(context.Background(), page, New("#a", "##bad", "#c"), Interact)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotResolved))

	var rerr *ResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, []string{"#a", "##bad", "#c"}, rerr.Tried)
	assert.Len(t, rerr.Causes, 1)
	assert.Equal(t, []string{"#a", "##bad", "#c"}, page.Queries)
}

func TestResolveHiddenElement(t *testing.T) {
	page := browsertest.NewPage().
		Add("#menu", browsertest.Hidden("menu")).
		Add(`a:has-text("메뉴")`, browsertest.Text("메뉴"))

	spec := New("#menu", `a:has-text("메뉴")`)

	t.Run("interact skips hidden", func(t *testing.T) {
		res, err := NewResolver(nil).Resolve(context.Background(), page, spec, Interact)
		require.NoError(t, err)
		assert.Equal(t, `a:has-text("메뉴")`, res.Selector)
	})

	t.Run("read accepts hidden", func(t *testing.T) {
		res, err := NewResolver(nil).Resolve(context.Background(), page, spec, Read)
		require.NoError(t, err)
		assert.Equal(t, "#menu", res.Selector)
	})

	t.Run("only hidden is a failure", func(t *testing.T) {
		_, err := NewResolver(nil).Resolve(context.Background(), page, New("#menu"), Interact)
		var rerr *ResolutionError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, []string{"#menu"}, rerr.Hidden)
	})
}

func TestResolvePicksFirstVisible(t *testing.T) {
	hidden := browsertest.Hidden("x")
	visible := browsertest.Text("y")
	page := browsertest.NewPage().Add(".btn", hidden, visible)

	res, err := NewResolver(nil).Resolve(context.Background(), page, New(".btn"), Interact)
	require.NoError(t, err)
	assert.Same(t, visible, res.Element)
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(nil).Resolve(ctx, browsertest.NewPage(), New("#a"), Read)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNotResolved)
}

func TestCandidates(t *testing.T) {
	s := Spec{Primary: "#a", Fallback: []string{"", "#b", "  "}}
	assert.Equal(t, []string{"#a", "#b"}, s.Candidates())
	assert.Equal(t, "#a (+3 fallback)", s.String())
}
