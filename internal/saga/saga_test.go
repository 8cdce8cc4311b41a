package saga

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recorder struct{ calls []string }

func (r *recorder) step(name string, fail error) Step {
	return Step{
		Name: name,
		Do: func(context.Context) error {
			r.calls = append(r.calls, "do:"+name)
			return fail
		},
		Compensate: func(context.Context) error {
			r.calls = append(r.calls, "undo:"+name)
			return nil
		},
	}
}

func TestRun_AllSucceed(t *testing.T) {
	var r recorder
	err := Run(context.Background(), quietLogger(), r.step("a", nil), r.step("b", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"do:a", "do:b"}, r.calls)
}

func TestRun_CompensatesInReverse(t *testing.T) {
	var r recorder
	boom := errors.New("boom")
	err := Run(context.Background(), quietLogger(),
		r.step("a", nil), r.step("b", nil), r.step("c", boom), r.step("d", nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "c")
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, r.calls)
}

func TestCompensate_ContinuesPastFailures(t *testing.T) {
	var r recorder
	s := New(quietLogger())
	require.NoError(t, s.Run(context.Background(), r.step("a", nil)))
	s.Add(Step{Name: "broken", Compensate: func(context.Context) error {
		r.calls = append(r.calls, "undo:broken")
		return errors.New("cannot undo")
	}})
	s.Add(Step{Name: "nothing"})

	s.Compensate(context.Background())
	s.Compensate(context.Background())

	assert.Equal(t, []string{"do:a", "undo:broken", "undo:a"}, r.calls)
}

func TestRun_CompensatesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var undone error
	err := Run(ctx, quietLogger(),
		Step{
			Name: "write",
			Do:   func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				undone = ctx.Err()
				return nil
			},
		},
		Step{
			Name: "interrupted",
			Do: func(ctx context.Context) error {
				cancel()
				return ctx.Err()
			},
		},
	)

	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, undone)
}
