package action

import (
	"context"

	"rehearse/internal/failure"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

// Sequence runs its children in order; the first failure aborts the rest.
type Sequence struct {
	Meta
	Children
}

// NewSequence creates a sequence of actions.
func NewSequence(actions ...Action) *Sequence {
	return &Sequence{Children: Children{List: actions}}
}

func (a *Sequence) Name() string { return a.nameOr("sequence") }

func (a *Sequence) Execute(ctx context.Context, tc *testcontext.Context) error {
	return runAll(ctx, tc, a.List)
}

// Catch runs its children one by one. A failing child whose kind matches
// Kind (any kind when empty) is logged and skipped; other failures propagate.
type Catch struct {
	Meta
	Children
	Kind failure.Kind
}

func (a *Catch) Name() string { return a.nameOr("catch") }

func (a *Catch) Execute(ctx context.Context, tc *testcontext.Context) error {
	for _, child := range a.List {
		if err := checkContext(ctx); err != nil {
			return err
		}
		err := execute(ctx, tc, child)
		if err == nil {
			continue
		}
		if a.Kind != "" && !failure.Is(err, a.Kind) {
			return err
		}
		logging.Info("Catch", "Caught %s failure: %v", failure.KindOf(err), err)
	}
	return nil
}

// Assert runs one action and expects it to fail with Kind (any kind when
// empty) and, when Message is set, a root failure message equal to it or
// matching it as a validation matcher expression.
type Assert struct {
	Meta
	Action  Action
	Kind    failure.Kind
	Message string
}

func (a *Assert) Name() string { return a.nameOr("assert") }

func (a *Assert) Execute(ctx context.Context, tc *testcontext.Context) error {
	if a.Action == nil {
		return failure.Wrap(a.Name(), failure.Configuration("no action to assert"))
	}

	err := execute(ctx, tc, a.Action)
	if err == nil {
		expected := a.Kind
		if expected == "" {
			expected = "any"
		}
		return failure.Wrap(a.Name(), failure.Validation("missing asserted failure of kind '%s': action '%s' succeeded", expected, a.Action.Name()))
	}

	if a.Kind != "" && !failure.Is(err, a.Kind) {
		return &failure.Error{
			Kind:    failure.KindValidation,
			Action:  a.Name(),
			Message: "caught failure of kind '" + string(failure.KindOf(err)) + "' but expected '" + string(a.Kind) + "'",
			Cause:   err,
		}
	}

	if a.Message != "" {
		expected, rerr := tc.ReplaceDynamicContent(a.Message)
		if rerr != nil {
			return failure.Wrap(a.Name(), failure.Configuration("%v", rerr))
		}
		actual := failure.RootMessage(err)
		ok, merr := tc.Matchers().Match(actual, expected)
		if merr != nil {
			return failure.Wrap(a.Name(), failure.Configuration("%v", merr))
		}
		if !ok {
			return failure.Wrap(a.Name(), failure.Validation("failure message '%s' does not match expected '%s'", actual, expected))
		}
	}

	logging.Debug("Assert", "Asserted failure of %s: %v", a.Action.Name(), err)
	return nil
}
