package action

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"rehearse/internal/failure"
	"rehearse/internal/poll"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

const defaultIndexName = "i"

// LoopCondition decides a loop's fate from the current index. It is the
// programmatic alternative to a condition expression.
type LoopCondition func(index int, tc *testcontext.Context) (bool, error)

// loop holds what iterate and the repeat containers share.
type loop struct {
	// Condition is a boolean expression; occurrences of the index name are
	// replaced by the current index before evaluation, e.g. "i lt 5".
	Condition     string
	ConditionFunc LoopCondition
	// Index names the index variable, "i" by default.
	Index string
	// Start is the first index value.
	Start int
	// Step is added to the index after each pass, 1 by default.
	Step int

	pattern atomic.Pointer[indexPattern]
}

// indexPattern matches the index name as a whole word in a condition.
type indexPattern struct {
	name string
	re   *regexp.Regexp
}

// indexRegexp returns the compiled pattern for the current index name,
// compiling it on first use and again only if Index changes.
func (l *loop) indexRegexp() *regexp.Regexp {
	name := l.indexName()
	if p := l.pattern.Load(); p != nil && p.name == name {
		return p.re
	}
	p := &indexPattern{name: name, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)}
	l.pattern.Store(p)
	return p.re
}

func (l *loop) indexName() string {
	if l.Index == "" {
		return defaultIndexName
	}
	return l.Index
}

func (l *loop) step() int {
	if l.Step == 0 {
		return 1
	}
	return l.Step
}

func (l *loop) hasCondition() bool {
	return l.Condition != "" || l.ConditionFunc != nil
}

func (l *loop) check(index int, tc *testcontext.Context) (bool, error) {
	if l.ConditionFunc != nil {
		return l.ConditionFunc(index, tc)
	}
	resolved, err := tc.ReplaceDynamicContent(l.Condition)
	if err != nil {
		return false, failure.Configuration("invalid condition '%s': %v", l.Condition, err)
	}
	ok, err := tc.EvaluateCondition(l.indexRegexp().ReplaceAllString(resolved, strconv.Itoa(index)))
	if err != nil {
		return false, failure.Configuration("%v", err)
	}
	return ok, nil
}

// Iterate runs its children while the condition holds. The condition is
// checked before every pass, so zero passes are possible.
type Iterate struct {
	Meta
	Children
	loop
}

// NewIterate creates an iterate container over condition.
func NewIterate(condition string, actions ...Action) *Iterate {
	return &Iterate{Children: Children{List: actions}, loop: loop{Condition: condition}}
}

func (a *Iterate) Name() string { return a.nameOr("iterate") }

func (a *Iterate) Execute(ctx context.Context, tc *testcontext.Context) error {
	if !a.hasCondition() {
		return failure.Wrap(a.Name(), failure.Configuration("iterate requires a condition"))
	}

	for index := a.Start; ; index += a.step() {
		tc.SetVariable(a.indexName(), index)
		ok, err := a.check(index, tc)
		if err != nil {
			return failure.Wrap(a.Name(), err)
		}
		if !ok {
			return nil
		}
		if err := runAll(ctx, tc, a.List); err != nil {
			return err
		}
	}
}

// RepeatUntilTrue runs its children, advances the index and stops once the
// condition holds. The children always run at least once. The index starts
// at 1 unless Start is set.
type RepeatUntilTrue struct {
	Meta
	Children
	loop
}

// NewRepeatUntilTrue creates a repeat container stopping at condition.
func NewRepeatUntilTrue(condition string, actions ...Action) *RepeatUntilTrue {
	return &RepeatUntilTrue{Children: Children{List: actions}, loop: loop{Condition: condition, Start: 1}}
}

func (a *RepeatUntilTrue) Name() string { return a.nameOr("repeat") }

func (a *RepeatUntilTrue) Execute(ctx context.Context, tc *testcontext.Context) error {
	if !a.hasCondition() {
		return failure.Wrap(a.Name(), failure.Configuration("repeat requires a condition"))
	}

	for index := a.Start; ; {
		tc.SetVariable(a.indexName(), index)
		if err := runAll(ctx, tc, a.List); err != nil {
			return err
		}
		index += a.step()
		tc.SetVariable(a.indexName(), index)

		done, err := a.check(index, tc)
		if err != nil {
			return failure.Wrap(a.Name(), err)
		}
		if done {
			return nil
		}
	}
}

// RepeatOnError reruns its children until one pass succeeds. It gives up when
// MaxAttempts passes have failed or the condition holds after a failed pass,
// and then reports the last failure. The index starts at 1 unless Start is
// set.
//
// Unlike Iterate, the condition is evaluated after a pass has failed, with
// the index of that pass. "i = 2" therefore allows two attempts and "i = 1"
// one; the condition never prevents the first attempt.
type RepeatOnError struct {
	Meta
	Children
	loop
	MaxAttempts int
	// AutoSleep pauses between a failed pass and the next attempt.
	AutoSleep time.Duration
}

// NewRepeatOnError creates a repeat-on-error container giving up after
// maxAttempts failed passes.
func NewRepeatOnError(maxAttempts int, actions ...Action) *RepeatOnError {
	return &RepeatOnError{Children: Children{List: actions}, loop: loop{Start: 1}, MaxAttempts: maxAttempts}
}

func (a *RepeatOnError) Name() string { return a.nameOr("repeat-on-error") }

func (a *RepeatOnError) Execute(ctx context.Context, tc *testcontext.Context) error {
	if a.MaxAttempts <= 0 && !a.hasCondition() {
		return failure.Wrap(a.Name(), failure.Configuration("repeat-on-error requires max attempts or a condition"))
	}

	index := a.Start
	for attempt := 1; ; attempt++ {
		tc.SetVariable(a.indexName(), index)
		last := runAll(ctx, tc, a.List)
		if last == nil {
			return nil
		}

		giveUp := a.MaxAttempts > 0 && attempt >= a.MaxAttempts
		if !giveUp && a.hasCondition() {
			done, err := a.check(index, tc)
			if err != nil {
				return failure.Wrap(a.Name(), err)
			}
			giveUp = done
		}
		if giveUp {
			return &failure.Error{
				Kind:    failure.KindOf(last),
				Action:  a.Name(),
				Message: fmt.Sprintf("still failing after %d attempts", attempt),
				Cause:   last,
			}
		}

		logging.Debug("Repeat", "Attempt %d of %s failed, retrying: %v", attempt, a.Name(), last)
		if err := poll.Sleep(ctx, tc.Clock(), a.AutoSleep); err != nil {
			return failure.Wrap(a.Name(), checkContext(ctx))
		}
		index += a.step()
	}
}
