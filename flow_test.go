package flowcompose

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterUnits returns a cached per-call state cell and a counter that
// increments it.
func counterUnits(opts ...FunctionOption) (*Function[*int], *Function[int]) {
	state := MustDefine("state", nil, func(in *Input) (*int, error) {
		return new(int), nil
	}, Cached())

	counter := MustDefine("counter", []Param{Slot("state")}, func(in *Input) (int, error) {
		n, err := Pull[*int](in, "state")
		if err != nil {
			return 0, err
		}
		*n++
		return *n, nil
	}, opts...)

	return state, counter
}

func countTwice(t *testing.T, opts ...FunctionOption) *Flow[[]int] {
	t.Helper()

	state, counter := counterUnits(opts...)
	flow, err := Compose("count_twice",
		[]Param{Slot("counter")},
		Config{Bind("state", state), Bind("counter", counter)},
		func(in *Input) ([]int, error) {
			first, err := Pull[int](in, "counter")
			if err != nil {
				return nil, err
			}
			second, err := Pull[int](in, "counter")
			if err != nil {
				return nil, err
			}
			return []int{first, second}, nil
		},
	)
	require.NoError(t, err)
	return flow
}

func TestCachedFunctionRunsOncePerCall(t *testing.T) {
	flow := countTwice(t, Cached())

	got, err := flow.Call()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, got)
}

func TestUncachedFunctionRunsEveryTime(t *testing.T) {
	flow := countTwice(t)

	got, err := flow.Call()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

func TestCallsDoNotShareCacheState(t *testing.T) {
	flow := countTwice(t, Cached())

	for i := 0; i < 3; i++ {
		got, err := flow.Call()
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1}, got, "call %d", i)
	}
}

func TestComposeRejectsPlainAfterSlot(t *testing.T) {
	body := func(in *Input) (int, error) { return 0, nil }

	cases := [][]Param{
		{Slot("db"), Plain("id")},
		{Plain("a"), ArgSlot("limit"), Plain("b")},
		{Slot("db"), Slot("cache"), PlainOf[int]("id")},
	}
	for i, params := range cases {
		_, err := Compose(fmt.Sprintf("flow_%d", i), params, nil, body)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrComposition)

		_, err = Define(fmt.Sprintf("fn_%d", i), params, body)
		assert.ErrorIs(t, err, ErrComposition)
	}
}

func TestComposeRejectsConfigCollidingWithPlainParam(t *testing.T) {
	_, err := Compose("flow",
		[]Param{Plain("id"), Slot("db")},
		Config{Bind("id", NewArgument(1))},
		func(in *Input) (int, error) { return 0, nil },
	)

	var ce *CompositionError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "`id`")
}

func TestComposeRejectsDefaultAndConfigForSameSlot(t *testing.T) {
	db := MustDefine("db", nil, func(in *Input) (string, error) { return "db", nil })

	_, err := Compose("flow",
		[]Param{Slot("db").WithDefault(db)},
		Config{Bind("db", db)},
		func(in *Input) (int, error) { return 0, nil },
	)
	assert.ErrorIs(t, err, ErrComposition)
}

func TestComposeRejectsDuplicateConfigNames(t *testing.T) {
	_, err := Compose("flow", nil,
		Config{Bind("limit", NewArgument(1)), Bind("limit", NewArgument(2))},
		func(in *Input) (int, error) { return 0, nil },
	)
	assert.ErrorIs(t, err, ErrComposition)
}

func TestFlowReturnsResultWithoutMutatingInputs(t *testing.T) {
	sum := MustDefine("sum", []Param{PlainOf[[]int]("xs")}, func(in *Input) (int, error) {
		xs, err := Value[[]int](in, "xs")
		if err != nil {
			return 0, err
		}
		total := 0
		for _, x := range xs {
			total += x
		}
		return total, nil
	})

	flow := MustCompose("total",
		[]Param{PlainOf[[]int]("xs"), Slot("sum")},
		Config{Bind("sum", sum)},
		func(in *Input) (int, error) {
			xs, _ := Value[[]int](in, "xs")
			return Pull[int](in, "sum", xs)
		},
	)

	input := []int{3, 1, 2}
	got, err := flow.Call(input)
	require.NoError(t, err)
	assert.Equal(t, 6, got)
	assert.Equal(t, []int{3, 1, 2}, input)
}

func TestMissingSlotIsReported(t *testing.T) {
	flow := MustCompose("needs_db",
		[]Param{Slot("db")},
		nil,
		func(in *Input) (int, error) { return 0, nil },
	)

	_, err := flow.Call()
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"db"}, re.Missing)
	assert.Contains(t, err.Error(), "`db` flow function is required by the flow `needs_db`")
}

func TestAllMissingSlotsAreReportedTogether(t *testing.T) {
	flow := MustCompose("needs_two",
		[]Param{Slot("db"), Slot("cache")},
		nil,
		func(in *Input) (int, error) { return 0, nil },
	)

	_, err := flow.Call()
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"db", "cache"}, re.Missing)
	assert.Contains(t, err.Error(), "`db`, `cache` flow functions are required")
	assert.Contains(t, err.Error(), "are missing")
}

func TestSynthesizedArgumentParameter(t *testing.T) {
	page := MustDefine("page", []Param{Slot("limit")}, func(in *Input) (int, error) {
		limit, err := Pull[int](in, "limit")
		if err != nil {
			return 0, err
		}
		return limit * 2, nil
	})

	flow := MustCompose("list",
		[]Param{Plain("query"), Slot("page")},
		Config{Bind("page", page), Bind("limit", NewArgument[int]())},
		func(in *Input) (string, error) {
			_, hasLimit := in.Slot("limit")
			require.False(t, hasLimit, "the target must not receive the argument directly")

			n, err := Pull[int](in, "page")
			if err != nil {
				return "", err
			}
			q, _ := in.Arg("query")
			return fmt.Sprintf("%v:%d", q, n), nil
		},
	)

	params := flow.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "limit", params[0].Name)
	assert.Equal(t, KindArgument, params[0].Kind)
	assert.Equal(t, "int", params[0].Type.String())
	assert.Equal(t, "query", params[1].Name)

	got, err := flow.Invoke([]any{"books"}, Values{"limit": 10})
	require.NoError(t, err)
	assert.Equal(t, "books:20", got)

	_, err = flow.Call("books")
	assert.ErrorIs(t, err, ErrResolution)
	assert.ErrorIs(t, err, ErrTypeConstraint)

	_, err = flow.Invoke([]any{"books"}, Values{"limit": "ten"})
	assert.ErrorIs(t, err, ErrTypeConstraint)
}

func TestSynthesizedArgumentWithValueIsOptional(t *testing.T) {
	flow := MustCompose("limited",
		[]Param{Plain("q"), Slot("size")},
		Config{
			Bind("size", MustDefine("size", []Param{Slot("limit"), Slot("offset")}, func(in *Input) (int, error) {
				limit, err := Pull[int](in, "limit")
				if err != nil {
					return 0, err
				}
				offset, err := Pull[int](in, "offset")
				return limit + offset, err
			})),
			Bind("limit", NewArgument(25)),
			Bind("offset", NewArgument[int]()),
		},
		func(in *Input) (int, error) { return Pull[int](in, "size") },
	)

	params := flow.Params()
	require.Len(t, params, 3)
	assert.Equal(t, []string{"offset", "q", "limit"}, []string{params[0].Name, params[1].Name, params[2].Name})
	assert.True(t, params[2].HasDefault())

	got, err := flow.Invoke([]any{"x"}, Values{"offset": 5})
	require.NoError(t, err)
	assert.Equal(t, 30, got)
}

func TestSlotPrecedence(t *testing.T) {
	constant := func(name, v string) *Function[string] {
		return MustDefine(name, nil, func(in *Input) (string, error) { return v, nil })
	}

	flow := MustCompose("pick",
		[]Param{Slot("source"), Slot("fallback").WithDefault(constant("declared", "default"))},
		Config{Bind("source", constant("configured", "config"))},
		func(in *Input) (string, error) {
			s, err := Pull[string](in, "source")
			if err != nil {
				return "", err
			}
			f, err := Pull[string](in, "fallback")
			return s + "/" + f, err
		},
	)

	got, err := flow.Call()
	require.NoError(t, err)
	assert.Equal(t, "config/default", got)

	got, err = flow.Invoke(nil, Values{
		"source":   constant("override_source", "override"),
		"fallback": constant("override_fallback", "override"),
	})
	require.NoError(t, err)
	assert.Equal(t, "override/override", got)

	_, err = flow.Invoke(nil, Values{"source": "raw"})
	assert.ErrorIs(t, err, ErrTypeConstraint)
}

func TestOverrideReachesTransitiveDependents(t *testing.T) {
	db := MustDefine("db", nil, func(in *Input) (string, error) { return "postgres", nil })
	repo := MustDefine("repo", []Param{Slot("db")}, func(in *Input) (string, error) {
		d, err := Pull[string](in, "db")
		return "repo(" + d + ")", err
	})

	flow := MustCompose("service",
		[]Param{Slot("repo")},
		Config{Bind("db", db), Bind("repo", repo)},
		func(in *Input) (string, error) { return Pull[string](in, "repo") },
	)

	got, err := flow.Call()
	require.NoError(t, err)
	assert.Equal(t, "repo(postgres)", got)

	fake := MustDefine("fake_db", nil, func(in *Input) (string, error) { return "memory", nil })
	got, err = flow.Invoke(nil, Values{"db": fake})
	require.NoError(t, err)
	assert.Equal(t, "repo(memory)", got)

	_, err = flow.Invoke(nil, Values{"db": "memory"})
	assert.ErrorIs(t, err, ErrTypeConstraint)
}

func TestArgumentSlotAcceptsRawValue(t *testing.T) {
	flow := MustCompose("greet",
		[]Param{ArgSlot("name").WithDefault(NewArgument("world"))},
		nil,
		func(in *Input) (string, error) {
			name, err := Pull[string](in, "name")
			return "hello " + name, err
		},
	)

	params := flow.Params()
	require.Len(t, params, 1)
	assert.Equal(t, KindArgument, params[0].Kind)

	got, err := flow.Call()
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	got, err = flow.Invoke(nil, Values{"name": "gopher"})
	require.NoError(t, err)
	assert.Equal(t, "hello gopher", got)

	got, err = flow.Call()
	require.NoError(t, err)
	assert.Equal(t, "hello world", got, "defaults are templates and stay untouched")

	_, err = flow.Invoke(nil, Values{"name": 42})
	assert.ErrorIs(t, err, ErrTypeConstraint)
}

func TestConcurrentCallsSeeOwnArgumentValues(t *testing.T) {
	limit := NewArgument[int]()
	double := MustDefine("double", []Param{Slot("limit")}, func(in *Input) (int, error) {
		v, err := Pull[int](in, "limit")
		return v * 2, err
	}, Cached())

	flow := MustCompose("doubled",
		[]Param{Slot("double")},
		Config{Bind("double", double), Bind("limit", limit)},
		func(in *Input) (int, error) { return Pull[int](in, "double") },
	)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := flow.Invoke(nil, Values{"limit": i})
			if err != nil {
				errs <- err
				return
			}
			if got != i*2 {
				errs <- fmt.Errorf("call with %d observed %d", i, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.False(t, limit.HasValue(), "the configured template must not be written by calls")
}

func TestBodyErrorIsReturnedUnmodified(t *testing.T) {
	boom := errors.New("boom")
	failing := MustDefine("failing", nil, func(in *Input) (int, error) { return 0, boom })

	flow := MustCompose("fails",
		[]Param{Slot("failing")},
		Config{Bind("failing", failing)},
		func(in *Input) (int, error) { return Pull[int](in, "failing") },
	)

	_, err := flow.Call()
	assert.Same(t, boom, err)
}

func TestFlowRecoversPanics(t *testing.T) {
	flow := MustCompose("panics", nil, nil, func(in *Input) (int, error) {
		panic("test panic")
	})

	_, err := flow.Call()
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "test panic", pe.Recovered)
	assert.NotEmpty(t, pe.StackTrace)
}

func TestInvokeValidatesCallShape(t *testing.T) {
	flow := MustCompose("shape",
		[]Param{PlainOf[int]("a"), Plain("b")},
		nil,
		func(in *Input) (int, error) { return 0, nil },
	)

	_, err := flow.Call(1, 2, 3)
	assert.ErrorIs(t, err, ErrTypeConstraint)

	_, err = flow.Call(1)
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"b"}, re.Missing)
	assert.Contains(t, err.Error(), "`b` argument is required")

	_, err = flow.Call("one", 2)
	assert.ErrorIs(t, err, ErrTypeConstraint)

	_, err = flow.Invoke([]any{1}, Values{"a": 1, "b": 2})
	assert.ErrorIs(t, err, ErrTypeConstraint)

	_, err = flow.Invoke([]any{1, 2}, Values{"nope": 1})
	require.ErrorIs(t, err, ErrTypeConstraint)
	assert.Contains(t, err.Error(), "`nope`")

	got, err := flow.Invoke(nil, Values{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestMemoizedRecursionThroughOwnSlot(t *testing.T) {
	calls := 0
	fib := MustDefine("fib", []Param{PlainOf[int]("n"), Slot("fib")}, func(in *Input) (int, error) {
		calls++
		n, err := Value[int](in, "n")
		if err != nil {
			return 0, err
		}
		if n < 2 {
			return n, nil
		}
		a, err := Pull[int](in, "fib", n-1)
		if err != nil {
			return 0, err
		}
		b, err := Pull[int](in, "fib", n-2)
		return a + b, err
	}, Cached())

	flow := MustCompose("fibonacci",
		[]Param{PlainOf[int]("n"), Slot("fib")},
		Config{Bind("fib", fib)},
		func(in *Input) (int, error) {
			n, _ := Value[int](in, "n")
			return Pull[int](in, "fib", n)
		},
	)

	got, err := flow.Call(20)
	require.NoError(t, err)
	assert.Equal(t, 6765, got)
	assert.Equal(t, 21, calls)
}

func TestInputExposesContext(t *testing.T) {
	flow := MustCompose("ctx",
		[]Param{Slot("limit")},
		Config{Bind("limit", NewArgument(3))},
		func(in *Input) ([]string, error) {
			c := in.Context()
			assert.Equal(t, "ctx", c.Flow())
			assert.NotEmpty(t, c.ID())
			assert.Equal(t, []string{"limit"}, in.SlotNames())
			return c.Names(), nil
		},
	)

	got, err := flow.Call()
	require.NoError(t, err)
	assert.Equal(t, []string{"limit"}, got)
}
