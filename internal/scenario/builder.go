package scenario

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rehearse/internal/action"
	"rehearse/internal/config"
	"rehearse/internal/failure"
	"rehearse/internal/validation"
)

// buildFunc builds the action of one kind from the value node of its
// single-key map.
type buildFunc func(b *builder, node *yaml.Node) (action.Action, error)

var builders map[string]buildFunc

func init() {
	builders = map[string]buildFunc{
		"echo":             buildEcho,
		"sleep":            buildSleep,
		"fail":             buildFail,
		"create-variables": buildCreateVariables,
		"trace-variables":  buildTraceVariables,
		"stop-timer":       buildStopTimer,
		"purge-queues":     buildPurgeQueues,
		"send":             buildSend,
		"receive":          buildReceive,
		"sequence":         buildSequence,
		"parallel":         buildParallel,
		"async":            buildAsync,
		"iterate":          buildIterate,
		"repeat":           buildRepeat,
		"repeat-on-error":  buildRepeatOnError,
		"timer":            buildTimer,
		"catch":            buildCatch,
		"assert":           buildAssert,
		"wait":             buildWait,
	}
}

// Kinds returns the action kinds a scenario may use.
func Kinds() []string {
	kinds := make([]string, 0, len(builders))
	for k := range builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// builder turns action nodes into actions and records every problem found,
// so one pass over a file reports all of them.
type builder struct {
	path string
	errs *config.ConfigurationErrorCollection
}

func (b *builder) errorf(line int, category, format string, args ...interface{}) {
	err := config.NewConfigurationError(b.path, baseName(b.path), "scenario", category, "validation", fmt.Sprintf(format, args...))
	err.LineNumber = line
	b.errs.Add(err)
}

func (b *builder) actions(nodes []yaml.Node) []action.Action {
	out := make([]action.Action, 0, len(nodes))
	for i := range nodes {
		if a := b.action(&nodes[i]); a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (b *builder) action(node *yaml.Node) action.Action {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		b.errorf(node.Line, "actions", "an action must be a map with exactly one key naming its kind")
		return nil
	}
	kind := node.Content[0].Value
	build, ok := builders[kind]
	if !ok {
		b.errorf(node.Line, "actions", "unknown action kind '%s' (known kinds: %s)", kind, strings.Join(Kinds(), ", "))
		return nil
	}
	a, err := build(b, node.Content[1])
	if err != nil {
		b.errorf(node.Content[1].Line, "actions", "%s: %v", kind, err)
		return nil
	}
	return a
}

// single builds the one action of an "action:" field.
func (b *builder) single(node *yaml.Node) (action.Action, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("an action is required")
	}
	a := b.action(node)
	if a == nil {
		return nil, fmt.Errorf("invalid nested action")
	}
	return a, nil
}

func buildEcho(b *builder, node *yaml.Node) (action.Action, error) {
	if node.Kind == yaml.ScalarNode {
		return &action.Echo{Message: node.Value}, nil
	}
	var spec textSpec
	if err := decode(node, &spec); err != nil {
		return nil, err
	}
	return &action.Echo{Meta: spec.meta(), Message: spec.Message}, nil
}

func buildSleep(b *builder, node *yaml.Node) (action.Action, error) {
	expr := node.Value
	var meta action.Meta
	if node.Kind != yaml.ScalarNode {
		var spec sleepSpec
		if err := decode(node, &spec); err != nil {
			return nil, err
		}
		expr, meta = spec.Duration, spec.meta()
	}
	if !strings.Contains(expr, "${") && !strings.Contains(expr, ":") {
		d, err := action.ParseDuration(expr)
		if err != nil {
			return nil, err
		}
		return &action.Sleep{Meta: meta, Duration: d}, nil
	}
	return &action.Sleep{Meta: meta, Expression: expr}, nil
}

func buildFail(b *builder, node *yaml.Node) (action.Action, error) {
	if node.Kind == yaml.ScalarNode {
		return &action.Fail{Message: node.Value}, nil
	}
	var spec textSpec
	if err := decode(node, &spec); err != nil {
		return nil, err
	}
	return &action.Fail{Meta: spec.meta(), Message: spec.Message}, nil
}

func buildCreateVariables(b *builder, node *yaml.Node) (action.Action, error) {
	vars, err := variables(node)
	if err != nil {
		return nil, err
	}
	return &action.CreateVariables{Variables: vars}, nil
}

// variables reads a mapping in document order.
func variables(node *yaml.Node) ([]action.Variable, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("variables must be a mapping of name to value")
	}
	vars := make([]action.Variable, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value interface{}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, fmt.Errorf("variable '%s': %w", node.Content[i].Value, err)
		}
		vars = append(vars, action.Variable{Name: node.Content[i].Value, Value: value})
	}
	return vars, nil
}

func buildTraceVariables(b *builder, node *yaml.Node) (action.Action, error) {
	var names []string
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != "" && node.Tag != "!!null" {
			names = []string{node.Value}
		}
	case yaml.SequenceNode:
		if err := node.Decode(&names); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("expected a list of variable names")
	}
	return &action.TraceVariables{Names: names}, nil
}

func buildStopTimer(b *builder, node *yaml.Node) (action.Action, error) {
	if node.Kind != yaml.ScalarNode || node.Value == "" {
		return nil, fmt.Errorf("expected a timer id")
	}
	return &action.StopTimer{TimerID: node.Value}, nil
}

func buildPurgeQueues(b *builder, node *yaml.Node) (action.Action, error) {
	var spec purgeSpec
	if node.Kind == yaml.SequenceNode {
		if err := node.Decode(&spec.Queues); err != nil {
			return nil, err
		}
	} else if err := decode(node, &spec); err != nil {
		return nil, err
	}
	if len(spec.Queues) == 0 {
		return nil, fmt.Errorf("at least one queue is required")
	}
	return &action.PurgeQueues{Meta: spec.meta(), Queues: spec.Queues, Selector: spec.Selector}, nil
}

func buildSend(b *builder, node *yaml.Node) (action.Action, error) {
	var spec sendSpec
	if err := decode(node, &spec); err != nil {
		return nil, err
	}
	if err := config.ValidateRequired("endpoint", spec.Endpoint, "send"); err != nil {
		return nil, err
	}
	return &action.Send{
		Meta:        spec.meta(),
		Endpoint:    spec.Endpoint,
		Message:     spec.Message.template(),
		MessageName: spec.MessageName,
		Fork:        spec.Fork,
	}, nil
}

func buildReceive(b *builder, node *yaml.Node) (action.Action, error) {
	var spec receiveSpec
	if err := decode(node, &spec); err != nil {
		return nil, err
	}
	if err := config.ValidateRequired("endpoint", spec.Endpoint, "receive"); err != nil {
		return nil, err
	}

	a := &action.Receive{
		Meta:        spec.meta(),
		Endpoint:    spec.Endpoint,
		Timeout:     time.Duration(spec.Timeout),
		MessageName: spec.MessageName,
		Extract: validation.Extractor{
			Headers:   spec.Extract.Headers,
			JSONPaths: spec.Extract.JSONPath,
			Payload:   spec.Extract.Payload,
		},
	}

	switch spec.Selector.Kind {
	case 0:
	case yaml.ScalarNode:
		a.Selector = spec.Selector.Value
	case yaml.MappingNode:
		if err := spec.Selector.Decode(&a.SelectorMap); err != nil {
			return nil, fmt.Errorf("selector: %w", err)
		}
	default:
		return nil, fmt.Errorf("selector must be an expression or a mapping")
	}

	if spec.Message != nil {
		control := spec.Message.template()
		a.Control = &control
	}

	v := spec.Validate
	if v.Headers != nil {
		a.Validation = append(a.Validation, validation.HeaderContext{IgnoreCase: v.Headers.IgnoreCase})
	}
	if v.JSON != nil {
		strict := true
		if v.JSON.Strict != nil {
			strict = *v.JSON.Strict
		}
		a.Validation = append(a.Validation, validation.JSONContext{Strict: strict, Ignore: v.JSON.Ignore})
	}
	if len(v.JSONPath) > 0 {
		a.Validation = append(a.Validation, validation.JSONPathContext{Expressions: v.JSONPath})
	}
	return a, nil
}

// container decodes either a plain list of actions or a mapping into spec.
func (b *builder) container(node *yaml.Node, spec interface{}, c *containerSpec) ([]action.Action, error) {
	if node.Kind == yaml.SequenceNode {
		if err := node.Decode(&c.Actions); err != nil {
			return nil, err
		}
	} else if err := decode(node, spec); err != nil {
		return nil, err
	}
	return b.actions(c.Actions), nil
}

func buildSequence(b *builder, node *yaml.Node) (action.Action, error) {
	var spec containerSpec
	children, err := b.container(node, &spec, &spec)
	if err != nil {
		return nil, err
	}
	return &action.Sequence{Meta: spec.meta(), Children: action.Children{List: children}}, nil
}

func buildParallel(b *builder, node *yaml.Node) (action.Action, error) {
	var spec parallelSpec
	children, err := b.container(node, &spec, &spec.containerSpec)
	if err != nil {
		return nil, err
	}
	if spec.Limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative")
	}
	return &action.Parallel{Meta: spec.meta(), Children: action.Children{List: children}, Limit: spec.Limit}, nil
}

func buildAsync(b *builder, node *yaml.Node) (action.Action, error) {
	var spec asyncSpec
	children, err := b.container(node, &spec, &spec.containerSpec)
	if err != nil {
		return nil, err
	}
	return &action.Async{
		Meta:     spec.meta(),
		Children: action.Children{List: children},
		Success:  b.actions(spec.Success),
		Error:    b.actions(spec.Error),
	}, nil
}

func (b *builder) loop(node *yaml.Node) (*loopSpec, []action.Action, error) {
	var spec loopSpec
	if err := decode(node, &spec); err != nil {
		return nil, nil, err
	}
	return &spec, b.actions(spec.Actions), nil
}

func buildIterate(b *builder, node *yaml.Node) (action.Action, error) {
	spec, children, err := b.loop(node)
	if err != nil {
		return nil, err
	}
	if spec.Condition == "" {
		return nil, fmt.Errorf("condition is required")
	}
	a := action.NewIterate(spec.Condition, children...)
	a.Meta = spec.meta()
	a.Index, a.Step = spec.Index, spec.Step
	if spec.Start != nil {
		a.Start = *spec.Start
	}
	return a, nil
}

func buildRepeat(b *builder, node *yaml.Node) (action.Action, error) {
	spec, children, err := b.loop(node)
	if err != nil {
		return nil, err
	}
	if spec.Condition == "" {
		return nil, fmt.Errorf("condition is required")
	}
	a := action.NewRepeatUntilTrue(spec.Condition, children...)
	a.Meta = spec.meta()
	a.Index, a.Step = spec.Index, spec.Step
	if spec.Start != nil {
		a.Start = *spec.Start
	}
	return a, nil
}

func buildRepeatOnError(b *builder, node *yaml.Node) (action.Action, error) {
	spec, children, err := b.loop(node)
	if err != nil {
		return nil, err
	}
	if spec.Condition == "" && spec.MaxAttempts <= 0 {
		return nil, fmt.Errorf("condition or maxAttempts is required")
	}
	a := action.NewRepeatOnError(spec.MaxAttempts, children...)
	a.Meta = spec.meta()
	a.AutoSleep = time.Duration(spec.AutoSleep)
	a.Condition, a.Index, a.Step = spec.Condition, spec.Index, spec.Step
	if spec.Start != nil {
		a.Start = *spec.Start
	}
	return a, nil
}

func buildTimer(b *builder, node *yaml.Node) (action.Action, error) {
	var spec timerSpec
	if err := decode(node, &spec); err != nil {
		return nil, err
	}
	if spec.RepeatCount < 0 {
		return nil, fmt.Errorf("repeatCount cannot be negative")
	}
	if !spec.Fork && spec.RepeatCount == 0 {
		return nil, fmt.Errorf("a timer that is not forked needs a repeatCount")
	}
	return &action.Timer{
		Meta:        spec.meta(),
		Children:    action.Children{List: b.actions(spec.Actions)},
		ID:          spec.ID,
		Interval:    time.Duration(spec.Interval),
		Delay:       time.Duration(spec.Delay),
		RepeatCount: spec.RepeatCount,
		Fork:        spec.Fork,
	}, nil
}

func buildCatch(b *builder, node *yaml.Node) (action.Action, error) {
	var spec catchSpec
	children, err := b.container(node, &spec, &spec.containerSpec)
	if err != nil {
		return nil, err
	}
	kind, err := failure.ParseKind(spec.Kind)
	if err != nil {
		return nil, err
	}
	return &action.Catch{Meta: spec.meta(), Children: action.Children{List: children}, Kind: kind}, nil
}

func buildAssert(b *builder, node *yaml.Node) (action.Action, error) {
	var spec assertSpec
	if err := decode(node, &spec); err != nil {
		return nil, err
	}
	kind, err := failure.ParseKind(spec.Kind)
	if err != nil {
		return nil, err
	}
	inner, err := b.single(&spec.Action)
	if err != nil {
		return nil, err
	}
	return &action.Assert{Meta: spec.meta(), Action: inner, Kind: kind, Message: spec.Message}, nil
}

func buildWait(b *builder, node *yaml.Node) (action.Action, error) {
	var spec waitSpec
	if err := decode(node, &spec); err != nil {
		return nil, err
	}

	var conditions []action.Condition
	if spec.Message != "" {
		conditions = append(conditions, &action.MessageCondition{MessageName: spec.Message})
	}
	if spec.File != "" {
		conditions = append(conditions, &action.FileCondition{Path: spec.File})
	}
	if spec.HTTP != nil {
		if err := config.ValidateRequired("http.url", spec.HTTP.URL, "wait"); err != nil {
			return nil, err
		}
		conditions = append(conditions, &action.HTTPCondition{
			URL:            spec.HTTP.URL,
			Method:         strings.ToUpper(spec.HTTP.Method),
			Status:         spec.HTTP.Status,
			RequestTimeout: time.Duration(spec.HTTP.Timeout),
		})
	}
	if spec.Action.Kind != 0 {
		inner, err := b.single(&spec.Action)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, &action.ActionCondition{Action: inner})
	}
	if len(conditions) != 1 {
		return nil, fmt.Errorf("exactly one of message, file, http or action is required")
	}

	return &action.Wait{
		Meta:      spec.meta(),
		Condition: conditions[0],
		Timeout:   time.Duration(spec.Timeout),
		Interval:  time.Duration(spec.Interval),
	}, nil
}
