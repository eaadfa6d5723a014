package scenario

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rehearse/internal/action"
)

// Duration is a YAML duration: "250ms", "2s" or a plain number of
// milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := action.ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// document is one test case as written in a scenario file.
type document struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Tags        []string    `yaml:"tags"`
	Timeout     Duration    `yaml:"timeout"`
	Skip        bool        `yaml:"skip"`
	Variables   yaml.Node   `yaml:"variables"`
	Actions     []yaml.Node `yaml:"actions"`
	Finally     []yaml.Node `yaml:"finally"`
}

type metaSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func (m metaSpec) meta() action.Meta {
	return action.Meta{Label: m.Name, Description: m.Description}
}

type containerSpec struct {
	metaSpec `yaml:",inline"`
	Actions  []yaml.Node `yaml:"actions"`
}

type messageSpec struct {
	Payload interface{}            `yaml:"payload"`
	Headers map[string]interface{} `yaml:"headers"`
}

func (m *messageSpec) template() action.MessageTemplate {
	return action.MessageTemplate{Payload: m.Payload, Headers: m.Headers}
}

type sendSpec struct {
	metaSpec    `yaml:",inline"`
	Endpoint    string      `yaml:"endpoint"`
	Message     messageSpec `yaml:"message"`
	MessageName string      `yaml:"messageName"`
	Fork        bool        `yaml:"fork"`
}

type receiveSpec struct {
	metaSpec    `yaml:",inline"`
	Endpoint    string       `yaml:"endpoint"`
	Selector    yaml.Node    `yaml:"selector"`
	Timeout     Duration     `yaml:"timeout"`
	Message     *messageSpec `yaml:"message"`
	Validate    validateSpec `yaml:"validate"`
	Extract     extractSpec  `yaml:"extract"`
	MessageName string       `yaml:"messageName"`
}

type validateSpec struct {
	Headers *struct {
		IgnoreCase bool `yaml:"ignoreCase"`
	} `yaml:"headers"`
	JSON *struct {
		Strict *bool    `yaml:"strict"`
		Ignore []string `yaml:"ignore"`
	} `yaml:"json"`
	JSONPath map[string]string `yaml:"jsonpath"`
}

type extractSpec struct {
	Headers  map[string]string `yaml:"headers"`
	JSONPath map[string]string `yaml:"jsonpath"`
	Payload  string            `yaml:"payload"`
}

type parallelSpec struct {
	containerSpec `yaml:",inline"`
	Limit         int `yaml:"limit"`
}

type asyncSpec struct {
	containerSpec `yaml:",inline"`
	Success       []yaml.Node `yaml:"success"`
	Error         []yaml.Node `yaml:"error"`
}

type loopSpec struct {
	containerSpec `yaml:",inline"`
	Condition     string   `yaml:"condition"`
	Index         string   `yaml:"index"`
	Start         *int     `yaml:"start"`
	Step          int      `yaml:"step"`
	MaxAttempts   int      `yaml:"maxAttempts"`
	AutoSleep     Duration `yaml:"autoSleep"`
}

type timerSpec struct {
	containerSpec `yaml:",inline"`
	ID            string   `yaml:"id"`
	Interval      Duration `yaml:"interval"`
	Delay         Duration `yaml:"delay"`
	RepeatCount   int      `yaml:"repeatCount"`
	Fork          bool     `yaml:"fork"`
}

type catchSpec struct {
	containerSpec `yaml:",inline"`
	Kind          string `yaml:"kind"`
}

type assertSpec struct {
	metaSpec `yaml:",inline"`
	Kind     string    `yaml:"kind"`
	Message  string    `yaml:"message"`
	Action   yaml.Node `yaml:"action"`
}

type waitSpec struct {
	metaSpec `yaml:",inline"`
	Timeout  Duration  `yaml:"timeout"`
	Interval Duration  `yaml:"interval"`
	Message  string    `yaml:"message"`
	File     string    `yaml:"file"`
	HTTP     *httpSpec `yaml:"http"`
	Action   yaml.Node `yaml:"action"`
}

type httpSpec struct {
	URL     string   `yaml:"url"`
	Method  string   `yaml:"method"`
	Status  int      `yaml:"status"`
	Timeout Duration `yaml:"timeout"`
}

type purgeSpec struct {
	metaSpec `yaml:",inline"`
	Queues   []string `yaml:"queues"`
	Selector string   `yaml:"selector"`
}

type textSpec struct {
	metaSpec `yaml:",inline"`
	Message  string `yaml:"message"`
}

type sleepSpec struct {
	metaSpec `yaml:",inline"`
	Duration string `yaml:"duration"`
}

// decode decodes a mapping node into spec and rejects keys spec does not
// declare.
func decode(node *yaml.Node, spec interface{}) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping")
	}
	allowed := yamlKeys(reflect.TypeOf(spec).Elem())
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !allowed[key.Value] {
			return fmt.Errorf("line %d: unknown field '%s'", key.Line, key.Value)
		}
	}
	return node.Decode(spec)
}

func yamlKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("yaml")
		name, opts, _ := strings.Cut(tag, ",")
		if opts == "inline" && f.Type.Kind() == reflect.Struct {
			for k := range yamlKeys(f.Type) {
				keys[k] = true
			}
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		keys[name] = true
	}
	return keys
}
