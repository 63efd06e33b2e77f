package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPlugin struct {
	name    string
	deps    []string
	optDeps []string
}

func (tp *testPlugin) Name() string {
	return tp.name
}

func (tp *testPlugin) Deps() []string {
	return tp.deps
}

func (tp *testPlugin) OptDeps() []string {
	return tp.optDeps
}

func (tp *testPlugin) Init(ctx context.Context, r *Registry) error {
	initOrder = append(initOrder, tp.name)
	return nil
}

var initOrder []string

func TestInitOrder(t *testing.T) {
	initOrder = []string{}
	r := &Registry{}

	r.Register(&testPlugin{name: "A", deps: []string{"B", "C"}})
	r.Register(&testPlugin{name: "B", deps: []string{"C", "D"}})
	r.Register(&testPlugin{name: "C", deps: []string{"D"}})
	r.Register(&testPlugin{name: "D"})

	err := r.Init(t.Context())
	require.NoError(t, err, "initialization failed")

	assert.Equal(t, []string{"D", "C", "B", "A"}, initOrder)
}

func TestOptionalDeps(t *testing.T) {
	initOrder = []string{}
	r := &Registry{}

	// B is optional for A and registered; X is optional and absent.
	r.Register(&testPlugin{name: "A", optDeps: []string{"B", "X"}})
	r.Register(&testPlugin{name: "B"})

	err := r.Init(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, initOrder)
}

func TestCycleDetection(t *testing.T) {
	initOrder = []string{}
	r := &Registry{}

	// A -> B -> C -> A
	r.Register(&testPlugin{name: "A", deps: []string{"B"}})
	r.Register(&testPlugin{name: "B", deps: []string{"C"}})
	r.Register(&testPlugin{name: "C", deps: []string{"A"}})

	err := r.Init(t.Context())
	assert.EqualError(t, err, "plugin: dependency cycle detected involving 'A'")
}

func TestMissingDependency(t *testing.T) {
	initOrder = []string{}
	r := &Registry{}

	r.Register(&testPlugin{name: "A", deps: []string{"B"}})
	r.Register(&testPlugin{name: "B", deps: []string{"XX"}})

	err := r.Init(t.Context())
	assert.EqualError(t, err, "plugin: missing dependency, 'XX' not registered")
}

func TestGet(t *testing.T) {
	r := &Registry{}
	p := &testPlugin{name: "A"}
	r.Register(p)

	assert.Equal(t, p, r.Get("A"))
	assert.Nil(t, r.Get("unknown"))
}
