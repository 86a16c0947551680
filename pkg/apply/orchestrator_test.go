package apply

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackline-io/stackctl/pkg/graph"
	"github.com/stackline-io/stackctl/pkg/plan"
	"github.com/stackline-io/stackctl/pkg/remote"
	"github.com/stackline-io/stackctl/pkg/state"
	"github.com/stackline-io/stackctl/pkg/state/backend/local"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	seen  map[string]remote.Request

	// When started is set, every operation announces itself on it and then
	// waits for release before proceeding.
	started chan string
	release chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		fail: map[string]bool{},
		seen: map[string]remote.Request{},
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) gate(op string, req remote.Request) {
	if p.started == nil {
		return
	}
	p.started <- op + ":" + req.Resource
	<-p.release
}

func (p *fakeProvider) record(op string, req remote.Request) error {
	p.gate(op, req)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, op+":"+req.Resource)
	p.seen[req.Resource] = req
	if p.fail[req.Resource] {
		return fmt.Errorf("injected failure for %s", req.Resource)
	}
	return nil
}

func (p *fakeProvider) Create(ctx context.Context, req remote.Request) (*remote.Result, error) {
	if err := p.record("create", req); err != nil {
		return nil, err
	}
	outputs := map[string]interface{}{"id": req.Resource + "-id"}
	for k, v := range req.Properties {
		outputs[k] = v
	}
	return &remote.Result{Outputs: outputs}, nil
}

func (p *fakeProvider) Update(ctx context.Context, req remote.Request) (*remote.Result, error) {
	if err := p.record("update", req); err != nil {
		return nil, err
	}
	outputs := map[string]interface{}{"id": req.Resource + "-id"}
	for k, v := range req.Properties {
		outputs[k] = v
	}
	return &remote.Result{Outputs: outputs}, nil
}

func (p *fakeProvider) Delete(ctx context.Context, req remote.Request) error {
	return p.record("delete", req)
}

func (p *fakeProvider) callIndex(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func synthesize(t *testing.T, stack string, decls ...graph.Declaration) *plan.Plan {
	t.Helper()
	b := graph.NewBuilder()
	for _, decl := range decls {
		require.NoError(t, b.Add(decl))
	}
	g, err := b.Build()
	require.NoError(t, err)
	p, err := plan.NewSynthesizer().Synthesize(stack, g)
	require.NoError(t, err)
	return p
}

func newOrchestrator(t *testing.T, provider remote.Provider, parallelism int) (*Orchestrator, state.Manager) {
	t.Helper()
	b, err := local.New(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)
	m := state.NewManager(b)
	o := New(m, provider, Options{
		Parallelism: parallelism,
		Who:         "tester",
		Logger:      zerolog.Nop(),
	})
	return o, m
}

func chainDecls() []graph.Declaration {
	return []graph.Declaration{
		{ID: "vpc", Type: "network/vpc", Properties: map[string]interface{}{"cidr": "10.0.0.0/16"}},
		{ID: "db", Type: "postgres", Properties: map[string]interface{}{"subnet": "${{ vpc.id }}"}},
		{ID: "app", Type: "service", Properties: map[string]interface{}{"db_url": "postgres://${{ db.id }}:5432"}},
	}
}

func TestApplyCreatesInDependencyOrder(t *testing.T) {
	provider := newFakeProvider()
	o, m := newOrchestrator(t, provider, 4)

	p := synthesize(t, "prod", chainDecls()...)
	res, err := o.Apply(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.HasFailures())
	assert.Equal(t, 3, res.Succeeded)

	assert.Less(t, provider.callIndex("create:vpc"), provider.callIndex("create:db"))
	assert.Less(t, provider.callIndex("create:db"), provider.callIndex("create:app"))

	// Deferred values were substituted from dependency outputs.
	assert.Equal(t, "vpc-id", provider.seen["db"].Properties["subnet"])
	assert.Equal(t, "postgres://db-id:5432", provider.seen["app"].Properties["db_url"])

	s, err := m.GetStack(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Serial)
	assert.Len(t, s.Resources, 3)
	require.NotNil(t, s.LastApplied)
	assert.Len(t, s.LastApplied.Resources, 3)
}

func TestApplyIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	o, _ := newOrchestrator(t, provider, 4)

	first := synthesize(t, "prod", chainDecls()...)
	_, err := o.Apply(context.Background(), first)
	require.NoError(t, err)
	calls := len(provider.calls)

	second := synthesize(t, "prod", chainDecls()...)
	res, err := o.Apply(context.Background(), second)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Equal(t, calls, len(provider.calls))
}

func TestApplyFailureSkipsDependents(t *testing.T) {
	provider := newFakeProvider()
	provider.fail["db"] = true
	o, m := newOrchestrator(t, provider, 4)

	decls := append(chainDecls(), graph.Declaration{ID: "bucket", Type: "storage/bucket"})
	p := synthesize(t, "prod", decls...)

	res, err := o.Apply(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, res.HasFailures())
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, StatusFailed, res.Entry("db").Status)
	assert.Equal(t, StatusSkipped, res.Entry("app").Status)
	assert.Equal(t, StatusSucceeded, res.Entry("bucket").Status)

	s, err := m.GetStack(context.Background(), "prod")
	require.NoError(t, err)
	assert.Nil(t, s.Resource("db"))
	assert.Nil(t, s.Resource("app"))
	assert.NotNil(t, s.Resource("vpc"))
	assert.NotNil(t, s.Resource("bucket"))

	// The failed entries stay outstanding for the next run.
	require.NotNil(t, s.LastApplied)
	assert.Nil(t, s.LastApplied.Resource("db"))
	assert.Nil(t, s.LastApplied.Resource("app"))
}

func TestApplyRemovesDependentsFirst(t *testing.T) {
	provider := newFakeProvider()
	o, _ := newOrchestrator(t, provider, 4)

	full := synthesize(t, "prod", chainDecls()...)
	_, err := o.Apply(context.Background(), full)
	require.NoError(t, err)

	shrunk := synthesize(t, "prod", graph.Declaration{
		ID: "vpc", Type: "network/vpc",
		Properties: map[string]interface{}{"cidr": "10.0.0.0/16"},
	})
	res, err := o.Apply(context.Background(), shrunk)
	require.NoError(t, err)
	assert.False(t, res.HasFailures())
	assert.Equal(t, 2, res.Succeeded)

	assert.Less(t, provider.callIndex("delete:app"), provider.callIndex("delete:db"))
}

func TestDestroy(t *testing.T) {
	provider := newFakeProvider()
	o, m := newOrchestrator(t, provider, 4)

	p := synthesize(t, "prod", chainDecls()...)
	_, err := o.Apply(context.Background(), p)
	require.NoError(t, err)

	res, err := o.Destroy(context.Background(), "prod")
	require.NoError(t, err)
	assert.False(t, res.HasFailures())
	assert.Equal(t, 3, res.Succeeded)

	assert.Less(t, provider.callIndex("delete:app"), provider.callIndex("delete:db"))
	assert.Less(t, provider.callIndex("delete:db"), provider.callIndex("delete:vpc"))

	s, err := m.GetStack(context.Background(), "prod")
	require.NoError(t, err)
	assert.Empty(t, s.Resources)
	assert.True(t, s.LastApplied.IsEmpty())
}

func TestApplyCancelled(t *testing.T) {
	provider := newFakeProvider()
	o, _ := newOrchestrator(t, provider, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := synthesize(t, "prod", chainDecls()...)
	res, err := o.Apply(ctx, p)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 3, res.Skipped)
	assert.Empty(t, provider.calls)
}

func TestApplyCancelMidFlight(t *testing.T) {
	provider := newFakeProvider()
	provider.started = make(chan string)
	provider.release = make(chan struct{})
	o, m := newOrchestrator(t, provider, 4)

	ctx, cancel := context.WithCancel(context.Background())
	p := synthesize(t, "prod", chainDecls()...)

	done := make(chan struct{})
	var res *Result
	var applyErr error
	go func() {
		res, applyErr = o.Apply(ctx, p)
		close(done)
	}()

	// The vpc create is in flight; cancel while it runs, then let it finish.
	<-provider.started
	cancel()
	close(provider.release)
	<-done

	require.NoError(t, applyErr)
	assert.True(t, res.Cancelled)
	assert.Equal(t, StatusSucceeded, res.Entry("vpc").Status)
	assert.Equal(t, StatusSkipped, res.Entry("db").Status)
	assert.Equal(t, StatusSkipped, res.Entry("app").Status)
	assert.Equal(t, []string{"create:vpc"}, provider.calls)

	// The in-flight result was still recorded before the run stopped.
	s, err := m.GetStack(context.Background(), "prod")
	require.NoError(t, err)
	assert.NotNil(t, s.Resource("vpc"))
	assert.Nil(t, s.Resource("db"))
	require.NotNil(t, s.LastApplied)
	assert.NotNil(t, s.LastApplied.Resource("vpc"))
	assert.Nil(t, s.LastApplied.Resource("db"))
}

func TestApplyFailedRemovalStaysInState(t *testing.T) {
	provider := newFakeProvider()
	o, m := newOrchestrator(t, provider, 4)

	full := synthesize(t, "prod", chainDecls()...)
	_, err := o.Apply(context.Background(), full)
	require.NoError(t, err)

	provider.fail["app"] = true
	shrunk := synthesize(t, "prod", graph.Declaration{
		ID: "vpc", Type: "network/vpc",
		Properties: map[string]interface{}{"cidr": "10.0.0.0/16"},
	})
	res, err := o.Apply(context.Background(), shrunk)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, StatusSkipped, res.Entry("db").Status)

	s, err := m.GetStack(context.Background(), "prod")
	require.NoError(t, err)
	assert.NotNil(t, s.Resource("app"))
	assert.NotNil(t, s.Resource("db"))
	require.NotNil(t, s.LastApplied)
	assert.NotNil(t, s.LastApplied.Resource("app"))
	assert.NotNil(t, s.LastApplied.Resource("db"))
}
