package prof

import (
	"sync"

	"github.com/coral-mesh/profplugin/internal/agentapi"
)

// fakeRuntime is a Runtime whose sampler records calls. It is only touched
// from the loop goroutine except through the mutex-guarded counters.
type fakeRuntime struct {
	mu sync.Mutex

	contextErr error
	startErr   error
	stopErr    error
	// tree builds the tree returned by each StopProfiling; nil means absence.
	tree func() CallTree

	starts, stops int
	titles        []string
	running       bool
	overlapped    bool
}

func (r *fakeRuntime) CPUProfiler() (CPUProfiler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contextErr != nil {
		return nil, r.contextErr
	}
	return r, nil
}

func (r *fakeRuntime) StartProfiling(title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	if r.running {
		r.overlapped = true
	}
	r.running = true
	r.starts++
	r.titles = append(r.titles, title)
	return nil
}

func (r *fakeRuntime) StopProfiling(title string) (CallTree, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.running = false
	if r.stopErr != nil {
		return nil, r.stopErr
	}
	if r.tree == nil {
		return nil, nil
	}
	return r.tree(), nil
}

func (r *fakeRuntime) counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

func (r *fakeRuntime) set(fn func(r *fakeRuntime)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

type sentMessage struct {
	topic string
	body  string
}

// fakeAgent records everything the plugin sends to the agent.
type fakeAgent struct {
	props agentapi.Properties

	mu       sync.Mutex
	pushed   []agentapi.MonitorData
	messages []sentMessage
}

func (a *fakeAgent) PushData(d agentapi.MonitorData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pushed = append(a.pushed, d)
}

func (a *fakeAgent) SendMessage(topic string, body []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, sentMessage{topic: topic, body: string(body)})
}

func (a *fakeAgent) GetProperty(key string) string {
	return a.props.Get(key)
}

func (a *fakeAgent) Pushed() []agentapi.MonitorData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]agentapi.MonitorData(nil), a.pushed...)
}

func (a *fakeAgent) Messages() []sentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sentMessage(nil), a.messages...)
}

// releaseTracker is a CallTree that counts releases.
type releaseTracker struct {
	root     Node
	mu       *sync.Mutex
	released *int
}

func (t releaseTracker) Root() Node { return t.root }

func (t releaseTracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.released++
}
