// SPDX-License-Identifier: AGPL-3.0-only

package warmup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvrouter/dictserve/pkg/dictservice/metadata"
)

type fakeRepo struct {
	stores []metadata.Store
}

func (r fakeRepo) Refresh(context.Context) error { return nil }
func (r fakeRepo) AllStores() []metadata.Store    { return r.stores }
func (r fakeRepo) Store(name string) (metadata.Store, bool) {
	for _, s := range r.stores {
		if s.Name == name {
			return s, true
		}
	}
	return metadata.Store{}, false
}
func (r fakeRepo) AddListener(metadata.StoreDataChangedListener) {}

type recordingRunner struct {
	mu          sync.Mutex
	topics      []string
	maxInFlight int
	inFlight    int
	failTopics  map[string]bool
}

func (r *recordingRunner) EnsureFetchSync(ctx context.Context, topic string) bool {
	r.mu.Lock()
	r.topics = append(r.topics, topic)
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	fail := r.failTopics[topic]
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()

	return !fail
}

func TestRunFetchesEveryEligibleVersion(t *testing.T) {
	repo := fakeRepo{stores: []metadata.Store{
		{
			Name: "a",
			Versions: map[int]metadata.Version{
				1: {Number: 1, Strategy: metadata.StrategyDict, Status: metadata.StatusOnline},
				2: {Number: 2, Strategy: metadata.StrategyNone, Status: metadata.StatusOnline},
			},
		},
		{
			Name: "b",
			Versions: map[int]metadata.Version{
				1: {Number: 1, Strategy: metadata.StrategyDict, Status: metadata.StatusOnline},
			},
		},
	}}
	runner := &recordingRunner{}

	err := Run(context.Background(), repo, runner, 4, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a_v1", "b_v1"}, runner.topics)
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	versions := map[int]metadata.Version{}
	for i := 0; i < 10; i++ {
		versions[i] = metadata.Version{Number: i, Strategy: metadata.StrategyDict, Status: metadata.StatusOnline}
	}
	repo := fakeRepo{stores: []metadata.Store{{Name: "a", Versions: versions}}}
	runner := &recordingRunner{}

	require.NoError(t, Run(context.Background(), repo, runner, 2, nil))
	assert.LessOrEqual(t, runner.maxInFlight, 2)
	assert.Len(t, runner.topics, 10)
}

func TestRunFailsIfAnyTopicFailsToInstall(t *testing.T) {
	repo := fakeRepo{stores: []metadata.Store{
		{Name: "s", Versions: map[int]metadata.Version{
			1: {Number: 1, Strategy: metadata.StrategyDict, Status: metadata.StatusOnline},
			2: {Number: 2, Strategy: metadata.StrategyNone, Status: metadata.StatusOnline},
			3: {Number: 3, Strategy: metadata.StrategyDict, Status: metadata.StatusOnline},
		}},
	}}
	runner := &recordingRunner{failTopics: map[string]bool{"s_v3": true}}

	err := Run(context.Background(), repo, runner, 4, nil)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"s_v1", "s_v3"}, runner.topics)
}

func TestRunReturnsErrorOnCancelledContext(t *testing.T) {
	repo := fakeRepo{stores: []metadata.Store{
		{Name: "a", Versions: map[int]metadata.Version{
			1: {Number: 1, Strategy: metadata.StrategyDict, Status: metadata.StatusOnline},
		}},
	}}
	runner := &recordingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, repo, runner, 4, nil)
	assert.Error(t, err)
}
