package upload

import (
	"fmt"
	"sync"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	value, ok := repo.envVars[key]
	if ok {
		return value
	} else {
		return ""
	}
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	repo.envVars[key] = ""
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

type fakeTracker struct {
	mu     sync.Mutex
	events []string
}

func (t *fakeTracker) Enqueue(eventName string, properties ...analytics.Properties) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, eventName)
}

func (t *fakeTracker) Wait() {}

func (t *fakeTracker) factory() TrackerFactory {
	return func(log.Logger, ...analytics.Properties) analytics.Tracker {
		return t
	}
}
