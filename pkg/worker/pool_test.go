/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

func TestPool_Submit(t *testing.T) {
	g := NewWithT(t)
	pool := NewPool(Options{Workers: 3}, zap.NewNop().Sugar())

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("task-%d", i)
		err := pool.Submit(name, func(ctx context.Context) {
			mu.Lock()
			defer mu.Unlock()
			seen[name] = true
		})
		g.Expect(err).ToNot(HaveOccurred())
	}

	g.Expect(pool.Shutdown(context.Background())).To(Succeed())
	g.Expect(seen).To(HaveLen(20))
}

func TestPool_SameNameIsNotDeduplicated(t *testing.T) {
	g := NewWithT(t)
	pool := NewPool(Options{Workers: 1}, zap.NewNop().Sugar())

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		g.Expect(pool.Submit("provision/a", func(ctx context.Context) {
			count.Add(1)
		})).To(Succeed())
	}

	g.Expect(pool.Shutdown(context.Background())).To(Succeed())
	g.Expect(count.Load()).To(BeEquivalentTo(5))
}

func TestPool_ShutdownDrains(t *testing.T) {
	g := NewWithT(t)
	pool := NewPool(Options{Workers: 1}, zap.NewNop().Sugar())

	release := make(chan struct{})
	var finished atomic.Int32

	g.Expect(pool.Submit("blocking", func(ctx context.Context) {
		<-release
		finished.Add(1)
	})).To(Succeed())
	g.Expect(pool.Submit("queued", func(ctx context.Context) {
		finished.Add(1)
	})).To(Succeed())

	shutdownErr := make(chan error, 1)
	go func() {
		shutdownErr <- pool.Shutdown(context.Background())
	}()

	g.Eventually(func() error {
		return pool.Submit("late", func(ctx context.Context) {})
	}).Should(MatchError(ErrShuttingDown))

	close(release)
	g.Eventually(shutdownErr).Should(Receive(BeNil()))
	g.Expect(finished.Load()).To(BeEquivalentTo(2))
}

func TestPool_ShutdownTimeout(t *testing.T) {
	g := NewWithT(t)
	pool := NewPool(Options{Workers: 1}, zap.NewNop().Sugar())

	release := make(chan struct{})
	defer close(release)
	g.Expect(pool.Submit("blocking", func(ctx context.Context) {
		<-release
	})).To(Succeed())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g.Expect(pool.Shutdown(ctx)).To(HaveOccurred())
}

func TestPool_RecoversPanic(t *testing.T) {
	g := NewWithT(t)
	pool := NewPool(Options{Workers: 1}, zap.NewNop().Sugar())

	var ran atomic.Bool
	g.Expect(pool.Submit("panics", func(ctx context.Context) {
		panic("boom")
	})).To(Succeed())
	g.Expect(pool.Submit("after", func(ctx context.Context) {
		ran.Store(true)
	})).To(Succeed())

	g.Expect(pool.Shutdown(context.Background())).To(Succeed())
	g.Expect(ran.Load()).To(BeTrue())
}
