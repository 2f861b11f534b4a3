package history_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/history"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

var _ = Describe("Sweeper", func() {
	var (
		store *history.MemoryStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = history.NewMemoryStore(10)
		store.Append(ctx, "a", llm.UserTurn("x"))
	})

	It("keeps recently active conversations", func() {
		sweeper := history.NewSweeper(store, time.Hour, "", zap.NewNop())
		Expect(sweeper.Sweep(ctx)).To(Equal(0))

		n, _ := store.Conversations(ctx)
		Expect(n).To(Equal(1))
	})

	It("evicts conversations idle past the TTL", func() {
		time.Sleep(5 * time.Millisecond)
		sweeper := history.NewSweeper(store, time.Millisecond, "", zap.NewNop())

		var reported int
		sweeper.OnSweep = func(removed int) { reported = removed }

		Expect(sweeper.Sweep(ctx)).To(Equal(1))
		Expect(reported).To(Equal(1))

		n, _ := store.Conversations(ctx)
		Expect(n).To(Equal(0))
	})

	It("reports nothing when the store fails", func() {
		sweeper := history.NewSweeper(failingStore{}, time.Minute, "", zap.NewNop())
		Expect(sweeper.Sweep(ctx)).To(Equal(0))
	})

	It("does nothing when disabled", func() {
		sweeper := history.NewSweeper(store, 0, "", zap.NewNop())
		Expect(sweeper.Start(ctx)).To(Succeed())
		sweeper.Stop()
	})

	It("rejects invalid schedules", func() {
		sweeper := history.NewSweeper(store, time.Minute, "not a schedule", zap.NewNop())
		Expect(sweeper.Start(ctx)).NotTo(Succeed())
	})

	It("sweeps on its schedule until the context ends", func() {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		sweeper := history.NewSweeper(store, time.Nanosecond, "@every 1s", zap.NewNop())
		var sweeps atomic.Int32
		sweeper.OnSweep = func(int) { sweeps.Add(1) }

		Expect(sweeper.Start(runCtx)).To(Succeed())
		Eventually(sweeps.Load, 3*time.Second, 100*time.Millisecond).Should(BeNumerically(">=", 1))

		n, _ := store.Conversations(ctx)
		Expect(n).To(Equal(0))
		sweeper.Stop()
	})

	It("runs one sweep per tick after a restart", func() {
		sweeper := history.NewSweeper(store, time.Hour, "@every 1s", zap.NewNop())
		var sweeps atomic.Int32
		sweeper.OnSweep = func(int) { sweeps.Add(1) }

		Expect(sweeper.Start(ctx)).To(Succeed())
		sweeper.Stop()
		Expect(sweeper.Start(ctx)).To(Succeed())
		defer sweeper.Stop()

		Eventually(sweeps.Load, 3*time.Second, 50*time.Millisecond).Should(BeNumerically(">=", 1))
		time.Sleep(200 * time.Millisecond)
		Expect(sweeps.Load()).To(Equal(int32(1)))
	})
})
