package history_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/history"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// behavesLikeAStore runs the contract every history.Store must satisfy.
// newStore must return a store bounded to maxHistory turns.
func behavesLikeAStore(newStore func(maxHistory int) history.Store) {
	const maxHistory = 10

	var (
		store history.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore(maxHistory)
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("Get", func() {
		It("returns an empty sequence for unknown conversations", func() {
			turns, err := store.Get(ctx, "whatsapp:+10000000000")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).NotTo(BeNil())
			Expect(turns).To(BeEmpty())
		})

		It("returns turns oldest first", func() {
			_, err := store.Append(ctx, "a", llm.UserTurn("hi"))
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Append(ctx, "a", llm.AssistantTurn("hello"))
			Expect(err).NotTo(HaveOccurred())

			turns, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(Equal([]llm.Turn{
				{Role: llm.RoleUser, Content: "hi"},
				{Role: llm.RoleAssistant, Content: "hello"},
			}))
		})
	})

	Describe("Append", func() {
		It("returns the resulting sequence", func() {
			turns, err := store.Append(ctx, "a", llm.UserTurn("one"))
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(Equal([]llm.Turn{llm.UserTurn("one")}))
		})

		It("keeps the bound and the newest turn on every append", func() {
			for i := 1; i <= 25; i++ {
				turn := llm.UserTurn(fmt.Sprintf("message %d", i))
				turns, err := store.Append(ctx, "a", turn)
				Expect(err).NotTo(HaveOccurred())

				Expect(turns).To(HaveLen(min(i, maxHistory)))
				Expect(turns[len(turns)-1]).To(Equal(turn))
			}
		})

		It("evicts the oldest turns first", func() {
			for i := 1; i <= 12; i++ {
				_, err := store.Append(ctx, "whatsapp:+15551234567", llm.UserTurn(fmt.Sprintf("message %d", i)))
				Expect(err).NotTo(HaveOccurred())
			}

			turns, err := store.Get(ctx, "whatsapp:+15551234567")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(10))
			Expect(turns[0].Content).To(Equal("message 3"))
			Expect(turns[9].Content).To(Equal("message 12"))
		})

		It("evicts across interleaved user and assistant turns", func() {
			for i := 1; i <= 6; i++ {
				_, err := store.Append(ctx, "a", llm.UserTurn(fmt.Sprintf("q%d", i)))
				Expect(err).NotTo(HaveOccurred())
				_, err = store.Append(ctx, "a", llm.AssistantTurn(fmt.Sprintf("a%d", i)))
				Expect(err).NotTo(HaveOccurred())
			}

			turns, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(10))
			Expect(turns[0]).To(Equal(llm.UserTurn("q2")))
			Expect(turns[9]).To(Equal(llm.AssistantTurn("a6")))
		})

		It("does not let callers mutate stored turns through the snapshot", func() {
			turns, err := store.Append(ctx, "a", llm.UserTurn("original"))
			Expect(err).NotTo(HaveOccurred())
			turns[0].Content = "changed"

			stored, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored[0].Content).To(Equal("original"))
		})

		It("treats the empty conversation id as a regular key", func() {
			_, err := store.Append(ctx, "", llm.UserTurn(""))
			Expect(err).NotTo(HaveOccurred())

			turns, err := store.Get(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
		})
	})

	Describe("isolation", func() {
		It("never changes one conversation when appending to another", func() {
			_, err := store.Append(ctx, "b", llm.UserTurn("b1"))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 15; i++ {
				_, err := store.Append(ctx, "a", llm.UserTurn("a"))
				Expect(err).NotTo(HaveOccurred())
			}

			turns, err := store.Get(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(Equal([]llm.Turn{llm.UserTurn("b1")}))
		})
	})

	Describe("concurrent appends", func() {
		It("loses no turn for the same conversation", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := store.Append(ctx, "a", llm.UserTurn(fmt.Sprintf("%d", i)))
					Expect(err).NotTo(HaveOccurred())
				}(i)
			}
			wg.Wait()

			turns, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(8))
		})
	})

	Describe("Conversations", func() {
		It("counts distinct conversations", func() {
			n, err := store.Conversations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))

			store.Append(ctx, "a", llm.UserTurn("x"))
			store.Append(ctx, "a", llm.UserTurn("y"))
			store.Append(ctx, "b", llm.UserTurn("z"))

			n, err = store.Conversations(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	Describe("EvictIdle", func() {
		BeforeEach(func() {
			store.Append(ctx, "a", llm.UserTurn("x"))
			store.Append(ctx, "b", llm.UserTurn("y"))
		})

		It("keeps conversations active after the cutoff", func() {
			removed, err := store.EvictIdle(ctx, time.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(0))

			n, _ := store.Conversations(ctx)
			Expect(n).To(Equal(2))
		})

		It("drops conversations idle since before the cutoff", func() {
			removed, err := store.EvictIdle(ctx, time.Now().Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(2))

			turns, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})

		It("starts a fresh history after eviction", func() {
			store.EvictIdle(ctx, time.Now().Add(time.Hour))

			turns, err := store.Append(ctx, "a", llm.UserTurn("again"))
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(Equal([]llm.Turn{llm.UserTurn("again")}))
		})
	})
}

var _ = Describe("MemoryStore", func() {
	behavesLikeAStore(func(maxHistory int) history.Store {
		return history.NewMemoryStore(maxHistory)
	})

	It("falls back to the default bound", func() {
		store := history.NewMemoryStore(0)
		ctx := context.Background()
		for i := 0; i < history.DefaultMaxHistory+5; i++ {
			store.Append(ctx, "a", llm.UserTurn("x"))
		}
		turns, _ := store.Get(ctx, "a")
		Expect(turns).To(HaveLen(history.DefaultMaxHistory))
	})

	It("rejects appends after Close", func() {
		store := history.NewMemoryStore(3)
		Expect(store.Close()).To(Succeed())

		_, err := store.Append(context.Background(), "a", llm.UserTurn("x"))
		Expect(err).To(MatchError(history.ErrClosed))
	})
})

var _ = Describe("SQLiteStore", func() {
	behavesLikeAStore(func(maxHistory int) history.Store {
		store, err := history.NewSQLiteStore(":memory:", maxHistory)
		Expect(err).NotTo(HaveOccurred())
		return store
	})

	It("keeps histories across reopening the database file", func() {
		ctx := context.Background()
		dbPath := GinkgoT().TempDir() + "/history.db"

		store, err := history.NewSQLiteStore(dbPath, 4)
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Append(ctx, "a", llm.UserTurn("persisted"))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Close()).To(Succeed())

		reopened, err := history.NewSQLiteStore(dbPath, 4)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		turns, err := reopened.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(Equal([]llm.Turn{llm.UserTurn("persisted")}))
	})

	It("lists conversations with their turn counts", func() {
		ctx := context.Background()
		store, err := history.NewSQLiteStore(":memory:", 10)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		store.Append(ctx, "a", llm.UserTurn("1"))
		store.Append(ctx, "a", llm.AssistantTurn("2"))
		store.Append(ctx, "b", llm.UserTurn("3"))

		summaries, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(HaveLen(2))

		counts := map[string]int{}
		for _, s := range summaries {
			counts[s.ConversationID] = s.Turns
		}
		Expect(counts).To(Equal(map[string]int{"a": 2, "b": 1}))
	})

	It("fails once closed", func() {
		store, err := history.NewSQLiteStore(":memory:", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Close()).To(Succeed())

		_, err = store.Append(context.Background(), "a", llm.UserTurn("x"))
		Expect(err).To(HaveOccurred())
	})
})
