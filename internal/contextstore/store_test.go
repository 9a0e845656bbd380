package contextstore_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"iris.app/engage/internal/contextstore"
	"iris.app/engage/internal/model"
	"iris.app/engage/internal/store"
)

var _ = Describe("TieredStore", func() {
	var (
		ctx      context.Context
		hot      *fakeSessionCache
		profiles *mockProfileStore
		turnlog  *mockTurnLogStore
		tiered   *contextstore.TieredStore
	)

	newTiered := func() *contextstore.TieredStore {
		return contextstore.NewTieredStore(hot, store.Stores{
			Profiles: profiles,
			TurnLog:  turnlog,
		}, contextstore.Config{
			HotTTL:           time.Hour,
			HotTurnLimit:     10,
			RebuildTurnLimit: 10,
			RebuildWindow:    24 * time.Hour,
			WriteTimeout:     time.Second,
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		hot = newFakeSessionCache()
		profiles = &mockProfileStore{}
		turnlog = &mockTurnLogStore{}
		tiered = newTiered()
	})

	Describe("Get", func() {
		It("returns the cached state on a hot hit and refreshes the TTL", func() {
			cached := model.NewConversationState("c1", "u1")
			cached.SessionMetadata["marker"] = "hot"
			hot.entries["c1"] = cached

			state := tiered.Get(ctx, "c1", "u1")

			Expect(state.SessionMetadata).To(HaveKeyWithValue("marker", "hot"))
			Expect(hot.touchCalls).To(Equal(1))
		})

		It("rebuilds from warm and cold tiers on a miss and repopulates the hot tier", func() {
			profiles.getFn = func(_ context.Context, userID string) (map[string]string, error) {
				Expect(userID).To(Equal("u1"))
				return map[string]string{"name": "Ploy"}, nil
			}
			turnlog.listFn = func(_ context.Context, conversationID string, limit int, _ time.Time) ([]model.Turn, error) {
				Expect(conversationID).To(Equal("c1"))
				Expect(limit).To(Equal(10))
				return []model.Turn{
					{ID: 1, Sender: model.SenderUser, Text: "hello", Intent: "greeting"},
					{ID: 2, Sender: model.SenderAssistant, Text: "hi there"},
				}, nil
			}

			state := tiered.Get(ctx, "c1", "u1")

			Expect(state.Degraded).To(BeFalse())
			Expect(state.UserProfile).To(HaveKeyWithValue("name", "Ploy"))
			Expect(state.Turns).To(HaveLen(2))
			Expect(hot.entries).To(HaveKey("c1"))
		})

		It("treats an unknown user as an empty profile, not a failure", func() {
			profiles.getFn = func(context.Context, string) (map[string]string, error) {
				return nil, store.ErrNotFound
			}

			state := tiered.Get(ctx, "c1", "new-user")

			Expect(state.Degraded).To(BeFalse())
			Expect(state.UserProfile).To(BeEmpty())
		})

		It("returns a degraded empty state when every tier is down", func() {
			hot.failGet = true
			profiles.getFn = func(context.Context, string) (map[string]string, error) {
				return nil, errTierDown
			}
			turnlog.listFn = func(context.Context, string, int, time.Time) ([]model.Turn, error) {
				return nil, errTierDown
			}

			state := tiered.Get(ctx, "c1", "u1")

			Expect(state).NotTo(BeNil())
			Expect(state.Degraded).To(BeTrue())
			Expect(state.ConversationID).To(Equal("c1"))
			Expect(state.Turns).To(BeEmpty())
		})

		It("still serves warm data when only the cold tier is down", func() {
			profiles.getFn = func(context.Context, string) (map[string]string, error) {
				return map[string]string{"name": "Ploy"}, nil
			}
			turnlog.listFn = func(context.Context, string, int, time.Time) ([]model.Turn, error) {
				return nil, errTierDown
			}

			state := tiered.Get(ctx, "c1", "u1")

			Expect(state.Degraded).To(BeFalse())
			Expect(state.UserProfile).To(HaveKeyWithValue("name", "Ploy"))
		})
	})

	Describe("Put", func() {
		turnsFor := func(i int) []model.Turn {
			return []model.Turn{
				{ID: int64(i * 2), Sender: model.SenderUser, Text: fmt.Sprintf("msg %d", i)},
				{ID: int64(i*2 + 1), Sender: model.SenderAssistant, Text: fmt.Sprintf("reply %d", i)},
			}
		}

		It("appends turns, records the decision, and writes the hot tier", func() {
			state := model.NewConversationState("c1", "u1")
			decision := &model.DecisionRecord{ID: 99, DecisionType: model.TypeDirectResponse}

			err := tiered.Put(ctx, state, turnsFor(0), decision)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.Turns).To(HaveLen(2))
			Expect(state.LastDecision).To(Equal(decision))
			Expect(hot.entries["c1"].Turns).To(HaveLen(2))
		})

		It("bounds hot-tier state to the configured turn limit", func() {
			state := model.NewConversationState("c1", "u1")
			for i := 0; i < 8; i++ {
				Expect(tiered.Put(ctx, state, turnsFor(i), nil)).To(Succeed())
			}

			Expect(state.Turns).To(HaveLen(10))
			Expect(state.Turns[0].Text).To(Equal("msg 3"))
		})

		It("applies cold-tier writes for one conversation in Put order", func() {
			state := model.NewConversationState("c1", "u1")
			for i := 0; i < 5; i++ {
				Expect(tiered.Put(ctx, state, turnsFor(i), nil)).To(Succeed())
			}

			tiered.Close()

			calls := turnlog.calls()
			Expect(calls).To(HaveLen(5))
			for i, call := range calls {
				Expect(call.turns[0].Text).To(Equal(fmt.Sprintf("msg %d", i)))
			}
		})

		It("still queues the cold write when the hot tier is down", func() {
			hot.failSet = true
			state := model.NewConversationState("c1", "u1")

			err := tiered.Put(ctx, state, turnsFor(0), nil)

			Expect(err).To(HaveOccurred())
			tiered.Close()
			Expect(turnlog.calls()).To(HaveLen(1))
		})

		It("keeps the cold log complete even when the hot state is bounded", func() {
			state := model.NewConversationState("c1", "u1")
			for i := 0; i < 8; i++ {
				Expect(tiered.Put(ctx, state, turnsFor(i), nil)).To(Succeed())
			}

			tiered.Close()

			total := 0
			for _, call := range turnlog.calls() {
				total += len(call.turns)
			}
			Expect(total).To(Equal(16))
		})
	})

	Describe("PromoteProfile", func() {
		It("merges the patch into the warm tier", func() {
			var gotUser string
			var gotPatch map[string]string
			profiles.mergeFn = func(_ context.Context, userID string, patch map[string]string) error {
				gotUser = userID
				gotPatch = patch
				return nil
			}

			err := tiered.PromoteProfile(ctx, "u1", map[string]string{"preferred_language": "th"})

			Expect(err).NotTo(HaveOccurred())
			Expect(gotUser).To(Equal("u1"))
			Expect(gotPatch).To(HaveKeyWithValue("preferred_language", "th"))
		})

		It("propagates warm-tier failures to the caller", func() {
			profiles.mergeFn = func(context.Context, string, map[string]string) error {
				return errTierDown
			}

			Expect(tiered.PromoteProfile(ctx, "u1", map[string]string{"k": "v"})).To(HaveOccurred())
		})
	})

	Describe("PromoteProfileExternal", func() {
		seedSession := func(conversationID, userID string) {
			state := model.NewConversationState(conversationID, userID)
			Expect(hot.Set(ctx, state, time.Hour)).To(Succeed())
		}

		It("drops the user's hot sessions after the merge", func() {
			seedSession("c1", "u1")
			seedSession("c2", "u1")
			seedSession("c3", "other-user")

			err := tiered.PromoteProfileExternal(ctx, "u1", map[string]string{"tier": "vip"})

			Expect(err).NotTo(HaveOccurred())
			Expect(hot.entries).NotTo(HaveKey("c1"))
			Expect(hot.entries).NotTo(HaveKey("c2"))
			Expect(hot.entries).To(HaveKey("c3"))
		})

		It("rebuilds the next read from the merged warm tier", func() {
			seedSession("c1", "u1")
			profiles.getFn = func(context.Context, string) (map[string]string, error) {
				return map[string]string{"tier": "vip"}, nil
			}

			Expect(tiered.PromoteProfileExternal(ctx, "u1", map[string]string{"tier": "vip"})).To(Succeed())
			state := tiered.Get(ctx, "c1", "u1")

			Expect(state.UserProfile).To(HaveKeyWithValue("tier", "vip"))
		})

		It("leaves hot sessions alone when the merge fails", func() {
			seedSession("c1", "u1")
			profiles.mergeFn = func(context.Context, string, map[string]string) error {
				return errTierDown
			}

			Expect(tiered.PromoteProfileExternal(ctx, "u1", map[string]string{"k": "v"})).To(HaveOccurred())
			Expect(hot.entries).To(HaveKey("c1"))
		})

		It("reports a failed invalidation so the caller knows the cache may be stale", func() {
			seedSession("c1", "u1")
			hot.failInvalidate = true

			Expect(tiered.PromoteProfileExternal(ctx, "u1", map[string]string{"k": "v"})).To(HaveOccurred())
		})
	})

	Describe("Invalidate", func() {
		It("forces the next Get to rebuild", func() {
			hot.entries["c1"] = model.NewConversationState("c1", "u1")
			rebuilt := false
			turnlog.listFn = func(context.Context, string, int, time.Time) ([]model.Turn, error) {
				rebuilt = true
				return []model.Turn{}, nil
			}

			Expect(tiered.Invalidate(ctx, "c1")).To(Succeed())
			tiered.Get(ctx, "c1", "u1")

			Expect(rebuilt).To(BeTrue())
		})
	})
})
